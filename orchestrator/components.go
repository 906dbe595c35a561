package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/sdkcore/auth"
	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/endpoint"
	"github.com/kbukum/sdkcore/errors"
	"github.com/kbukum/sdkcore/sdkhttp"
	"github.com/kbukum/sdkcore/typeerased"
)

// RequestSerializer turns an operation input into an HTTP request.
type RequestSerializer interface {
	SerializeInput(input typeerased.Box, bag *configbag.Bag) (*sdkhttp.Request, error)
}

// SerializerFunc adapts a function to a RequestSerializer.
type SerializerFunc func(input typeerased.Box, bag *configbag.Bag) (*sdkhttp.Request, error)

// SerializeInput implements RequestSerializer.
func (f SerializerFunc) SerializeInput(input typeerased.Box, bag *configbag.Bag) (*sdkhttp.Request, error) {
	return f(input, bag)
}

// OutputOrError is the result of deserializing a response: either an output
// or a modeled operation error.
type OutputOrError struct {
	Output typeerased.Box
	Err    error
}

// Ok wraps an output.
func Ok(out typeerased.Box) OutputOrError { return OutputOrError{Output: out} }

// Fail wraps an operation error.
func Fail(err error) OutputOrError { return OutputOrError{Err: err} }

// ResponseDeserializer turns a fully read response into an output or error.
// The response body is an in-memory body.
type ResponseDeserializer interface {
	DeserializeNonstreaming(resp *sdkhttp.Response) OutputOrError
}

// StreamingDeserializer is optionally implemented by deserializers that can
// produce an output before the body is read. It returns false to defer to
// DeserializeNonstreaming.
type StreamingDeserializer interface {
	DeserializeStreaming(resp *sdkhttp.Response) (OutputOrError, bool)
}

// DeserializerFunc adapts a function to a ResponseDeserializer.
type DeserializerFunc func(resp *sdkhttp.Response) OutputOrError

// DeserializeNonstreaming implements ResponseDeserializer.
func (f DeserializerFunc) DeserializeNonstreaming(resp *sdkhttp.Response) OutputOrError {
	return f(resp)
}

// RetryStrategy decides whether attempts may proceed. ShouldAttemptRetry is
// called after every attempt, including successful ones, and is responsible
// for waiting out the backoff before returning true.
type RetryStrategy interface {
	ShouldAttemptInitialRequest(ctx context.Context, bag *configbag.Bag) error
	ShouldAttemptRetry(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) (bool, error)
}

// TimeoutConfig bounds the whole operation and each attempt. Zero disables
// a timeout.
type TimeoutConfig struct {
	Operation        time.Duration
	OperationAttempt time.Duration
}

// AuthParams is the operation-specific input to the auth option resolver.
type AuthParams struct {
	typeerased.Box
}

// EndpointParams is the operation-specific input to the endpoint resolver.
type EndpointParams struct {
	typeerased.Box
}

// InvocationID identifies one operation invocation across its attempts.
type InvocationID string

// Metadata names the operation being invoked.
type Metadata struct {
	Service   string
	Operation string
}

// String returns "service.operation".
func (m Metadata) String() string {
	switch {
	case m.Service == "":
		return m.Operation
	case m.Operation == "":
		return m.Service
	}
	return m.Service + "." + m.Operation
}

// --- Setters ---

// SetRequestSerializer stores the serializer in layer.
func SetRequestSerializer(l *configbag.Layer, s RequestSerializer) {
	configbag.Store(l, s)
}

// SetResponseDeserializer stores the deserializer in layer.
func SetResponseDeserializer(l *configbag.Layer, d ResponseDeserializer) {
	configbag.Store(l, d)
}

// SetRetryStrategy stores the retry strategy in layer.
func SetRetryStrategy(l *configbag.Layer, rs RetryStrategy) {
	configbag.Store(l, rs)
}

// SetConnection stores the connection in layer.
func SetConnection(l *configbag.Layer, c sdkhttp.Connection) {
	configbag.Store(l, c)
}

// SetAuthOptionResolver stores the auth option resolver in layer.
func SetAuthOptionResolver(l *configbag.Layer, r auth.OptionResolver) {
	configbag.Store(l, r)
}

// SetEndpointResolver stores the endpoint resolver in layer.
func SetEndpointResolver(l *configbag.Layer, r endpoint.Resolver) {
	configbag.Store(l, r)
}

// SetTraceProbe stores the trace probe in layer.
func SetTraceProbe(l *configbag.Layer, p TraceProbe) {
	configbag.Store(l, p)
}

// SetMetadata stores the operation metadata in layer.
func SetMetadata(l *configbag.Layer, m Metadata) {
	configbag.Store(l, m)
}

// SetTimeoutConfig stores timeouts in layer.
func SetTimeoutConfig(l *configbag.Layer, t TimeoutConfig) {
	configbag.Store(l, t)
}

// SetAuthParams stores auth resolver parameters in layer.
func SetAuthParams(l *configbag.Layer, params typeerased.Box) {
	configbag.Store(l, AuthParams{params})
}

// SetEndpointParams stores endpoint resolver parameters in layer.
func SetEndpointParams(l *configbag.Layer, params typeerased.Box) {
	configbag.Store(l, EndpointParams{params})
}

// AddAuthScheme registers an auth scheme in layer.
func AddAuthScheme(l *configbag.Layer, s auth.Scheme) {
	configbag.Append(l, s)
}

// AddInterceptor registers an interceptor in layer. Interceptors run in
// registration order, lower layers first.
func AddInterceptor(l *configbag.Layer, i Interceptor) {
	configbag.Append(l, i)
}

// --- Required accessors ---

type requirement struct {
	name   string
	setter string
	has    func(*configbag.Bag) bool
}

var requirements = []requirement{
	{"RequestSerializer", "SetRequestSerializer", present[RequestSerializer]},
	{"ResponseDeserializer", "SetResponseDeserializer", present[ResponseDeserializer]},
	{"RetryStrategy", "SetRetryStrategy", present[RetryStrategy]},
	{"Connection", "SetConnection", present[sdkhttp.Connection]},
	{"AuthOptionResolver", "SetAuthOptionResolver", present[auth.OptionResolver]},
	{"EndpointResolver", "SetEndpointResolver", present[endpoint.Resolver]},
	{"TraceProbe", "SetTraceProbe", present[TraceProbe]},
}

// present reports whether T is set to a non-nil value.
func present[T comparable](bag *configbag.Bag) bool {
	v, ok := configbag.Load[T](bag)
	var zero T
	return ok && v != zero
}

// Validate checks that every required component is in the bag.
func Validate(bag *configbag.Bag) error {
	var missing []string
	for _, r := range requirements {
		if !r.has(bag) {
			missing = append(missing, r.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return errors.Configuration(fmt.Sprintf("config bag is missing required components: %s", strings.Join(missing, ", "))).
		WithDetail("missing", missing)
}

func mustLoad[T comparable](bag *configbag.Bag, name, setter string) T {
	v, ok := configbag.Load[T](bag)
	var zero T
	if !ok || v == zero {
		panic(fmt.Sprintf("orchestrator: no %s was set in the config bag; set one with orchestrator.%s. Config bag contents: %s",
			name, setter, bag))
	}
	return v
}

// MustRequestSerializer returns the serializer or panics.
func MustRequestSerializer(bag *configbag.Bag) RequestSerializer {
	return mustLoad[RequestSerializer](bag, "RequestSerializer", "SetRequestSerializer")
}

// MustResponseDeserializer returns the deserializer or panics.
func MustResponseDeserializer(bag *configbag.Bag) ResponseDeserializer {
	return mustLoad[ResponseDeserializer](bag, "ResponseDeserializer", "SetResponseDeserializer")
}

// MustRetryStrategy returns the retry strategy or panics.
func MustRetryStrategy(bag *configbag.Bag) RetryStrategy {
	return mustLoad[RetryStrategy](bag, "RetryStrategy", "SetRetryStrategy")
}

// MustConnection returns the connection or panics.
func MustConnection(bag *configbag.Bag) sdkhttp.Connection {
	return mustLoad[sdkhttp.Connection](bag, "Connection", "SetConnection")
}

// MustAuthOptionResolver returns the auth option resolver or panics.
func MustAuthOptionResolver(bag *configbag.Bag) auth.OptionResolver {
	return mustLoad[auth.OptionResolver](bag, "AuthOptionResolver", "SetAuthOptionResolver")
}

// MustEndpointResolver returns the endpoint resolver or panics.
func MustEndpointResolver(bag *configbag.Bag) endpoint.Resolver {
	return mustLoad[endpoint.Resolver](bag, "EndpointResolver", "SetEndpointResolver")
}

// MustTraceProbe returns the trace probe or panics.
func MustTraceProbe(bag *configbag.Bag) TraceProbe {
	return mustLoad[TraceProbe](bag, "TraceProbe", "SetTraceProbe")
}
