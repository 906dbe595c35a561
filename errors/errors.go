package errors

import (
	stderrors "errors"
	"fmt"
)

// SdkError is the error returned by operation orchestration.
type SdkError struct {
	// Kind classifies the failure.
	Kind Kind `json:"kind"`
	// Message is a human-readable description.
	Message string `json:"message"`
	// Retryable is the default retry classification for this failure.
	Retryable bool `json:"retryable"`
	// StatusCode is the HTTP status of the response, 0 when none was received.
	StatusCode int `json:"status_code,omitempty"`
	// Details carries additional context (operation, attempt, phase, ...).
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *SdkError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause of the error.
func (e *SdkError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause and returns the receiver.
func (e *SdkError) WithCause(cause error) *SdkError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *SdkError) WithDetail(key string, value any) *SdkError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithStatus records the HTTP status code and returns the receiver.
func (e *SdkError) WithStatus(code int) *SdkError {
	e.StatusCode = code
	return e
}

// New creates an SdkError with the default retry classification of kind.
func New(kind Kind, message string) *SdkError {
	return &SdkError{
		Kind:      kind,
		Message:   message,
		Retryable: IsRetryableKind(kind),
	}
}

// --- Constructors per failure site ---

// Configuration creates an error for a missing or invalid runtime component.
func Configuration(message string) *SdkError {
	return New(KindConfiguration, message)
}

// ConstructionFailure wraps an error raised while building the request.
func ConstructionFailure(cause error) *SdkError {
	return New(KindConstructionFailure, "failed to construct request").WithCause(cause)
}

// Timeout creates an error for an elapsed timeout. scope is "operation" or
// "operation attempt".
func Timeout(scope string, after fmt.Stringer, cause error) *SdkError {
	return New(KindTimeout, fmt.Sprintf("%s timed out after %s", scope, after)).
		WithDetail("scope", scope).
		WithCause(cause)
}

// DispatchFailure wraps a transport error.
func DispatchFailure(cause error) *SdkError {
	return New(KindDispatchFailure, "failed to dispatch request").WithCause(cause)
}

// ResponseError wraps a failure to read or deserialize a response.
func ResponseError(cause error) *SdkError {
	return New(KindResponseError, "failed to read response").WithCause(cause)
}

// ServiceError wraps an error returned by the service.
func ServiceError(cause error) *SdkError {
	return New(KindServiceError, "service returned error").WithCause(cause)
}

// InterceptorError wraps a failing interceptor hook.
func InterceptorError(interceptor, hook string, cause error) *SdkError {
	return New(KindInterceptor, fmt.Sprintf("interceptor %s failed in %s", interceptor, hook)).
		WithDetail("interceptor", interceptor).
		WithDetail("hook", hook).
		WithCause(cause)
}

// --- Inspection ---

// AsSdkError extracts the outermost SdkError from an error chain.
func AsSdkError(err error) (*SdkError, bool) {
	var sdkErr *SdkError
	if stderrors.As(err, &sdkErr) {
		return sdkErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an SdkError of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := AsSdkError(err)
	return ok && e.Kind == kind
}

// KindOf returns the kind of err, or "" when err is not an SdkError.
func KindOf(err error) Kind {
	if e, ok := AsSdkError(err); ok {
		return e.Kind
	}
	return ""
}
