package sdk

import (
	"context"
	"fmt"

	"github.com/kbukum/sdkcore/auth"
	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/errors"
	"github.com/kbukum/sdkcore/orchestrator"
	"github.com/kbukum/sdkcore/sdkhttp"
	"github.com/kbukum/sdkcore/typeerased"
)

// Serializer builds the HTTP request for an input. The URL is relative; the
// endpoint resolver fills in scheme and host.
type Serializer[In any] func(in In, bag *configbag.Bag) (*sdkhttp.Request, error)

// Deserializer turns a fully read response into an output. A returned error
// is the operation's modeled error and fails the attempt as a SERVICE_ERROR.
type Deserializer[Out any] func(resp *sdkhttp.Response) (Out, error)

// Operation describes one service call.
type Operation[In, Out any] struct {
	Service      string
	Name         string
	Serializer   Serializer[In]
	Deserializer Deserializer[Out]

	// AuthParams and EndpointParams are handed to the auth option and
	// endpoint resolvers.
	AuthParams     typeerased.Box
	EndpointParams typeerased.Box
	// AuthOptions overrides the client's auth option resolver.
	AuthOptions []auth.Option
	// Interceptors run after the client's interceptors.
	Interceptors []orchestrator.Interceptor
}

// Metadata returns the operation's service and name.
func (op Operation[In, Out]) Metadata() orchestrator.Metadata {
	return orchestrator.Metadata{Service: op.Service, Operation: op.Name}
}

// layer builds the operation layer pushed above the client's base layer.
func (op Operation[In, Out]) layer() *configbag.Layer {
	l := configbag.NewLayer("operation:" + op.Metadata().String())
	orchestrator.SetMetadata(l, op.Metadata())
	if op.Serializer != nil {
		orchestrator.SetRequestSerializer(l, orchestrator.SerializerFunc(func(input typeerased.Box, bag *configbag.Bag) (*sdkhttp.Request, error) {
			in, _, ok := typeerased.Downcast[In](input)
			if !ok {
				return nil, fmt.Errorf("sdk: %s expects input %T, got %s", op.Metadata(), in, input.TypeName())
			}
			return op.Serializer(in, bag)
		}))
	}
	if op.Deserializer != nil {
		orchestrator.SetResponseDeserializer(l, orchestrator.DeserializerFunc(func(resp *sdkhttp.Response) orchestrator.OutputOrError {
			out, err := op.Deserializer(resp)
			if err != nil {
				return orchestrator.Fail(err)
			}
			return orchestrator.Ok(typeerased.New(out))
		}))
	}
	if !op.AuthParams.IsEmpty() {
		orchestrator.SetAuthParams(l, op.AuthParams)
	}
	if !op.EndpointParams.IsEmpty() {
		orchestrator.SetEndpointParams(l, op.EndpointParams)
	}
	if op.AuthOptions != nil {
		orchestrator.SetAuthOptionResolver(l, auth.StaticOptionResolver(op.AuthOptions))
	}
	for _, i := range op.Interceptors {
		orchestrator.AddInterceptor(l, i)
	}
	return l
}

// Invoke runs the operation with bag as the client configuration. The bag
// gains the operation layer and must not be reused for another operation.
func (op Operation[In, Out]) Invoke(ctx context.Context, bag *configbag.Bag, in In) (Out, error) {
	var zero Out
	bag.PushLayer(op.layer().Freeze())

	out, err := orchestrator.Invoke(ctx, typeerased.New(in), bag)
	if err != nil {
		return zero, err
	}
	v, _, ok := typeerased.Downcast[Out](out)
	if !ok {
		return zero, errors.ResponseError(fmt.Errorf("sdk: %s produced %s, want %T", op.Metadata(), out.TypeName(), zero))
	}
	return v, nil
}

// Call invokes the operation on a fresh bag from client.
func (op Operation[In, Out]) Call(ctx context.Context, client *Client, in In) (Out, error) {
	return op.Invoke(ctx, client.ConfigBag(), in)
}
