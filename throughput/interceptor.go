package throughput

import (
	"context"

	"github.com/benbjohnson/clock"

	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/orchestrator"
)

// Interceptor applies minimum-throughput protection to response bodies and
// to streaming request bodies. The clock comes from the config bag when
// Options.Clock is nil.
type Interceptor struct {
	Options Options
}

// NewInterceptor creates a stalled-stream protection interceptor.
func NewInterceptor(opts Options) *Interceptor {
	return &Interceptor{Options: opts}
}

// Name implements orchestrator.Interceptor.
func (i *Interceptor) Name() string { return "stalled_stream_protection" }

func (i *Interceptor) options(bag *configbag.Bag) Options {
	opts := i.Options
	if opts.Clock == nil && bag != nil {
		if clk, ok := configbag.Load[clock.Clock](bag); ok {
			opts.Clock = clk
		}
	}
	return opts
}

// ModifyBeforeTransmit wraps streaming request bodies. In-memory bodies are
// handed to the transport whole and are left alone.
func (i *Interceptor) ModifyBeforeTransmit(_ context.Context, ictx *orchestrator.InterceptorContext, bag *configbag.Bag) error {
	req := ictx.Request()
	if _, inMemory := req.Body.Bytes(); inMemory {
		return nil
	}
	req.Body = Wrap(req.Body, i.options(bag))
	return nil
}

// ModifyBeforeDeserialization wraps the response body.
func (i *Interceptor) ModifyBeforeDeserialization(_ context.Context, ictx *orchestrator.InterceptorContext, bag *configbag.Bag) error {
	resp := ictx.Response()
	resp.Body = Wrap(resp.Body, i.options(bag))
	return nil
}
