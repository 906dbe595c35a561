package retries

import (
	"context"
	"fmt"

	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/orchestrator"
)

// HeaderSDKRequest tells the service which attempt it is seeing.
const HeaderSDKRequest = "amz-sdk-request"

// AttemptLimiter is implemented by strategies with a fixed attempt limit.
type AttemptLimiter interface {
	MaxAttempts() int
}

// AttemptHeaderInterceptor sets "amz-sdk-request: attempt=N; max=M" on every
// attempt. max is omitted when the strategy in the bag has no fixed limit.
type AttemptHeaderInterceptor struct{}

// Name implements orchestrator.Interceptor.
func (AttemptHeaderInterceptor) Name() string { return "attempt_header" }

// ModifyBeforeSigning sets the header before the request is signed.
func (AttemptHeaderInterceptor) ModifyBeforeSigning(_ context.Context, ictx *orchestrator.InterceptorContext, bag *configbag.Bag) error {
	value := fmt.Sprintf("attempt=%d", ictx.Attempt())
	if rs, ok := configbag.Load[orchestrator.RetryStrategy](bag); ok {
		if l, ok := rs.(AttemptLimiter); ok {
			value += fmt.Sprintf("; max=%d", l.MaxAttempts())
		}
	}
	ictx.Request().Header.Set(HeaderSDKRequest, value)
	return nil
}
