package orchestrator

import (
	"context"

	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/errors"
)

// Interceptor is a named set of lifecycle hooks. Each hook is an optional
// interface below; a hook returning an error fails the current attempt, or
// the whole operation when it runs outside the retry loop.
type Interceptor interface {
	Name() string
}

// ReadBeforeExecution runs once before anything else.
type ReadBeforeExecution interface {
	ReadBeforeExecution(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) error
}

// ModifyBeforeSerialization may replace the input.
type ModifyBeforeSerialization interface {
	ModifyBeforeSerialization(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) error
}

// ReadAfterSerialization observes the serialized request.
type ReadAfterSerialization interface {
	ReadAfterSerialization(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) error
}

// ModifyBeforeRetryLoop may modify the request once, before it is
// checkpointed for retries.
type ModifyBeforeRetryLoop interface {
	ModifyBeforeRetryLoop(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) error
}

// ReadBeforeAttempt runs at the start of every attempt.
type ReadBeforeAttempt interface {
	ReadBeforeAttempt(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) error
}

// ModifyBeforeSigning may modify the request after the endpoint was applied.
type ModifyBeforeSigning interface {
	ModifyBeforeSigning(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) error
}

// ModifyBeforeTransmit may modify the signed request.
type ModifyBeforeTransmit interface {
	ModifyBeforeTransmit(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) error
}

// ReadAfterTransmit observes the raw response.
type ReadAfterTransmit interface {
	ReadAfterTransmit(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) error
}

// ModifyBeforeDeserialization may modify the response, e.g. wrap its body.
type ModifyBeforeDeserialization interface {
	ModifyBeforeDeserialization(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) error
}

// ReadAfterDeserialization observes the output or error of an attempt.
type ReadAfterDeserialization interface {
	ReadAfterDeserialization(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) error
}

// ModifyBeforeAttemptCompletion may change the result of an attempt.
type ModifyBeforeAttemptCompletion interface {
	ModifyBeforeAttemptCompletion(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) error
}

// ReadAfterAttempt runs at the end of every attempt, failed or not.
type ReadAfterAttempt interface {
	ReadAfterAttempt(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) error
}

// ModifyBeforeCompletion may change the final result.
type ModifyBeforeCompletion interface {
	ModifyBeforeCompletion(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) error
}

// ReadAfterExecution runs once at the very end, failed or not.
type ReadAfterExecution interface {
	ReadAfterExecution(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) error
}

// Hook names used in interceptor errors.
const (
	hookReadBeforeExecution           = "read_before_execution"
	hookModifyBeforeSerialization     = "modify_before_serialization"
	hookReadAfterSerialization        = "read_after_serialization"
	hookModifyBeforeRetryLoop         = "modify_before_retry_loop"
	hookReadBeforeAttempt             = "read_before_attempt"
	hookModifyBeforeSigning           = "modify_before_signing"
	hookModifyBeforeTransmit          = "modify_before_transmit"
	hookReadAfterTransmit             = "read_after_transmit"
	hookModifyBeforeDeserialization   = "modify_before_deserialization"
	hookReadAfterDeserialization      = "read_after_deserialization"
	hookModifyBeforeAttemptCompletion = "modify_before_attempt_completion"
	hookReadAfterAttempt              = "read_after_attempt"
	hookModifyBeforeCompletion        = "modify_before_completion"
	hookReadAfterExecution            = "read_after_execution"
)

type hookFunc func(ctx context.Context, ictx *InterceptorContext, bag *configbag.Bag) error

// runHook calls the H hook of every interceptor that implements it, in
// registration order, and stops at the first failure.
func runHook[H any](ctx context.Context, interceptors []Interceptor, name string, ictx *InterceptorContext, bag *configbag.Bag, pick func(H) hookFunc) error {
	for _, i := range interceptors {
		h, ok := i.(H)
		if !ok {
			continue
		}
		if err := pick(h)(ctx, ictx, bag); err != nil {
			return errors.InterceptorError(i.Name(), name, err)
		}
	}
	return nil
}
