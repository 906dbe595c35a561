package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/kbukum/sdkcore/configbag"
)

// InvocationIDHeader carries the invocation ID on every attempt.
const InvocationIDHeader = "amz-sdk-invocation-id"

// InvocationIDInterceptor tags every attempt of an invocation with the same
// random ID so the service can correlate retries.
type InvocationIDInterceptor struct {
	// NewID generates IDs; uuid.NewString when nil.
	NewID func() string
}

// Name implements Interceptor.
func (*InvocationIDInterceptor) Name() string { return "invocation_id" }

// ModifyBeforeRetryLoop implements ModifyBeforeRetryLoop.
func (i *InvocationIDInterceptor) ModifyBeforeRetryLoop(_ context.Context, ictx *InterceptorContext, bag *configbag.Bag) error {
	newID := i.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	id := newID()
	ictx.Request().Header.Set(InvocationIDHeader, id)
	configbag.Store(bag.Interceptor(), InvocationID(id))
	return nil
}
