package orchestrator

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kbukum/sdkcore/auth"
	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/endpoint"
	"github.com/kbukum/sdkcore/errors"
	"github.com/kbukum/sdkcore/logger"
	"github.com/kbukum/sdkcore/sdkbody"
	"github.com/kbukum/sdkcore/typeerased"
)

type run struct {
	bag          *configbag.Bag
	interceptors []Interceptor
	clock        clock.Clock
	log          *logger.Logger
	timeouts     TimeoutConfig
}

// Invoke executes one operation. The bag must hold every required component
// (see Validate); the returned box holds whatever the deserializer produced.
// Errors are *errors.SdkError values whose Kind tells where the operation
// failed and whose cause chain ends at the original failure.
func Invoke(ctx context.Context, input typeerased.Box, bag *configbag.Bag) (typeerased.Box, error) {
	r := &run{
		bag:          bag,
		interceptors: configbag.LoadAll[Interceptor](bag),
		clock:        configbag.LoadOr[clock.Clock](bag, clock.New()),
		log:          configbag.LoadOr(bag, logger.Get("orchestrator")).WithContext(ctx),
		timeouts:     configbag.LoadOr(bag, TimeoutConfig{}),
	}
	ictx := NewInterceptorContext(input)
	configbag.ClearAppended[TraceEvent](bag.Interceptor())

	// The probe runs on every exit, including an invalid bag, as long as
	// one is configured.
	defer func() {
		probe, ok := configbag.Load[TraceProbe](bag)
		if !ok || probe == nil {
			return
		}
		if err := probe.DispatchEvents(ctx, Events(bag), bag); err != nil {
			r.log.Warn("trace probe failed", logger.ErrorFields("dispatch_events", err))
		}
	}()

	if err := Validate(bag); err != nil {
		r.fail(ictx, err)
		return typeerased.Box{}, err
	}

	opCtx := ctx
	if d := r.timeouts.Operation; d > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	r.execute(opCtx, ictx)

	if err := ictx.Err(); err != nil {
		if d := r.timeouts.Operation; d > 0 && expired(opCtx, ctx) && !errors.IsKind(err, errors.KindTimeout) {
			err = errors.Timeout("operation", d, err)
			ictx.SetErr(err)
		}
		r.log.Debug("operation failed", logger.Fields(
			logger.FieldAttempt, ictx.Attempt(),
			logger.FieldError, err.Error(),
			logger.FieldErrorKind, string(errors.KindOf(err)),
		))
		return typeerased.Box{}, err
	}
	return ictx.Output(), nil
}

// expired reports whether inner hit its own deadline while outer is still live.
func expired(inner, outer context.Context) bool {
	return stderrors.Is(inner.Err(), context.DeadlineExceeded) && outer.Err() == nil
}

func (r *run) trace(ictx *InterceptorContext, err error) {
	configbag.Append(r.bag.Interceptor(), TraceEvent{
		Phase:   ictx.Phase(),
		Attempt: ictx.Attempt(),
		At:      r.clock.Now(),
		Err:     err,
	})
}

// fail records err in ictx and the trace.
func (r *run) fail(ictx *InterceptorContext, err error) {
	ictx.SetErr(err)
	r.trace(ictx, err)
}

func (r *run) execute(ctx context.Context, ictx *InterceptorContext) {
	r.beforeRetryLoop(ctx, ictx)
	if !ictx.Failed() {
		r.retryLoop(ctx, ictx)
	}
	r.complete(ctx, ictx)
}

func (r *run) beforeRetryLoop(ctx context.Context, ictx *InterceptorContext) {
	ictx.enter(PhaseBeforeSerialization)
	r.trace(ictx, nil)
	if err := runHook(ctx, r.interceptors, hookReadBeforeExecution, ictx, r.bag,
		func(h ReadBeforeExecution) hookFunc { return h.ReadBeforeExecution }); err != nil {
		r.fail(ictx, err)
		return
	}
	if err := runHook(ctx, r.interceptors, hookModifyBeforeSerialization, ictx, r.bag,
		func(h ModifyBeforeSerialization) hookFunc { return h.ModifyBeforeSerialization }); err != nil {
		r.fail(ictx, err)
		return
	}

	ictx.enter(PhaseSerialization)
	req, err := MustRequestSerializer(r.bag).SerializeInput(ictx.Input(), r.bag)
	if err == nil && req == nil {
		err = stderrors.New("serializer returned no request")
	}
	if err != nil {
		r.fail(ictx, errors.ConstructionFailure(err).WithDetail("phase", string(PhaseSerialization)))
		return
	}
	ictx.SetRequest(req)
	r.trace(ictx, nil)

	ictx.enter(PhaseBeforeTransmit)
	if err := runHook(ctx, r.interceptors, hookReadAfterSerialization, ictx, r.bag,
		func(h ReadAfterSerialization) hookFunc { return h.ReadAfterSerialization }); err != nil {
		r.fail(ictx, err)
		return
	}
	if err := runHook(ctx, r.interceptors, hookModifyBeforeRetryLoop, ictx, r.bag,
		func(h ModifyBeforeRetryLoop) hookFunc { return h.ModifyBeforeRetryLoop }); err != nil {
		r.fail(ictx, err)
	}
}

func (r *run) retryLoop(ctx context.Context, ictx *InterceptorContext) {
	strategy := MustRetryStrategy(r.bag)

	// The checkpoint is never sent; every retry sends a fresh clone of it.
	checkpoint, rewindable := ictx.Request().TryClone()

	if err := strategy.ShouldAttemptInitialRequest(ctx, r.bag); err != nil {
		if _, ok := errors.AsSdkError(err); !ok {
			err = errors.DispatchFailure(err).WithDetail("reason", "initial request refused by retry strategy")
		}
		r.fail(ictx, err)
		return
	}

	for attempt := 1; ; attempt++ {
		ictx.attempt = attempt
		if attempt > 1 {
			req, _ := checkpoint.TryClone()
			ictx.rewind(req)
		}

		r.attempt(ctx, ictx)

		if ictx.Failed() && !rewindable {
			r.log.Warn("request body cannot be rewound; not retrying", logger.Fields(
				logger.FieldAttempt, attempt,
				logger.FieldError, ictx.Err().Error(),
			))
			return
		}
		retry, err := strategy.ShouldAttemptRetry(ctx, ictx, r.bag)
		if err != nil {
			if ictx.Failed() {
				r.log.Debug("retry strategy refused retry", logger.ErrorFields("should_attempt_retry", err))
				return
			}
			r.fail(ictx, err)
			return
		}
		if !retry {
			return
		}
		fields := logger.Fields(logger.FieldAttempt, attempt+1)
		if ictx.Failed() {
			fields = logger.MergeWithError(fields, ictx.Err())
		}
		r.log.Debug("retrying request", fields)
	}
}

func (r *run) attempt(parent context.Context, ictx *InterceptorContext) {
	ctx := parent
	if d := r.timeouts.OperationAttempt; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, d)
		defer cancel()
	}

	r.tryAttempt(ctx, ictx)

	if d := r.timeouts.OperationAttempt; d > 0 && ictx.Failed() && expired(ctx, parent) &&
		!errors.IsKind(ictx.Err(), errors.KindTimeout) {
		ictx.SetErr(errors.Timeout("operation attempt", d, ictx.Err()))
	}

	if err := runHook(ctx, r.interceptors, hookModifyBeforeAttemptCompletion, ictx, r.bag,
		func(h ModifyBeforeAttemptCompletion) hookFunc { return h.ModifyBeforeAttemptCompletion }); err != nil {
		r.fail(ictx, err)
	}
	if err := runHook(ctx, r.interceptors, hookReadAfterAttempt, ictx, r.bag,
		func(h ReadAfterAttempt) hookFunc { return h.ReadAfterAttempt }); err != nil {
		r.fail(ictx, err)
	}
}

func (r *run) tryAttempt(ctx context.Context, ictx *InterceptorContext) {
	ictx.enter(PhaseBeforeTransmit)
	r.trace(ictx, nil)
	if err := runHook(ctx, r.interceptors, hookReadBeforeAttempt, ictx, r.bag,
		func(h ReadBeforeAttempt) hookFunc { return h.ReadBeforeAttempt }); err != nil {
		r.fail(ictx, err)
		return
	}

	opt, scheme, err := r.resolveAuth(ctx)
	if err != nil {
		r.fail(ictx, errors.ConstructionFailure(err).WithDetail("phase", "resolve_auth"))
		return
	}
	identity, err := scheme.IdentityResolver().ResolveIdentity(ctx, r.bag)
	if err != nil {
		r.fail(ictx, errors.ConstructionFailure(err).WithDetail("phase", "resolve_identity"))
		return
	}

	params := configbag.LoadOr(r.bag, EndpointParams{})
	ep, err := MustEndpointResolver(r.bag).ResolveEndpoint(ctx, params.Box)
	if err != nil {
		r.fail(ictx, errors.ConstructionFailure(err).WithDetail("phase", "resolve_endpoint"))
		return
	}
	if err := endpoint.Apply(ictx.Request(), ep); err != nil {
		r.fail(ictx, errors.ConstructionFailure(err).WithDetail("phase", "apply_endpoint"))
		return
	}

	if err := runHook(ctx, r.interceptors, hookModifyBeforeSigning, ictx, r.bag,
		func(h ModifyBeforeSigning) hookFunc { return h.ModifyBeforeSigning }); err != nil {
		r.fail(ictx, err)
		return
	}
	if err := scheme.Signer().SignRequest(ictx.Request(), identity, opt.Properties, r.bag); err != nil {
		r.fail(ictx, errors.ConstructionFailure(err).WithDetail("phase", "sign"))
		return
	}
	if err := runHook(ctx, r.interceptors, hookModifyBeforeTransmit, ictx, r.bag,
		func(h ModifyBeforeTransmit) hookFunc { return h.ModifyBeforeTransmit }); err != nil {
		r.fail(ictx, err)
		return
	}

	ictx.enter(PhaseTransmit)
	r.log.Debug("dispatching request", logger.Fields(
		logger.FieldAttempt, ictx.Attempt(),
		"auth_scheme", string(opt.SchemeID),
		"endpoint", ep.String(),
	))
	start := r.clock.Now()
	resp, err := MustConnection(r.bag).Call(ctx, ictx.Request())
	if err != nil {
		r.fail(ictx, errors.DispatchFailure(err))
		return
	}
	ictx.SetResponse(resp)
	r.log.Debug("received response", logger.Fields(
		logger.FieldAttempt, ictx.Attempt(),
		logger.FieldStatus, resp.StatusCode,
		logger.FieldDuration, r.clock.Since(start).Milliseconds(),
	))
	r.trace(ictx, nil)

	ictx.enter(PhaseBeforeDeserialization)
	if err := runHook(ctx, r.interceptors, hookReadAfterTransmit, ictx, r.bag,
		func(h ReadAfterTransmit) hookFunc { return h.ReadAfterTransmit }); err != nil {
		r.fail(ictx, err)
		return
	}
	if err := runHook(ctx, r.interceptors, hookModifyBeforeDeserialization, ictx, r.bag,
		func(h ModifyBeforeDeserialization) hookFunc { return h.ModifyBeforeDeserialization }); err != nil {
		r.fail(ictx, err)
		return
	}

	ictx.enter(PhaseDeserialization)
	result, err := r.deserialize(ctx, ictx)
	if err != nil {
		r.fail(ictx, err)
		return
	}
	if result.Err != nil {
		r.fail(ictx, errors.ServiceError(result.Err).WithStatus(ictx.Response().StatusCode))
	} else {
		ictx.SetOutput(result.Output)
		r.trace(ictx, nil)
	}

	ictx.enter(PhaseAfterDeserialization)
	if err := runHook(ctx, r.interceptors, hookReadAfterDeserialization, ictx, r.bag,
		func(h ReadAfterDeserialization) hookFunc { return h.ReadAfterDeserialization }); err != nil {
		r.fail(ictx, err)
	}
}

func (r *run) resolveAuth(ctx context.Context) (auth.Option, auth.Scheme, error) {
	params := configbag.LoadOr(r.bag, AuthParams{})
	options, err := MustAuthOptionResolver(r.bag).ResolveAuthOptions(ctx, params.Box)
	if err != nil {
		return auth.Option{}, nil, err
	}
	return auth.SelectOption(options, configbag.LoadAll[auth.Scheme](r.bag))
}

// deserialize tries the streaming path first, then reads the body into
// memory for the non-streaming path. Body failures surface as
// RESPONSE_ERROR.
func (r *run) deserialize(ctx context.Context, ictx *InterceptorContext) (OutputOrError, error) {
	d := MustResponseDeserializer(r.bag)
	resp := ictx.Response()

	if sd, ok := d.(StreamingDeserializer); ok {
		if result, handled := sd.DeserializeStreaming(resp); handled {
			return result, nil
		}
	}

	agg, err := sdkbody.Collect(ctx, resp.Body)
	if err != nil {
		return OutputOrError{}, errors.ResponseError(err).WithStatus(resp.StatusCode)
	}
	resp.Body = sdkbody.FromBytes(agg.Bytes())
	for k, vs := range agg.Trailers() {
		for _, v := range vs {
			resp.Header.Add(k, v)
		}
	}
	return d.DeserializeNonstreaming(resp), nil
}

func (r *run) complete(ctx context.Context, ictx *InterceptorContext) {
	ictx.enter(PhaseCompletion)
	if err := runHook(ctx, r.interceptors, hookModifyBeforeCompletion, ictx, r.bag,
		func(h ModifyBeforeCompletion) hookFunc { return h.ModifyBeforeCompletion }); err != nil {
		r.fail(ictx, err)
	}
	if err := runHook(ctx, r.interceptors, hookReadAfterExecution, ictx, r.bag,
		func(h ReadAfterExecution) hookFunc { return h.ReadAfterExecution }); err != nil {
		r.fail(ictx, err)
	}
	r.trace(ictx, ictx.Err())
}

// Elapsed returns the time between the first and last trace events.
func Elapsed(events []TraceEvent) time.Duration {
	if len(events) < 2 {
		return 0
	}
	return events[len(events)-1].At.Sub(events[0].At)
}
