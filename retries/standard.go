package retries

import (
	"context"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/errors"
	"github.com/kbukum/sdkcore/logger"
	"github.com/kbukum/sdkcore/orchestrator"
	"github.com/kbukum/sdkcore/resilience"
)

// HeaderRetryAfter carries a service-requested delay in milliseconds.
const HeaderRetryAfter = "x-amz-retry-after"

// Retry quota costs.
const (
	DefaultRetryCost        = 5
	DefaultTimeoutRetryCost = 10
	DefaultNoRetryIncrement = 1
	DefaultMaxAttempts      = 3
)

// StandardOptions configures the Standard strategy.
type StandardOptions struct {
	// MaxAttempts counts the initial request. Defaults to 3.
	MaxAttempts int
	// Backoff computes the wait before each retry.
	Backoff resilience.BackoffConfig
	// Quota is shared by every operation using the strategy. Defaults to a
	// 500-token bucket.
	Quota *resilience.TokenBucket
	// RetryCost is drawn from the quota per retry. Defaults to 5.
	RetryCost int
	// TimeoutRetryCost replaces RetryCost for retries after timeouts.
	// Defaults to 10.
	TimeoutRetryCost int
	// NoRetryIncrement is returned to the quota when a first attempt
	// succeeds. Defaults to 1.
	NoRetryIncrement int
	// Clock drives backoff sleeps. Defaults to the clock in the config bag,
	// then the wall clock.
	Clock clock.Clock
	// Classifier decides what is retryable. Defaults to Classify.
	Classifier func(ictx *orchestrator.InterceptorContext) Kind
}

// Standard retries retryable failures with exponential backoff, bounded by
// a maximum attempt count and a retry quota.
type Standard struct {
	opts StandardOptions
	log  *logger.Logger
}

// NewStandard creates a Standard strategy.
func NewStandard(opts StandardOptions) *Standard {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	opts.Backoff.ApplyDefaults()
	log := logger.Get("retries")
	if opts.Quota == nil {
		cfg := resilience.DefaultTokenBucketConfig("standard")
		cfg.OnExhausted = func(name string, requested, available int) {
			log.Warn("retry quota exhausted", logger.Fields(
				"quota", name,
				"requested", requested,
				"available", available,
			))
		}
		opts.Quota = resilience.NewTokenBucket(cfg)
	}
	if opts.RetryCost <= 0 {
		opts.RetryCost = DefaultRetryCost
	}
	if opts.TimeoutRetryCost <= 0 {
		opts.TimeoutRetryCost = DefaultTimeoutRetryCost
	}
	if opts.NoRetryIncrement <= 0 {
		opts.NoRetryIncrement = DefaultNoRetryIncrement
	}
	if opts.Classifier == nil {
		opts.Classifier = func(ictx *orchestrator.InterceptorContext) Kind {
			return Classify(ictx.Err(), ictx.Response())
		}
	}
	return &Standard{opts: opts, log: log}
}

// MaxAttempts returns the attempt limit, counting the initial request.
func (s *Standard) MaxAttempts() int { return s.opts.MaxAttempts }

// Quota returns the retry quota.
func (s *Standard) Quota() *resilience.TokenBucket { return s.opts.Quota }

// ShouldAttemptInitialRequest implements orchestrator.RetryStrategy.
func (s *Standard) ShouldAttemptInitialRequest(context.Context, *configbag.Bag) error {
	return nil
}

// ShouldAttemptRetry implements orchestrator.RetryStrategy. A success
// refunds the tokens the last retry drew. A retry waits out its backoff
// before returning true.
func (s *Standard) ShouldAttemptRetry(ctx context.Context, ictx *orchestrator.InterceptorContext, bag *configbag.Bag) (bool, error) {
	_, _, err := s.decide(ctx, ictx, bag)
	if err != nil {
		return false, err
	}
	return s.wait(ctx, ictx, bag)
}

// decide records the attempt outcome against the quota. It returns the
// classification and whether a retry may follow.
func (s *Standard) decide(_ context.Context, ictx *orchestrator.InterceptorContext, bag *configbag.Bag) (Kind, bool, error) {
	st := stateOf(bag)
	attempt := ictx.Attempt()
	if attempt <= 1 {
		*st = attemptState{}
	}

	if !ictx.Failed() {
		if st.lastCost > 0 {
			s.opts.Quota.Release(st.lastCost)
		} else {
			s.opts.Quota.Release(s.opts.NoRetryIncrement)
		}
		st.lastCost, st.retry = 0, false
		return NotRetryable, false, nil
	}

	kind := s.opts.Classifier(ictx)
	st.retry = false
	if !kind.Retryable() {
		return kind, false, nil
	}
	if attempt >= s.opts.MaxAttempts {
		s.log.Debug("max attempts reached", logger.Fields(
			logger.FieldAttempt, attempt,
			logger.FieldMaxAttempts, s.opts.MaxAttempts,
		))
		return kind, false, nil
	}

	cost := s.opts.RetryCost
	if errors.IsKind(ictx.Err(), errors.KindTimeout) {
		cost = s.opts.TimeoutRetryCost
	}
	if !s.opts.Quota.Acquire(cost) {
		return kind, false, nil
	}
	st.lastCost, st.retry, st.kind = cost, true, kind
	return kind, true, nil
}

func (s *Standard) wait(ctx context.Context, ictx *orchestrator.InterceptorContext, bag *configbag.Bag) (bool, error) {
	st := stateOf(bag)
	if !st.retry {
		return false, nil
	}
	delay := s.delay(ictx)
	s.log.Debug("backing off before retry", logger.Fields(
		logger.FieldAttempt, ictx.Attempt(),
		logger.FieldBackoff, delay.Milliseconds(),
		"retry_kind", st.kind.String(),
	))
	if err := resilience.Sleep(ctx, s.clock(bag), delay); err != nil {
		return false, err
	}
	return true, nil
}

// delay honours a service-requested delay, capped at the maximum backoff.
func (s *Standard) delay(ictx *orchestrator.InterceptorContext) time.Duration {
	if resp := ictx.Response(); resp != nil {
		if v := resp.Header.Get(HeaderRetryAfter); v != "" {
			if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms >= 0 {
				return min(time.Duration(ms)*time.Millisecond, s.opts.Backoff.MaxBackoff)
			}
		}
	}
	return s.opts.Backoff.Duration(ictx.Attempt())
}

func (s *Standard) clock(bag *configbag.Bag) clock.Clock {
	if s.opts.Clock != nil {
		return s.opts.Clock
	}
	if clk, ok := configbag.Load[clock.Clock](bag); ok {
		return clk
	}
	return clock.New()
}

// attemptState is the per-invocation retry bookkeeping. It lives in the
// bag's interceptor layer, which is fresh for every invocation.
type attemptState struct {
	lastCost int
	retry    bool
	kind     Kind
}

func stateOf(bag *configbag.Bag) *attemptState {
	if st, ok := configbag.Load[*attemptState](bag); ok && st != nil {
		return st
	}
	st := &attemptState{}
	configbag.Store(bag.Interceptor(), st)
	return st
}

// NeverRetry makes exactly one attempt.
type NeverRetry struct{}

// MaxAttempts returns 1.
func (NeverRetry) MaxAttempts() int { return 1 }

// ShouldAttemptInitialRequest implements orchestrator.RetryStrategy.
func (NeverRetry) ShouldAttemptInitialRequest(context.Context, *configbag.Bag) error { return nil }

// ShouldAttemptRetry implements orchestrator.RetryStrategy.
func (NeverRetry) ShouldAttemptRetry(context.Context, *orchestrator.InterceptorContext, *configbag.Bag) (bool, error) {
	return false, nil
}
