package retries

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/logger"
	"github.com/kbukum/sdkcore/orchestrator"
)

// AdaptiveOptions configures the Adaptive strategy.
type AdaptiveOptions struct {
	StandardOptions

	// InitialRate is the send rate, in requests per second, imposed on the
	// first throttling response. Defaults to 10.
	InitialRate float64
	// MinRate is the floor the send rate never drops below. Defaults to 0.5.
	MinRate float64
	// MaxRate lifts the limit entirely once the send rate recovers past it.
	// Defaults to 100.
	MaxRate float64
	// Beta multiplies the send rate on every throttling response. Defaults
	// to 0.7.
	Beta float64
	// Growth multiplies the send rate on every success. Defaults to 1.1.
	Growth float64
}

func (o *AdaptiveOptions) applyDefaults() {
	if o.InitialRate <= 0 {
		o.InitialRate = 10
	}
	if o.MinRate <= 0 {
		o.MinRate = 0.5
	}
	if o.MaxRate <= 0 {
		o.MaxRate = 100
	}
	if o.Beta <= 0 || o.Beta >= 1 {
		o.Beta = 0.7
	}
	if o.Growth <= 1 {
		o.Growth = 1.1
	}
}

// Adaptive is Standard plus a client-side send rate. The rate is unlimited
// until the service throttles; every request, initial or retry, waits for
// the limiter.
type Adaptive struct {
	*Standard
	opts AdaptiveOptions

	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewAdaptive creates an Adaptive strategy.
func NewAdaptive(opts AdaptiveOptions) *Adaptive {
	opts.applyDefaults()
	return &Adaptive{
		Standard: NewStandard(opts.StandardOptions),
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Inf, 1),
	}
}

// SendRate returns the current send rate; rate.Inf means unlimited.
func (a *Adaptive) SendRate() rate.Limit {
	return a.limiter.Limit()
}

// ShouldAttemptInitialRequest waits for the send-rate limiter.
func (a *Adaptive) ShouldAttemptInitialRequest(ctx context.Context, _ *configbag.Bag) error {
	return a.limiter.Wait(ctx)
}

// ShouldAttemptRetry implements orchestrator.RetryStrategy.
func (a *Adaptive) ShouldAttemptRetry(ctx context.Context, ictx *orchestrator.InterceptorContext, bag *configbag.Bag) (bool, error) {
	kind, retry, err := a.decide(ctx, ictx, bag)
	if err != nil {
		return false, err
	}
	a.adjust(kind, ictx.Failed())
	if !retry {
		return false, nil
	}
	ok, err := a.wait(ctx, ictx, bag)
	if !ok || err != nil {
		return ok, err
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Adaptive) adjust(kind Kind, failed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur := a.limiter.Limit()
	next := cur
	switch {
	case kind == Throttling:
		if cur == rate.Inf {
			next = rate.Limit(a.opts.InitialRate)
		} else {
			next = max(rate.Limit(a.opts.MinRate), cur*rate.Limit(a.opts.Beta))
		}
	case !failed && cur != rate.Inf:
		next = cur * rate.Limit(a.opts.Growth)
		if next >= rate.Limit(a.opts.MaxRate) {
			next = rate.Inf
		}
	}
	if next == cur {
		return
	}
	a.limiter.SetLimit(next)
	a.log.Debug("send rate adjusted", logger.Fields(
		"from", float64(cur),
		"to", float64(next),
		"retry_kind", kind.String(),
	))
}
