package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/benbjohnson/clock"
)

// BackoffConfig configures exponential backoff.
type BackoffConfig struct {
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration
	// BackoffFactor is the multiplier for exponential backoff.
	BackoffFactor float64
	// Jitter is the fraction of the delay that is randomized (0.0 to 1.0).
	// 1.0 picks uniformly between zero and the computed delay.
	Jitter float64
	// Rand returns a value in [0, 1). Defaults to math/rand.
	Rand func() float64
}

// DefaultBackoffConfig returns full-jitter exponential backoff starting at
// one second and capped at twenty.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     20 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         1.0,
	}
}

// ApplyDefaults fills in zero-value fields.
func (c *BackoffConfig) ApplyDefaults() {
	d := DefaultBackoffConfig()
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = d.BackoffFactor
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.Jitter > 1 {
		c.Jitter = 1
	}
}

// Duration returns the delay before retry number attempt (1-based).
func (c BackoffConfig) Duration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Exponential backoff: initial * factor^(attempt-1)
	backoff := float64(c.InitialBackoff) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if backoff > float64(c.MaxBackoff) || math.IsInf(backoff, 0) || math.IsNaN(backoff) {
		backoff = float64(c.MaxBackoff)
	}

	if c.Jitter > 0 {
		random := c.Rand
		if random == nil {
			random = rand.Float64
		}
		backoff -= backoff * c.Jitter * random()
	}

	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}

// Sleep waits for d on clk or until ctx is done.
func Sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if clk == nil {
		clk = clock.New()
	}
	timer := clk.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
