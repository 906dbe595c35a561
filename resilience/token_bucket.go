package resilience

import (
	"sync"
)

// TokenBucketConfig configures a retry quota.
type TokenBucketConfig struct {
	// Name identifies this bucket for logging.
	Name string
	// Capacity is the number of tokens the bucket starts with and is capped at.
	Capacity int
	// OnExhausted is called when an acquisition is refused.
	OnExhausted func(name string, requested, available int)
}

// DefaultTokenBucketConfig returns a 500-token bucket.
func DefaultTokenBucketConfig(name string) TokenBucketConfig {
	return TokenBucketConfig{
		Name:     name,
		Capacity: 500,
	}
}

// TokenBucket is a retry quota. Unlike a rate limiter it does not refill
// with time: tokens come back only through Release.
type TokenBucket struct {
	config TokenBucketConfig

	mu     sync.Mutex
	tokens int
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(config TokenBucketConfig) *TokenBucket {
	if config.Capacity <= 0 {
		config.Capacity = 500
	}
	return &TokenBucket{config: config, tokens: config.Capacity}
}

// Acquire takes n tokens. It returns false, taking nothing, when fewer than n
// are available.
func (b *TokenBucket) Acquire(n int) bool {
	b.mu.Lock()
	if b.tokens >= n {
		b.tokens -= n
		b.mu.Unlock()
		return true
	}
	available := b.tokens
	b.mu.Unlock()

	if b.config.OnExhausted != nil {
		b.config.OnExhausted(b.config.Name, n, available)
	}
	return false
}

// Release returns n tokens, never exceeding capacity.
func (b *TokenBucket) Release(n int) {
	if n <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = min(b.tokens+n, b.config.Capacity)
}

// Available returns the current number of tokens.
func (b *TokenBucket) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Capacity returns the maximum number of tokens.
func (b *TokenBucket) Capacity() int {
	return b.config.Capacity
}

// Name returns the bucket name.
func (b *TokenBucket) Name() string {
	return b.config.Name
}
