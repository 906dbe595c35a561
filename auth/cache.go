package auth

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"

	"github.com/kbukum/sdkcore/configbag"
)

// DefaultExpiryBuffer is how long before expiration a cached identity is
// refreshed.
const DefaultExpiryBuffer = 10 * time.Second

// DefaultLoadTimeout bounds a shared identity load.
const DefaultLoadTimeout = 30 * time.Second

// CachedIdentityResolver caches identities from an inner resolver until
// shortly before they expire. Concurrent loads share one inner call.
type CachedIdentityResolver struct {
	inner   IdentityResolver
	buffer  time.Duration
	timeout time.Duration
	clock   clock.Clock

	mu     sync.RWMutex
	cached *Identity
	group  singleflight.Group
}

// CacheOption configures a CachedIdentityResolver.
type CacheOption func(*CachedIdentityResolver)

// WithExpiryBuffer sets how early identities are refreshed.
func WithExpiryBuffer(d time.Duration) CacheOption {
	return func(c *CachedIdentityResolver) { c.buffer = d }
}

// WithLoadTimeout bounds each shared load of the inner resolver.
func WithLoadTimeout(d time.Duration) CacheOption {
	return func(c *CachedIdentityResolver) { c.timeout = d }
}

// WithClock sets the clock used for expiry checks.
func WithClock(clk clock.Clock) CacheOption {
	return func(c *CachedIdentityResolver) { c.clock = clk }
}

// NewCachedIdentityResolver wraps inner with an expiry-aware cache.
func NewCachedIdentityResolver(inner IdentityResolver, opts ...CacheOption) *CachedIdentityResolver {
	c := &CachedIdentityResolver{
		inner:   inner,
		buffer:  DefaultExpiryBuffer,
		timeout: DefaultLoadTimeout,
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveIdentity implements IdentityResolver. The shared load is detached
// from ctx, so a cancelled caller stops waiting without failing the others.
func (c *CachedIdentityResolver) ResolveIdentity(ctx context.Context, bag *configbag.Bag) (Identity, error) {
	if id, ok := c.fresh(); ok {
		return id, nil
	}
	ch := c.group.DoChan("identity", func() (interface{}, error) {
		if id, ok := c.fresh(); ok {
			return id, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		id, err := c.inner.ResolveIdentity(loadCtx, bag)
		if err != nil {
			return Identity{}, err
		}
		c.mu.Lock()
		c.cached = &id
		c.mu.Unlock()
		return id, nil
	})
	select {
	case <-ctx.Done():
		return Identity{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Identity{}, res.Err
		}
		return res.Val.(Identity), nil
	}
}

// Invalidate drops the cached identity.
func (c *CachedIdentityResolver) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

func (c *CachedIdentityResolver) fresh() (Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cached == nil {
		return Identity{}, false
	}
	if c.cached.Expired(c.clock.Now().Add(c.buffer)) {
		return Identity{}, false
	}
	return *c.cached, true
}
