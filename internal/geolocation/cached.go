package geolocation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PositionCache stores the most recent position. Get returns nil, nil on a miss.
type PositionCache interface {
	Get(ctx context.Context) (*Position, error)
	Set(ctx context.Context, pos Position) error
}

// CachedLocator serves positions younger than Options.MaximumAge from a
// PositionCache and asks the wrapped Locator otherwise.
type CachedLocator struct {
	next  Locator
	cache PositionCache
	log   *slog.Logger
	now   func() time.Time
}

// NewCachedLocator wraps next with cache.
func NewCachedLocator(next Locator, cache PositionCache, log *slog.Logger) *CachedLocator {
	return &CachedLocator{next: next, cache: cache, log: log, now: time.Now}
}

// Locate returns the cached position when it is no older than
// opts.MaximumAge, and otherwise asks the wrapped Locator and caches its
// answer. Failures are never cached.
func (c *CachedLocator) Locate(ctx context.Context, opts Options) (Position, error) {
	if opts.MaximumAge > 0 {
		cached, err := c.cache.Get(ctx)
		if err != nil {
			c.log.Warn("position cache get failed", "err", err)
		}
		if cached != nil && c.now().Sub(cached.Timestamp) <= opts.MaximumAge {
			return *cached, nil
		}
	}

	pos, err := c.next.Locate(ctx, opts)
	if err != nil {
		return Position{}, err
	}

	if err := c.cache.Set(ctx, pos); err != nil {
		c.log.Warn("position cache set failed", "err", err)
	}
	return pos, nil
}

// MemoryCache is an in-process PositionCache.
type MemoryCache struct {
	mu  sync.Mutex
	pos *Position
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// Get returns a copy of the stored position, or nil, nil when empty.
func (m *MemoryCache) Get(_ context.Context) (*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos == nil {
		return nil, nil
	}
	p := *m.pos
	return &p, nil
}

// Set replaces the stored position.
func (m *MemoryCache) Set(_ context.Context, pos Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos = &pos
	return nil
}
