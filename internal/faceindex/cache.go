package faceindex

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Cache holds one built ClassIndex per class. An entry is served unchanged
// until it is window old, then the next read rebuilds it synchronously.
// Concurrent misses may build the same class twice; the last one stored wins.
type Cache struct {
	builder IndexBuilder
	window  time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[int64]*ClassIndex
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithClock replaces time.Now
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithCacheLogger sets the cache's logger
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) { c.logger = logger }
}

// NewCache creates a cache. A non-positive window uses the default 30s.
func NewCache(builder IndexBuilder, window time.Duration, opts ...CacheOption) *Cache {
	if window <= 0 {
		window = constants.DefaultFreshnessWindow
	}
	c := &Cache{
		builder: builder,
		window:  window,
		now:     time.Now,
		logger:  slog.Default(),
		entries: make(map[int64]*ClassIndex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the index for classID, rebuilding it when missing or stale.
// If a rebuild fails and a stale index exists, the stale index is served.
func (c *Cache) Get(ctx context.Context, classID int64) (*ClassIndex, error) {
	now := c.now()

	c.mu.RLock()
	cached, ok := c.entries[classID]
	c.mu.RUnlock()

	if ok && now.Sub(cached.BuiltAt) < c.window {
		return cached, nil
	}

	built, err := c.builder.Build(ctx, classID)
	if err != nil {
		if ok {
			c.logger.Warn("class index rebuild failed, serving stale index",
				"class_id", classID, "age", now.Sub(cached.BuiltAt), "error", err)
			return cached, nil
		}
		return nil, err
	}
	built.ClassID = classID
	built.BuiltAt = now

	c.mu.Lock()
	c.entries[classID] = built
	c.mu.Unlock()

	return built, nil
}

// Len returns the number of cached classes
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Window returns the freshness window
func (c *Cache) Window() time.Duration {
	return c.window
}
