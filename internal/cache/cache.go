// Package cache holds read-query results for a freshness window so repeated
// reads within one session do not hit the backend again.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"moodle-assistant/internal/common/errors"
	"moodle-assistant/internal/common/logger"
	"moodle-assistant/internal/common/metrics"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultStaleTime  = 5 * time.Minute
	DefaultRetry      = 1
	DefaultRetryDelay = time.Second
)

type Options struct {
	StaleTime  time.Duration
	Retry      int
	RetryDelay time.Duration
}

type entry struct {
	value     interface{}
	fetchedAt time.Time
}

type Cache struct {
	opts   Options
	logger logger.Logger
	now    func() time.Time

	group singleflight.Group

	mu         sync.Mutex
	entries    map[string]entry
	generation uint64
}

// New builds a cache. A zero StaleTime or RetryDelay takes the default; a
// negative Retry disables retries.
func New(opts Options, log logger.Logger) *Cache {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Cache{
		opts:    opts,
		logger:  log.WithFields(map[string]interface{}{"component": "query-cache"}),
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Fetch returns the cached value for key while it is fresh, otherwise runs fn.
// Concurrent callers for the same key share one call unless a Clear or
// Invalidate happened in between. Only successful results are stored.
func Fetch[T any](ctx context.Context, c *Cache, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := c.lookup(key); ok {
		if typed, ok := v.(T); ok {
			metrics.QueryCacheLookups.WithLabelValues("hit").Inc()
			return typed, nil
		}
	}
	metrics.QueryCacheLookups.WithLabelValues("miss").Inc()

	gen := c.currentGeneration()
	flight := fmt.Sprintf("%d:%s", gen, key)

	v, err, _ := c.group.Do(flight, func() (interface{}, error) {
		result, err := c.run(ctx, key, func(ctx context.Context) (interface{}, error) {
			return fn(ctx)
		})
		if err != nil {
			return nil, err
		}

		c.store(key, result, gen)
		return result, nil
	})

	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache: key %q holds %T", key, v)
	}
	return typed, nil
}

func (c *Cache) run(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	var lastErr error
	for attempt := 0; attempt <= c.opts.Retry; attempt++ {
		if attempt > 0 {
			metrics.QueryRetries.Inc()
			c.logger.Debug("retrying query", map[string]interface{}{
				"key":     key,
				"attempt": attempt,
				"error":   lastErr.Error(),
			})

			timer := time.NewTimer(c.opts.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, lastErr
			case <-timer.C:
			}
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !errors.IsRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (c *Cache) lookup(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= c.opts.StaleTime {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// store drops results of fetches that started before the last Clear or Invalidate.
func (c *Cache) store(key string, value interface{}, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}
	c.entries[key] = entry{value: value, fetchedAt: c.now()}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
	c.generation++
}

// Invalidate drops every entry whose key starts with prefix.
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.generation++
}

// Len reports how many entries are held, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
