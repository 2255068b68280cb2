// Package cache provides TTL key/value stores shared by the dashboard caches
// and the upload progress tracker.
//
// Values are stored JSON-encoded so the in-memory and Redis stores behave the
// same way for callers.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yt-dashboard/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// LoadTimeout bounds a shared load once it no longer follows the caller's
// context.
const LoadTimeout = 30 * time.Second

// Store is a TTL key/value store.
type Store interface {
	// Get decodes the value stored under key into dst. It reports false when
	// the key is missing or expired.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// Close releases background resources.
	Close() error
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache is a named, prefixed view over a Store with a default TTL. Concurrent
// loads of the same key share one call.
type Cache struct {
	name  string
	store Store
	ttl   time.Duration
	group singleflight.Group
}

// New returns a Cache whose keys are prefixed with name.
func New(name string, store Store, ttl time.Duration) *Cache {
	return &Cache{name: name, store: store, ttl: ttl}
}

func (c *Cache) key(k string) string { return c.name + ":" + k }

// Get reads key into dst.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	return c.store.Get(ctx, c.key(key), dst)
}

// Set writes key with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	return c.store.Set(ctx, c.key(key), value, c.ttl)
}

// SetTTL writes key with an explicit TTL.
func (c *Cache) SetTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.store.Set(ctx, c.key(key), value, ttl)
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.key(key))
}

// GetOrLoad returns the cached value for key, calling load on a miss. Store
// failures degrade to calling load; load errors are returned and not cached.
//
// Concurrent misses share the first caller's load, which runs detached from
// that caller's cancellation. A waiter that joined a failed load retries with
// its own load, so one caller's credentials never fail another.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if hit, err := c.Get(ctx, key, &cached); err == nil && hit {
		metrics.ObserveCache(c.name, true)
		return cached, nil
	}
	metrics.ObserveCache(c.name, false)

	leader := false
	v, err, _ := c.group.Do(key, func() (any, error) {
		leader = true
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), LoadTimeout)
		defer cancel()
		return c.fill(lctx, key, func(ctx context.Context) (any, error) { return load(ctx) })
	})
	if err != nil && !leader {
		v, err = c.fill(ctx, key, func(ctx context.Context) (any, error) { return load(ctx) })
	}
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache %s: unexpected value type %T", c.name, v)
	}
	return out, nil
}

func (c *Cache) fill(ctx context.Context, key string, load func(context.Context) (any, error)) (any, error) {
	val, err := load(ctx)
	if err != nil {
		return nil, err
	}
	// A failed write only costs a future miss.
	_ = c.Set(ctx, key, val)
	return val, nil
}

func encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cache encode: %w", err)
	}
	return data, nil
}

func decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("cache decode: %w", err)
	}
	return nil
}
