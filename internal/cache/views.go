package cache

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Views caches rendered read models (dashboards, account lists, budget
// status) by view key. Concurrent misses for the same key share one load.
type Views struct {
	lru   *LRUCache[any]
	group singleflight.Group
	// gen is bumped on every invalidation; a load that started before the
	// bump does not store its result.
	gen atomic.Uint64
}

func NewViews(maxSize int, ttl time.Duration) *Views {
	return &Views{lru: NewLRUCache[any](maxSize, ttl)}
}

// Invalidate drops the entry stored under key and any entry whose key is
// key followed by "?" (parameterized variants of the same view).
func (v *Views) Invalidate(key string) int {
	v.gen.Add(1)
	removed := v.lru.DeletePrefix(key + "?")
	if v.lru.remove(key) {
		removed++
	}
	return removed
}

// InvalidatePrefix drops every entry under prefix, for example all views of
// one owner.
func (v *Views) InvalidatePrefix(prefix string) int {
	v.gen.Add(1)
	return v.lru.DeletePrefix(prefix)
}

func (v *Views) CleanExpired() int { return v.lru.CleanExpired() }

func (v *Views) Stats() Stats { return v.lru.Stats() }

// Load returns the cached value of key, calling load on a miss. Errors are
// not cached. A nil *Views disables caching.
func Load[T any](ctx context.Context, v *Views, key string, load func(context.Context) (T, error)) (T, error) {
	if v == nil {
		return load(ctx)
	}
	if cached, ok := v.lru.Get(key); ok {
		if val, ok := cached.(T); ok {
			return val, nil
		}
	}

	res, err, _ := v.group.Do(key, func() (any, error) {
		gen := v.gen.Load()
		val, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if v.gen.Load() == gen {
			v.lru.Set(key, val)
		}
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}
