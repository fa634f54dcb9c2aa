// Package admission decides whether an owner may perform a create
// operation: a per-owner fixed-window rate limit plus blocking of abusive
// or explicitly banned owners.
package admission

import (
	"sync"
	"time"
)

// Limiter is a per-key fixed-window counter.
type Limiter struct {
	mu           sync.Mutex
	windows      map[string]*window
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time

	limit           int
	period          time.Duration
	cleanupInterval time.Duration
}

type window struct {
	start time.Time
	used  int
}

// LimiterConfig holds rate limiter configuration
type LimiterConfig struct {
	Limit           int
	Window          time.Duration
	CleanupInterval time.Duration
}

// DefaultLimiterConfig allows 10 creates per owner per hour.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		Limit:           10,
		Window:          time.Hour,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLimiter creates a limiter and starts its cleanup goroutine. Call Stop
// to release it.
func NewLimiter(config LimiterConfig) *Limiter {
	def := DefaultLimiterConfig()
	if config.Limit <= 0 {
		config.Limit = def.Limit
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}

	l := &Limiter{
		windows:         make(map[string]*window),
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
		limit:           config.Limit,
		period:          config.Window,
		cleanupInterval: config.CleanupInterval,
	}
	go l.startCleanup()
	return l
}

// AllowN reports whether n more units fit in key's current window and
// consumes them if so. A denied request consumes nothing.
func (l *Limiter) AllowN(key string, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.period {
		w = &window{start: now}
		l.windows[key] = w
	}

	if w.used+n > l.limit {
		return false
	}
	w.used += n
	return true
}

// Allow is AllowN with one unit.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

func (l *Limiter) startCleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupStaleEntries()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops windows that have already ended.
func (l *Limiter) cleanupStaleEntries() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.period {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// ActiveKeys returns the number of currently tracked keys
func (l *Limiter) ActiveKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Stop shuts down the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}
