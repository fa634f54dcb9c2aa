package admission

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"finance/internal/core"
	"finance/internal/log"
)

// Metrics counts admission decisions.
type Metrics struct {
	Admitted     int64
	RateLimited  int64
	Blocked      int64
	Escalations  int64
	ActiveOwners int
}

// Guard is the admission-control collaborator consulted before create
// operations. Owners that keep hitting the rate limit are blocked for a
// while; owners listed in the rules are blocked permanently.
type Guard struct {
	limiter *Limiter
	rules   Rules
	now     func() time.Time

	mu           sync.Mutex
	static       map[string]struct{}
	denials      map[string]*denials
	blockedUntil map[string]time.Time

	admitted    atomic.Int64
	rateLimited atomic.Int64
	blocked     atomic.Int64
	escalations atomic.Int64
}

type denials struct {
	first time.Time
	count int
}

// NewGuard builds a guard from rules. Call Stop to release its limiter.
func NewGuard(rules Rules) *Guard {
	static := make(map[string]struct{}, len(rules.BlockedOwners))
	for _, o := range rules.BlockedOwners {
		if o = strings.TrimSpace(o); o != "" {
			static[o] = struct{}{}
		}
	}
	return &Guard{
		limiter:      NewLimiter(LimiterConfig{Limit: rules.Limit, Window: rules.Window}),
		rules:        rules,
		now:          time.Now,
		static:       static,
		denials:      make(map[string]*denials),
		blockedUntil: make(map[string]time.Time),
	}
}

// Admit returns nil when owner may consume units, core.ErrBlocked for a
// blocked owner and core.ErrRateLimited when the owner's window is spent.
func (g *Guard) Admit(ctx context.Context, owner core.OwnerID, units int) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if units <= 0 {
		units = 1
	}
	key := string(owner)

	if g.isBlocked(key) {
		g.blocked.Add(1)
		slog.WarnContext(ctx, "Blocked owner denied",
			log.FieldComponent, log.ComponentAdmission,
			log.FieldOwnerID, key)
		return core.ErrBlocked
	}

	if !g.limiter.AllowN(key, units) {
		g.rateLimited.Add(1)
		if g.recordDenial(key) {
			g.escalations.Add(1)
			slog.WarnContext(ctx, "Owner blocked after repeated rate limit denials",
				log.FieldComponent, log.ComponentAdmission,
				log.FieldOwnerID, key,
				"block_for", g.rules.BlockFor.String())
		}
		return core.ErrRateLimited
	}

	g.admitted.Add(1)
	return nil
}

func (g *Guard) isBlocked(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.static[key]; ok {
		return true
	}
	until, ok := g.blockedUntil[key]
	if !ok {
		return false
	}
	if g.now().Before(until) {
		return true
	}
	delete(g.blockedUntil, key)
	return false
}

// recordDenial counts a rate limit denial and reports whether it escalated
// the owner to a temporary block.
func (g *Guard) recordDenial(key string) bool {
	if g.rules.EscalateAfter <= 0 {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	d, ok := g.denials[key]
	if !ok || now.Sub(d.first) >= g.rules.EscalateWindow {
		d = &denials{first: now}
		g.denials[key] = d
	}
	d.count++

	if d.count < g.rules.EscalateAfter {
		return false
	}
	delete(g.denials, key)
	g.blockedUntil[key] = now.Add(g.rules.BlockFor)
	return true
}

// Metrics returns a snapshot of the decision counters.
func (g *Guard) Metrics() Metrics {
	return Metrics{
		Admitted:     g.admitted.Load(),
		RateLimited:  g.rateLimited.Load(),
		Blocked:      g.blocked.Load(),
		Escalations:  g.escalations.Load(),
		ActiveOwners: g.limiter.ActiveKeys(),
	}
}

func (g *Guard) Stop() {
	g.limiter.Stop()
}

// setClock replaces the time source of the guard and its limiter.
func (g *Guard) setClock(now func() time.Time) {
	g.now = now
	g.limiter.mu.Lock()
	g.limiter.now = now
	g.limiter.mu.Unlock()
}
