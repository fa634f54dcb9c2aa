package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should be cached")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a should survive, got %v %v", v, ok)
	}
	if st := c.Stats(); st.Evictions != 1 || st.Size != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestLRUExpires(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("other", "v")
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 expired entry cleaned, got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("cache should be empty, size %d", c.Size())
	}
}

func TestLRUDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("user_1/dashboard", 1)
	c.Set("user_1/accounts", 2)
	c.Set("user_2/dashboard", 3)

	if n := c.DeletePrefix("user_1/"); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if _, ok := c.Get("user_2/dashboard"); !ok {
		t.Fatalf("other owner's entry must survive")
	}
}

func TestViewsInvalidateVariants(t *testing.T) {
	v := NewViews(10, time.Minute)
	ctx := context.Background()
	for _, key := range []string{"u/transactions", "u/transactions?account=a", "u/transactionsX"} {
		if _, err := Load(ctx, v, key, func(context.Context) (int, error) { return 1, nil }); err != nil {
			t.Fatalf("load %s: %v", key, err)
		}
	}

	if n := v.Invalidate("u/transactions"); n != 2 {
		t.Fatalf("expected 2 entries invalidated, got %d", n)
	}
	if st := v.Stats(); st.Size != 1 {
		t.Fatalf("unrelated key should remain, size %d", st.Size)
	}
}

func TestLoadCachesValuesNotErrors(t *testing.T) {
	v := NewViews(10, time.Minute)
	ctx := context.Background()
	var calls atomic.Int32

	boom := errors.New("boom")
	if _, err := Load(ctx, v, "k", func(context.Context) (int, error) {
		calls.Add(1)
		return 0, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := Load(ctx, v, "k", func(context.Context) (int, error) {
			calls.Add(1)
			return 42, nil
		})
		if err != nil || got != 42 {
			t.Fatalf("load: got %d err=%v", got, err)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 loader calls, got %d", calls.Load())
	}
}

func TestLoadSharesConcurrentMisses(t *testing.T) {
	v := NewViews(10, time.Minute)
	ctx := context.Background()
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Load(ctx, v, "slow", func(context.Context) (string, error) {
				calls.Add(1)
				<-release
				return "ok", nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() < 1 || calls.Load() > 8 {
		t.Fatalf("unexpected loader calls: %d", calls.Load())
	}
	if got, err := Load(ctx, v, "slow", func(context.Context) (string, error) {
		t.Fatalf("value should be cached")
		return "", nil
	}); err != nil || got != "ok" {
		t.Fatalf("cached load: got %q err=%v", got, err)
	}
}

func TestNilViewsDisablesCaching(t *testing.T) {
	var calls int
	for i := 0; i < 2; i++ {
		if _, err := Load(context.Background(), nil, "k", func(context.Context) (int, error) {
			calls++
			return 1, nil
		}); err != nil {
			t.Fatalf("load: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected loader on every call, got %d", calls)
	}
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	c := NewLRUCache[int](10, time.Millisecond)
	c.Set("k", 1)

	m := NewManager()
	m.Register(c)
	m.StartCleanup(5 * time.Millisecond)
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for c.Size() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expired entry was never cleaned")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
