package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finance/internal/amqp"
	"finance/internal/cache"
	"finance/internal/core"
)

type recordingSink struct {
	mu     sync.Mutex
	owners []core.OwnerID
	views  [][]View
	err    error
}

func (s *recordingSink) Invalidate(_ context.Context, owner core.OwnerID, views []View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners = append(s.owners, owner)
	s.views = append(s.views, views)
	return s.err
}

func (s *recordingSink) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.owners)
}

type fakePublisher struct {
	owner string
	views []string
}

func (p *fakePublisher) PublishStaleViews(_ context.Context, owner string, views []string) error {
	p.owner = owner
	p.views = views
	return nil
}

func TestKeys(t *testing.T) {
	if got := Key("user_1", Dashboard); got != "user_1/dashboard" {
		t.Errorf("Key = %q", got)
	}
	if got := Key("user_1", Account("abc")); got != "user_1/account/abc" {
		t.Errorf("Key = %q", got)
	}
	if id, ok := Account("abc").AccountID(); !ok || id != "abc" {
		t.Errorf("AccountID = %q, %v", id, ok)
	}
	if _, ok := Budget.AccountID(); ok {
		t.Error("budget view has no account")
	}
}

func TestMutationViews(t *testing.T) {
	views := MutationViews("a", "", "b", "a")
	want := []View{Dashboard, Accounts, Transactions, Budget, Account("a"), Account("b")}
	if len(views) != len(want) {
		t.Fatalf("got %v, want %v", views, want)
	}
	for i := range want {
		if views[i] != want[i] {
			t.Errorf("views[%d] = %q, want %q", i, views[i], want[i])
		}
	}
}

func TestDispatcherDeliversToEverySink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{err: errors.New("broker down")}
	d := NewDispatcher(8, a, b)

	if !d.Invalidate("user_1", Dashboard, Accounts) {
		t.Fatal("notification should be queued")
	}
	d.Close()

	if a.calls() != 1 || b.calls() != 1 {
		t.Fatalf("expected one call per sink, got %d and %d", a.calls(), b.calls())
	}
	if a.owners[0] != "user_1" || len(a.views[0]) != 2 {
		t.Fatalf("unexpected delivery: %v %v", a.owners, a.views)
	}
	stats := d.Stats()
	if stats.Sent != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDispatcherNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	slow := SinkFunc(func(ctx context.Context, _ core.OwnerID, _ []View) error {
		<-release
		return nil
	})
	d := NewDispatcher(1, slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Invalidate("user_1", Dashboard)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Invalidate blocked on a slow sink")
	}
	if d.Stats().Dropped == 0 {
		t.Fatal("expected dropped notifications with a full queue")
	}
	close(release)
	d.Close()
}

func TestDispatcherAfterClose(t *testing.T) {
	d := NewDispatcher(1)
	d.Close()
	d.Close()
	if d.Invalidate("user_1", Dashboard) {
		t.Fatal("closed dispatcher must not accept notifications")
	}

	var nilDispatcher *Dispatcher
	if nilDispatcher.Invalidate("user_1", Dashboard) {
		t.Fatal("nil dispatcher must not accept notifications")
	}
	nilDispatcher.Close()
}

func TestCacheSinkInvalidatesOwnerViews(t *testing.T) {
	ctx := context.Background()
	views := cache.NewViews(16, time.Minute)
	load := func(v int) func(context.Context) (int, error) {
		return func(context.Context) (int, error) { return v, nil }
	}

	keys := []string{
		Key("user_1", Dashboard),
		Key("user_1", Budget) + "?account=a",
		Key("user_2", Dashboard),
	}
	for _, k := range keys {
		if _, err := cache.Load(ctx, views, k, load(1)); err != nil {
			t.Fatalf("load %s: %v", k, err)
		}
	}

	if err := NewCacheSink(views).Invalidate(ctx, "user_1", []View{Dashboard, Budget}); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	for k, want := range map[string]int{keys[0]: 2, keys[1]: 2, keys[2]: 1} {
		got, err := cache.Load(ctx, views, k, load(2))
		if err != nil {
			t.Fatalf("reload %s: %v", k, err)
		}
		if got != want {
			t.Errorf("%s = %d, want %d", k, got, want)
		}
	}
}

func TestCacheSinkAccountsDropsDetails(t *testing.T) {
	ctx := context.Background()
	views := cache.NewViews(16, time.Minute)
	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	key := Key("user_1", Account("a"))
	if _, err := cache.Load(ctx, views, key, load); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := NewCacheSink(views).Invalidate(ctx, "user_1", []View{Accounts}); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if got, _ := cache.Load(ctx, views, key, load); got != 2 {
		t.Fatalf("account detail should reload after accounts invalidation, got %d", got)
	}
}

func TestAMQPSinkPublishesViewNames(t *testing.T) {
	pub := &fakePublisher{}
	if err := NewAMQPSink(pub).Invalidate(context.Background(), "user_1", []View{Dashboard, Account("x")}); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if pub.owner != "user_1" || len(pub.views) != 2 || pub.views[1] != "account/x" {
		t.Fatalf("unexpected publish: %s %v", pub.owner, pub.views)
	}
}

func TestRemoteHandler(t *testing.T) {
	sink := &recordingSink{}
	handle := RemoteHandler(sink)
	ctx := context.Background()

	if err := handle(ctx, &amqp.StaleViewsMessage{Owner: " ", Views: []string{"dashboard"}}); err != nil {
		t.Fatalf("blank owner should be ignored, got %v", err)
	}
	if err := handle(ctx, &amqp.StaleViewsMessage{Owner: "user_1", Views: []string{" ", ""}}); err != nil {
		t.Fatalf("empty views should be ignored, got %v", err)
	}
	if err := handle(ctx, &amqp.StaleViewsMessage{Owner: "user_1", Views: []string{"dashboard", "account/a"}}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if sink.calls() != 1 || sink.views[0][1] != Account("a") {
		t.Fatalf("unexpected deliveries: %v", sink.views)
	}
}

func TestChainRunsEverySink(t *testing.T) {
	boom := errors.New("broker down")
	first := &recordingSink{err: boom}
	second := &recordingSink{}

	err := Chain{first, second}.Invalidate(context.Background(), "user_1", []View{Budget})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the first sink's error, got %v", err)
	}
	if first.calls() != 1 || second.calls() != 1 {
		t.Fatalf("every sink should run: %d, %d", first.calls(), second.calls())
	}
	if err := (Chain{second}).Invalidate(context.Background(), "user_1", []View{Budget}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
