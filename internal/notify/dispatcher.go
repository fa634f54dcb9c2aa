package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"finance/internal/core"
	"finance/internal/log"
)

const (
	DefaultQueueSize = 256
	sinkTimeout      = 5 * time.Second
)

// Sink receives stale-view notifications.
type Sink interface {
	Invalidate(ctx context.Context, owner core.OwnerID, views []View) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, owner core.OwnerID, views []View) error

func (f SinkFunc) Invalidate(ctx context.Context, owner core.OwnerID, views []View) error {
	return f(ctx, owner, views)
}

type event struct {
	owner core.OwnerID
	views []View
}

// Dispatcher queues notifications and fans them out to its sinks on a
// background goroutine. Invalidate never blocks: when the queue is full the
// notification is dropped and counted.
type Dispatcher struct {
	sinks  []Sink
	events chan event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

func NewDispatcher(queueSize int, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		sinks:  sinks,
		events: make(chan event, queueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Invalidate announces that views of owner are stale. It reports whether
// the notification was queued.
func (d *Dispatcher) Invalidate(owner core.OwnerID, views ...View) bool {
	if d == nil || len(views) == 0 {
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.events <- event{owner: owner, views: views}:
		return true
	default:
		d.dropped.Add(1)
		slog.Warn("Notification queue full, dropping",
			log.FieldComponent, log.ComponentNotify,
			log.FieldOwnerID, string(owner),
			log.FieldCount, len(views))
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.events {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		err := sink.Invalidate(ctx, ev.owner, ev.views)
		cancel()
		if err != nil {
			d.failed.Add(1)
			slog.Warn("Notification sink failed",
				log.FieldComponent, log.ComponentNotify,
				log.FieldOwnerID, string(ev.owner),
				log.FieldError, err)
			continue
		}
		d.sent.Add(1)
	}
}

// Close stops accepting notifications and waits until the queued ones have
// been delivered.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	d.mu.Unlock()
	<-d.done
}

// Stats holds delivery counters.
type Stats struct {
	Sent    uint64
	Dropped uint64
	Failed  uint64
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:    d.sent.Load(),
		Dropped: d.dropped.Load(),
		Failed:  d.failed.Load(),
	}
}
