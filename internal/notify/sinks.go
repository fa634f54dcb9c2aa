package notify

import (
	"context"
	"errors"
	"log/slog"

	"finance/internal/amqp"
	"finance/internal/cache"
	"finance/internal/core"
	"finance/internal/log"
)

// CacheSink drops the local cached copies of stale views. Invalidating
// Accounts also drops every account detail view of the owner.
type CacheSink struct {
	views *cache.Views
}

func NewCacheSink(views *cache.Views) *CacheSink {
	return &CacheSink{views: views}
}

func (s *CacheSink) Invalidate(ctx context.Context, owner core.OwnerID, views []View) error {
	removed := 0
	for _, v := range views {
		removed += s.views.Invalidate(Key(owner, v))
		// Account details show the default flag and balance listed in
		// the accounts view, so they go stale with it.
		if v == Accounts {
			removed += s.views.InvalidatePrefix(Key(owner, accountPrefix))
		}
	}
	slog.DebugContext(ctx, "Invalidated cached views",
		log.FieldComponent, log.ComponentCache,
		log.FieldOwnerID, string(owner),
		log.FieldCount, removed)
	return nil
}

// Chain applies its sinks in order. Every sink runs; their errors are
// joined.
type Chain []Sink

func (c Chain) Invalidate(ctx context.Context, owner core.OwnerID, views []View) error {
	var errs []error
	for _, sink := range c {
		if err := sink.Invalidate(ctx, owner, views); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Publisher is the part of the AMQP client used to fan notifications out to
// other processes.
type Publisher interface {
	PublishStaleViews(ctx context.Context, owner string, views []string) error
}

var _ Publisher = (*amqp.Client)(nil)

// AMQPSink forwards notifications to the broker.
type AMQPSink struct {
	pub Publisher
}

func NewAMQPSink(pub Publisher) *AMQPSink {
	return &AMQPSink{pub: pub}
}

func (s *AMQPSink) Invalidate(ctx context.Context, owner core.OwnerID, views []View) error {
	return s.pub.PublishStaleViews(ctx, string(owner), viewNames(views))
}

// RemoteHandler applies stale-view messages received from other processes
// to a local sink. Messages with an invalid owner are acknowledged and
// ignored.
func RemoteHandler(sink Sink) func(context.Context, *amqp.StaleViewsMessage) error {
	return func(ctx context.Context, msg *amqp.StaleViewsMessage) error {
		owner := core.OwnerID(msg.Owner)
		if err := owner.Validate(); err != nil {
			slog.WarnContext(ctx, "Ignoring stale views message",
				log.FieldComponent, log.ComponentNotify,
				log.FieldError, err)
			return nil
		}
		views := parseViews(msg.Views)
		if len(views) == 0 {
			return nil
		}
		return sink.Invalidate(ctx, owner, views)
	}
}
