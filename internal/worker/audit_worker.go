package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"finance/internal/log"
	"finance/internal/services"

	"github.com/robfig/cron/v3"
)

const DefaultAuditSchedule = "@every 1h"

// ErrAuditRunning is returned when an audit is requested while another one
// is still in progress.
var ErrAuditRunning = errors.New("audit already running")

// Auditor runs one pass over every account.
type Auditor interface {
	Run(ctx context.Context, repair bool) (services.AuditReport, error)
}

// AuditWorker runs the balance audit on a cron schedule.
type AuditWorker struct {
	auditor  Auditor
	schedule string
	repair   bool

	running atomic.Bool
	runs    atomic.Int64
	last    atomic.Pointer[services.AuditReport]
}

func NewAuditWorker(auditor Auditor, schedule string, repair bool) *AuditWorker {
	if schedule == "" {
		schedule = DefaultAuditSchedule
	}
	return &AuditWorker{
		auditor:  auditor,
		schedule: schedule,
		repair:   repair,
	}
}

// RunOnce performs a single audit unless one is already running.
func (w *AuditWorker) RunOnce(ctx context.Context) (services.AuditReport, error) {
	if !w.running.CompareAndSwap(false, true) {
		return services.AuditReport{}, ErrAuditRunning
	}
	defer w.running.Store(false)

	report, err := w.auditor.Run(ctx, w.repair)
	w.runs.Add(1)
	if err != nil {
		slog.ErrorContext(ctx, "Balance audit failed",
			log.FieldComponent, log.ComponentWorker,
			log.FieldError, err)
		return report, err
	}
	w.last.Store(&report)

	if n := len(report.Inconsistent); n > 0 {
		slog.WarnContext(ctx, "Balance audit found inconsistent accounts",
			log.FieldComponent, log.ComponentWorker,
			log.FieldCount, n,
			"repair", w.repair)
	}
	return report, nil
}

// Start schedules the audit and blocks until ctx is done. Runs in flight
// when ctx ends are waited for.
func (w *AuditWorker) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(w.schedule, func() {
		if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, ErrAuditRunning) && ctx.Err() == nil {
			slog.WarnContext(ctx, "Scheduled audit did not complete",
				log.FieldComponent, log.ComponentWorker,
				log.FieldError, err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule audit: %w", err)
	}

	c.Start()
	slog.InfoContext(ctx, "Audit worker started",
		log.FieldComponent, log.ComponentWorker,
		"schedule", w.schedule,
		"repair", w.repair)

	<-ctx.Done()
	<-c.Stop().Done()
	slog.InfoContext(ctx, "Audit worker stopped",
		log.FieldComponent, log.ComponentWorker,
		"runs", w.runs.Load())
	return nil
}

// Runs returns how many audits have completed, successfully or not.
func (w *AuditWorker) Runs() int64 {
	return w.runs.Load()
}

// LastReport returns the most recent successful report, if any.
func (w *AuditWorker) LastReport() (services.AuditReport, bool) {
	r := w.last.Load()
	if r == nil {
		return services.AuditReport{}, false
	}
	return *r, true
}
