package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finance/internal/cache"
	"finance/internal/core"
	"finance/internal/log"
	"finance/internal/notify"
	"finance/internal/storage"
)

// AuditStore lists what to audit and repairs drifted balances.
type AuditStore interface {
	ListOwners(ctx context.Context) ([]core.OwnerID, error)
	AccountIDs(ctx context.Context, owner core.OwnerID) ([]string, error)
	Reconcile(ctx context.Context, owner core.OwnerID) ([]storage.Drift, error)
}

// Verifier checks one account's cached balance against its transactions.
type Verifier interface {
	Verify(ctx context.Context, owner core.OwnerID, accountID string) error
}

// Inconsistency is an account whose cached balance disagrees with its
// transactions.
type Inconsistency struct {
	Owner     core.OwnerID
	AccountID string
	Err       error
}

// AuditReport summarizes one audit run.
type AuditReport struct {
	Owners       int
	Accounts     int
	Inconsistent []Inconsistency
	Repaired     []storage.Drift
	Duration     time.Duration
}

// Auditor verifies the balance invariant for every account of every owner.
type Auditor struct {
	accounts AuditStore
	ledger   Verifier
	local    *notify.CacheSink
	notifier Notifier
}

// NewAuditor builds an auditor. Repairs drop the affected owners' entries
// from views, when given, and are announced through notifier.
func NewAuditor(accounts AuditStore, ledger Verifier, views *cache.Views, notifier Notifier) *Auditor {
	a := &Auditor{
		accounts: accounts,
		ledger:   ledger,
		notifier: notifier,
	}
	if views != nil {
		a.local = notify.NewCacheSink(views)
	}
	return a
}

// Run audits all owners. With repair set, owners with inconsistent accounts
// get their balances recomputed from their transactions.
func (a *Auditor) Run(ctx context.Context, repair bool) (AuditReport, error) {
	start := time.Now()
	var report AuditReport

	owners, err := a.accounts.ListOwners(ctx)
	if err != nil {
		return report, fmt.Errorf("audit: list owners: %w", err)
	}

	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Owners++

		found, checked, err := a.auditOwner(ctx, owner)
		report.Accounts += checked
		if err != nil {
			return report, fmt.Errorf("audit %s: %w", owner, err)
		}
		report.Inconsistent = append(report.Inconsistent, found...)

		if !repair || len(found) == 0 {
			continue
		}
		drifts, err := a.accounts.Reconcile(ctx, owner)
		if err != nil {
			return report, fmt.Errorf("audit %s: %w", owner, err)
		}
		report.Repaired = append(report.Repaired, drifts...)
		if len(drifts) > 0 {
			a.invalidate(ctx, owner, notify.MutationViews(driftAccounts(drifts)...))
		}
	}

	report.Duration = time.Since(start)
	slog.InfoContext(ctx, "Balance audit complete",
		log.FieldComponent, log.ComponentAudit,
		"owners", report.Owners,
		"accounts", report.Accounts,
		"inconsistent", len(report.Inconsistent),
		"repaired", len(report.Repaired),
		log.FieldDuration, report.Duration.Milliseconds())
	return report, nil
}

func (a *Auditor) invalidate(ctx context.Context, owner core.OwnerID, views []notify.View) {
	if a.local != nil {
		a.local.Invalidate(ctx, owner, views)
	}
	if a.notifier != nil {
		a.notifier.Invalidate(owner, views...)
	}
}

func driftAccounts(drifts []storage.Drift) []string {
	ids := make([]string, len(drifts))
	for i, d := range drifts {
		ids[i] = d.AccountID
	}
	return ids
}

func (a *Auditor) auditOwner(ctx context.Context, owner core.OwnerID) ([]Inconsistency, int, error) {
	ids, err := a.accounts.AccountIDs(ctx, owner)
	if err != nil {
		return nil, 0, err
	}

	var found []Inconsistency
	for _, id := range ids {
		err := a.ledger.Verify(ctx, owner, id)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrInconsistent):
			slog.ErrorContext(ctx, "Balance inconsistent",
				log.FieldComponent, log.ComponentAudit,
				log.FieldOwnerID, string(owner),
				log.FieldAccountID, id,
				log.FieldError, err)
			found = append(found, Inconsistency{Owner: owner, AccountID: id, Err: err})
		case errors.Is(err, core.ErrNotFound):
			// Deleted between listing and verifying.
		default:
			return found, len(ids), err
		}
	}
	return found, len(ids), nil
}
