package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finance/internal/core"
	"finance/internal/log"
	"finance/internal/notify"
)

// BudgetAlertThreshold is the share of the monthly budget, in percent, at
// which the owner is alerted.
const BudgetAlertThreshold = 80.0

// BudgetAlert describes an owner whose spending crossed the alert threshold.
type BudgetAlert struct {
	Owner    core.OwnerID
	Status   core.BudgetStatus
	Exceeded bool
	At       time.Time
}

// CheckBudgetAlert evaluates the owner's budget over all accounts and
// raises an alert when this month's expenses reached BudgetAlertThreshold
// percent of it. At most one alert is raised per owner and calendar month.
// It returns nil when no alert is due.
func (s *LedgerService) CheckBudgetAlert(ctx context.Context, owner core.OwnerID) (*BudgetAlert, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	status, err := s.CurrentBudget(ctx, owner, "")
	if err != nil {
		return nil, fmt.Errorf("check budget alert: %w", err)
	}
	if status.Budget == nil || status.PercentUsed == nil || *status.PercentUsed < BudgetAlertThreshold {
		return nil, nil
	}

	b, err := s.budgets.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("check budget alert: %w", err)
	}
	if b == nil {
		return nil, nil
	}
	now := s.now()
	if b.LastAlertSent != nil && sameMonth(*b.LastAlertSent, now) {
		return nil, nil
	}
	if err := s.budgets.MarkAlertSent(ctx, owner, now); err != nil {
		return nil, fmt.Errorf("check budget alert: %w", err)
	}

	alert := &BudgetAlert{
		Owner:    owner,
		Status:   status,
		Exceeded: status.CurrentExpenses.GreaterThan(*status.Budget),
		At:       now,
	}
	slog.WarnContext(ctx, "Budget alert",
		log.FieldComponent, log.ComponentLedger,
		log.FieldOwnerID, string(owner),
		log.FieldAmount, status.CurrentExpenses.String(),
		"budget", status.Budget.String(),
		"percent_used", *status.PercentUsed,
		"exceeded", alert.Exceeded)
	return alert, nil
}

// BudgetAlertSink checks budget alerts for owners whose budget view went
// stale. It is meant to run after the local cache sink so the evaluation
// reads fresh data.
func (s *LedgerService) BudgetAlertSink() notify.Sink {
	return notify.SinkFunc(func(ctx context.Context, owner core.OwnerID, views []notify.View) error {
		for _, v := range views {
			if v == notify.Budget {
				_, err := s.CheckBudgetAlert(ctx, owner)
				return err
			}
		}
		return nil
	})
}

func sameMonth(a, b time.Time) bool {
	a = a.In(b.Location())
	return a.Year() == b.Year() && a.Month() == b.Month()
}
