package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finance/internal/core"
	"finance/internal/log"

	"github.com/google/uuid"
)

// Budgets stores the single monthly budget of each owner and evaluates it
// against booked expenses.
type Budgets struct {
	db  *DB
	txs *Transactions
}

func NewBudgets(db *DB, txs *Transactions) *Budgets {
	return &Budgets{db: db, txs: txs}
}

// Upsert creates or replaces the owner's budget.
func (r *Budgets) Upsert(ctx context.Context, owner core.OwnerID, amount core.Money) (core.Budget, error) {
	if err := owner.Validate(); err != nil {
		return core.Budget{}, err
	}
	if amount.IsNegative() {
		return core.Budget{}, fmt.Errorf("%w: budget must not be negative", core.ErrInvalidAmount)
	}

	now := formatTime(r.db.now())
	_, err := r.db.db.ExecContext(ctx, `INSERT INTO budgets (id, owner_id, amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`,
		uuid.NewString(), string(owner), amount.String(), now, now)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", mapError(err))
	}

	b, err := r.Get(ctx, owner)
	if err != nil {
		return core.Budget{}, err
	}
	if b == nil {
		return core.Budget{}, fmt.Errorf("budget for %s: %w", owner, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Budget updated",
		log.FieldOwnerID, string(owner),
		log.FieldAmount, amount.String())
	return *b, nil
}

// Get returns the owner's budget, or nil when none is set.
func (r *Budgets) Get(ctx context.Context, owner core.OwnerID) (*core.Budget, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	var (
		b                    core.Budget
		ownerID              string
		lastAlert            sql.NullString
		createdAt, updatedAt string
	)
	err := r.db.db.QueryRowContext(ctx,
		`SELECT id, owner_id, amount, last_alert_sent, created_at, updated_at FROM budgets WHERE owner_id = ?`,
		string(owner)).Scan(&b.ID, &ownerID, &b.Amount, &lastAlert, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}

	b.Owner = core.OwnerID(ownerID)
	if b.LastAlertSent, err = parseNullTime(lastAlert); err != nil {
		return nil, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// Evaluate sums accountID's expenses in the calendar month containing asOf
// and compares them with the owner's budget. An empty accountID covers all
// of the owner's accounts. No budget is not an error.
func (r *Budgets) Evaluate(ctx context.Context, owner core.OwnerID, accountID string, asOf time.Time) (core.BudgetStatus, error) {
	b, err := r.Get(ctx, owner)
	if err != nil {
		return core.BudgetStatus{}, fmt.Errorf("evaluate budget: %w", err)
	}

	start, end := core.MonthWindow(asOf)
	expenses, err := r.txs.SumExpenses(ctx, owner, accountID, start, end)
	if err != nil {
		return core.BudgetStatus{}, fmt.Errorf("evaluate budget: %w", err)
	}

	var limit *core.Money
	if b != nil {
		limit = &b.Amount
	}
	return core.NewBudgetStatus(limit, expenses), nil
}

// MarkAlertSent records when the owner was last alerted about the budget.
func (r *Budgets) MarkAlertSent(ctx context.Context, owner core.OwnerID, at time.Time) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	res, err := r.db.db.ExecContext(ctx,
		`UPDATE budgets SET last_alert_sent = ?, updated_at = ? WHERE owner_id = ?`,
		formatTime(at), formatTime(r.db.now()), string(owner))
	if err != nil {
		return fmt.Errorf("mark budget alert: %w", mapError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("budget for %s: %w", owner, core.ErrNotFound)
	}
	return nil
}
