package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"finance/internal/core"
	"finance/internal/log"
)

// Ledger maintains the cached account balances. Its mutating methods run
// inside a transaction owned by the caller and never open one themselves.
type Ledger struct {
	db *DB
}

func NewLedger(db *DB) *Ledger {
	return &Ledger{db: db}
}

// ApplyDelta adds delta to the balance of accountID, which must belong to
// owner. It returns the new balance. An unknown or foreign account yields
// core.ErrNotFound.
func (l *Ledger) ApplyDelta(ctx context.Context, tx *sql.Tx, owner core.OwnerID, accountID string, delta core.Money) (core.Money, error) {
	var balance core.Money
	err := tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE id = ? AND owner_id = ?`,
		accountID, string(owner)).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, fmt.Errorf("account %s: %w", accountID, core.ErrNotFound)
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("read balance: %w", err)
	}

	if delta.IsZero() {
		return balance, nil
	}

	next := balance.Add(delta)
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		next.String(), formatTime(l.db.now()), accountID, string(owner)); err != nil {
		return core.Money{}, fmt.Errorf("write balance: %w", err)
	}

	slog.DebugContext(ctx, "Balance adjusted",
		log.FieldOwnerID, string(owner),
		log.FieldAccountID, accountID,
		log.FieldDelta, delta.String(),
		log.FieldBalance, next.String())
	return next, nil
}

// Reconcile applies a per-account set of deltas, visiting each account once
// in id order. Zero deltas are skipped. The first failure is returned and
// the caller's transaction must be rolled back.
func (l *Ledger) Reconcile(ctx context.Context, tx *sql.Tx, owner core.OwnerID, deltas map[string]core.Money) error {
	ids := make([]string, 0, len(deltas))
	for id, d := range deltas {
		if d.IsZero() {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, err := l.ApplyDelta(ctx, tx, owner, id, deltas[id]); err != nil {
			return fmt.Errorf("reconcile account %s: %w", id, err)
		}
	}
	return nil
}

// Verify recomputes the balance of accountID from its opening balance and
// transactions and compares it with the cached value. A mismatch is
// reported as core.ErrInconsistent.
func (l *Ledger) Verify(ctx context.Context, owner core.OwnerID, accountID string) error {
	return l.db.InTx(ctx, func(tx *sql.Tx) error {
		cached, expected, err := balances(ctx, tx, owner, accountID)
		if err != nil {
			return err
		}
		if !cached.Equal(expected) {
			return fmt.Errorf("account %s: cached %s, expected %s: %w",
				accountID, cached, expected, core.ErrInconsistent)
		}
		return nil
	})
}

// balances returns the cached balance of an account and the balance implied
// by its opening balance plus the signed sum of its transactions.
func balances(ctx context.Context, q queryer, owner core.OwnerID, accountID string) (cached, expected core.Money, err error) {
	var opening core.Money
	err = q.QueryRowContext(ctx,
		`SELECT balance, opening_balance FROM accounts WHERE id = ? AND owner_id = ?`,
		accountID, string(owner)).Scan(&cached, &opening)
	if errors.Is(err, sql.ErrNoRows) {
		return cached, expected, fmt.Errorf("account %s: %w", accountID, core.ErrNotFound)
	}
	if err != nil {
		return cached, expected, fmt.Errorf("read account balance: %w", err)
	}

	sum, err := signedSum(ctx, q, owner, accountID)
	if err != nil {
		return cached, expected, err
	}
	return cached, opening.Add(sum), nil
}

// signedSum adds up the signed amounts of an account's transactions. The sum
// is computed in decimal arithmetic rather than with SQL SUM, which would go
// through floating point.
func signedSum(ctx context.Context, q queryer, owner core.OwnerID, accountID string) (core.Money, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT type, amount FROM transactions WHERE account_id = ? AND owner_id = ?`,
		accountID, string(owner))
	if err != nil {
		return core.Money{}, fmt.Errorf("query transaction amounts: %w", err)
	}
	defer rows.Close()

	sum := core.Zero()
	for rows.Next() {
		var (
			typ    string
			amount core.Money
		)
		if err := rows.Scan(&typ, &amount); err != nil {
			return core.Money{}, fmt.Errorf("scan transaction amount: %w", err)
		}
		sum = sum.Add(core.SignedAmount(core.TransactionType(typ), amount))
	}
	if err := rows.Err(); err != nil {
		return core.Money{}, fmt.Errorf("iterate transaction amounts: %w", err)
	}
	return sum, nil
}
