package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finance/internal/core"
	"finance/internal/log"

	"github.com/google/uuid"
)

const transactionColumns = `id, owner_id, account_id, type, amount, description, category, date, status,
	is_recurring, recurring_interval, next_recurring_date, receipt_url, created_at, updated_at`

// Transactions persists ledger transactions. Every write adjusts the owning
// account's balance in the same unit of work.
type Transactions struct {
	db     *DB
	ledger *Ledger
}

func NewTransactions(db *DB, ledger *Ledger) *Transactions {
	return &Transactions{db: db, ledger: ledger}
}

// TransactionFilter narrows List. Zero-valued fields do not filter.
type TransactionFilter struct {
	AccountID   string
	Type        core.TransactionType
	Status      core.TransactionStatus
	Category    string
	From        time.Time
	To          time.Time
	IsRecurring *bool
	Limit       int
}

// DeleteResult reports what a bulk delete removed and the balance
// adjustment applied to each affected account.
type DeleteResult struct {
	Deleted     []string
	Adjustments map[string]core.Money
}

// Create books a transaction and applies its signed amount to the account.
func (r *Transactions) Create(ctx context.Context, owner core.OwnerID, in core.TransactionInput) (core.Transaction, error) {
	if err := owner.Validate(); err != nil {
		return core.Transaction{}, err
	}
	in = in.Normalized()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	next, err := core.NextRecurringDate(in.IsRecurring, in.RecurringInterval, in.Date)
	if err != nil {
		return core.Transaction{}, err
	}

	now := r.db.now().UTC()
	t := core.Transaction{
		ID:                uuid.NewString(),
		Owner:             owner,
		AccountID:         in.AccountID,
		Type:              in.Type,
		Amount:            in.Amount,
		Description:       in.Description,
		Category:          in.Category,
		Date:              in.Date,
		Status:            in.Status,
		IsRecurring:       in.IsRecurring,
		RecurringInterval: in.RecurringInterval,
		NextRecurringDate: next,
		ReceiptURL:        in.ReceiptURL,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = r.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.ledger.ApplyDelta(ctx, tx, owner, t.AccountID, t.SignedAmount()); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, t)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return t, nil
}

// Update replaces the fields of an existing transaction.
//
// When the account is unchanged, the account receives new minus old signed
// amount. When the transaction moves to another account, the old account
// loses the old contribution and the new account gains the new one.
func (r *Transactions) Update(ctx context.Context, owner core.OwnerID, id string, in core.TransactionInput) (core.Transaction, error) {
	if err := owner.Validate(); err != nil {
		return core.Transaction{}, err
	}
	in = in.Normalized()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	next, err := core.NextRecurringDate(in.IsRecurring, in.RecurringInterval, in.Date)
	if err != nil {
		return core.Transaction{}, err
	}

	var updated core.Transaction
	err = r.db.InTx(ctx, func(tx *sql.Tx) error {
		old, err := getTransaction(ctx, tx, owner, id)
		if err != nil {
			return err
		}

		if old.AccountID == in.AccountID {
			delta := in.SignedAmount().Sub(old.SignedAmount())
			if _, err := r.ledger.ApplyDelta(ctx, tx, owner, in.AccountID, delta); err != nil {
				return err
			}
		} else {
			if _, err := r.ledger.ApplyDelta(ctx, tx, owner, old.AccountID, old.SignedAmount().Neg()); err != nil {
				return err
			}
			if _, err := r.ledger.ApplyDelta(ctx, tx, owner, in.AccountID, in.SignedAmount()); err != nil {
				return err
			}
		}

		updated = old
		updated.AccountID = in.AccountID
		updated.Type = in.Type
		updated.Amount = in.Amount
		updated.Description = in.Description
		updated.Category = in.Category
		updated.Date = in.Date
		updated.Status = in.Status
		updated.IsRecurring = in.IsRecurring
		updated.RecurringInterval = in.RecurringInterval
		updated.NextRecurringDate = next
		updated.ReceiptURL = in.ReceiptURL
		updated.UpdatedAt = r.db.now().UTC()

		res, err := tx.ExecContext(ctx, `UPDATE transactions SET
			account_id = ?, type = ?, amount = ?, description = ?, category = ?, date = ?, status = ?,
			is_recurring = ?, recurring_interval = ?, next_recurring_date = ?, receipt_url = ?, updated_at = ?
			WHERE id = ? AND owner_id = ?`,
			updated.AccountID, string(updated.Type), updated.Amount.String(), updated.Description,
			updated.Category, formatTime(updated.Date), string(updated.Status),
			boolInt(updated.IsRecurring), nullInterval(updated.RecurringInterval),
			nullTime(updated.NextRecurringDate), updated.ReceiptURL, formatTime(updated.UpdatedAt),
			id, string(owner))
		if err != nil {
			return fmt.Errorf("update row: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated",
		log.FieldOwnerID, string(owner),
		log.FieldTransactionID, id,
		log.FieldAccountID, updated.AccountID,
		log.FieldAmount, updated.Amount.String())
	return updated, nil
}

// Delete removes the given transactions and reverses their contribution to
// account balances, all or nothing. Ids that are unknown or belong to
// another owner are skipped without error.
func (r *Transactions) Delete(ctx context.Context, owner core.OwnerID, ids []string) (DeleteResult, error) {
	if err := owner.Validate(); err != nil {
		return DeleteResult{}, err
	}
	ids = uniqueNonEmpty(ids)
	if len(ids) == 0 {
		return DeleteResult{Adjustments: map[string]core.Money{}}, nil
	}

	owned, err := findOwned(ctx, r.db.db, owner, ids)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete transactions: %w", err)
	}
	result := DeleteResult{Deleted: idsOf(owned), Adjustments: reversals(owned)}
	if len(owned) == 0 {
		return result, nil
	}

	err = r.db.InTx(ctx, func(tx *sql.Tx) error {
		current, err := findOwned(ctx, tx, owner, result.Deleted)
		if err != nil {
			return err
		}
		// A concurrent write changed the set between the read above and
		// taking the write lock; aggregate again from what is locked now.
		if !sameAmounts(owned, current) {
			slog.WarnContext(ctx, "Transactions changed before delete, recomputing reversals",
				log.FieldOwnerID, string(owner))
			result = DeleteResult{Deleted: idsOf(current), Adjustments: reversals(current)}
			if len(current) == 0 {
				return nil
			}
		}

		args := make([]any, 0, len(result.Deleted)+1)
		args = append(args, string(owner))
		for _, id := range result.Deleted {
			args = append(args, id)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM transactions WHERE owner_id = ? AND id IN (`+placeholders(len(result.Deleted))+`)`,
			args...); err != nil {
			return fmt.Errorf("delete rows: %w", err)
		}
		return r.ledger.Reconcile(ctx, tx, owner, result.Adjustments)
	})
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete transactions: %w", err)
	}

	slog.InfoContext(ctx, "Transactions deleted",
		log.FieldOwnerID, string(owner),
		log.FieldCount, len(result.Deleted))
	return result, nil
}

// Get returns one of owner's transactions.
func (r *Transactions) Get(ctx context.Context, owner core.OwnerID, id string) (core.Transaction, error) {
	if err := owner.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t, err := getTransaction(ctx, r.db.db, owner, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// List returns owner's transactions matching filter, most recent first.
func (r *Transactions) List(ctx context.Context, owner core.OwnerID, filter TransactionFilter) ([]core.Transaction, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	where := []string{"owner_id = ?"}
	args := []any{string(owner)}

	if filter.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if !filter.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, formatTime(filter.To))
	}
	if filter.IsRecurring != nil {
		where = append(where, "is_recurring = ?")
		args = append(args, boolInt(*filter.IsRecurring))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY date DESC, created_at DESC, rowid DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	txs, err := queryTransactions(ctx, r.db.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// SumExpenses totals EXPENSE amounts dated within [from, to]. An empty
// accountID covers all of owner's accounts.
func (r *Transactions) SumExpenses(ctx context.Context, owner core.OwnerID, accountID string, from, to time.Time) (core.Money, error) {
	query := `SELECT amount FROM transactions WHERE owner_id = ? AND type = ? AND date >= ? AND date <= ?`
	args := []any{string(owner), string(core.Expense), formatTime(from), formatTime(to)}
	if accountID != "" {
		query += ` AND account_id = ?`
		args = append(args, accountID)
	}

	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	defer rows.Close()

	sum := core.Zero()
	for rows.Next() {
		var amount core.Money
		if err := rows.Scan(&amount); err != nil {
			return core.Money{}, fmt.Errorf("scan expense amount: %w", err)
		}
		sum = sum.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return sum, nil
}

func insertTransaction(ctx context.Context, q queryer, t core.Transaction) error {
	_, err := q.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Owner), t.AccountID, string(t.Type), t.Amount.String(), t.Description,
		t.Category, formatTime(t.Date), string(t.Status), boolInt(t.IsRecurring),
		nullInterval(t.RecurringInterval), nullTime(t.NextRecurringDate), t.ReceiptURL,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func getTransaction(ctx context.Context, q queryer, owner core.OwnerID, id string) (core.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND owner_id = ?`,
		id, string(owner))
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return t, err
}

func findOwned(ctx context.Context, q queryer, owner core.OwnerID, ids []string) ([]core.Transaction, error) {
	args := make([]any, 0, len(ids)+1)
	args = append(args, string(owner))
	for _, id := range ids {
		args = append(args, id)
	}
	return queryTransactions(ctx, q,
		`SELECT `+transactionColumns+` FROM transactions WHERE owner_id = ? AND id IN (`+
			placeholders(len(ids))+`) ORDER BY id`, args...)
}

func queryTransactions(ctx context.Context, q queryer, query string, args ...any) ([]core.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t                          core.Transaction
		owner, typ, status         string
		date, createdAt, updatedAt string
		isRecurring                int
		interval                   sql.NullString
		nextRecurring              sql.NullString
	)
	err := s.Scan(&t.ID, &owner, &t.AccountID, &typ, &t.Amount, &t.Description, &t.Category,
		&date, &status, &isRecurring, &interval, &nextRecurring, &t.ReceiptURL, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}

	t.Owner = core.OwnerID(owner)
	t.Type = core.TransactionType(typ)
	t.Status = core.TransactionStatus(status)
	t.IsRecurring = isRecurring != 0
	if interval.Valid {
		every := core.Interval(interval.String)
		t.RecurringInterval = &every
	}
	if t.Date, err = parseTime(date); err != nil {
		return core.Transaction{}, err
	}
	if t.NextRecurringDate, err = parseNullTime(nextRecurring); err != nil {
		return core.Transaction{}, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Transaction{}, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func nullInterval(i *core.Interval) sql.NullString {
	if i == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*i), Valid: true}
}

// reversals aggregates, per account, the delta that undoes the given
// transactions.
func reversals(txs []core.Transaction) map[string]core.Money {
	out := make(map[string]core.Money)
	for _, t := range txs {
		out[t.AccountID] = out[t.AccountID].Sub(t.SignedAmount())
	}
	return out
}

func idsOf(txs []core.Transaction) []string {
	ids := make([]string, len(txs))
	for i, t := range txs {
		ids[i] = t.ID
	}
	return ids
}

func sameAmounts(a, b []core.Transaction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].AccountID != b[i].AccountID ||
			a[i].Type != b[i].Type || !a[i].Amount.Equal(b[i].Amount) {
			return false
		}
	}
	return true
}

func uniqueNonEmpty(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
