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

const accountColumns = `id, owner_id, name, type, balance, opening_balance, is_default, created_at, updated_at`

// Accounts persists ledger accounts and keeps exactly one default account
// per owner.
type Accounts struct {
	db *DB
}

func NewAccounts(db *DB) *Accounts {
	return &Accounts{db: db}
}

// Drift describes an account whose cached balance disagreed with its
// transactions.
type Drift struct {
	AccountID string
	Cached    core.Money
	Expected  core.Money
}

// Create inserts a new account. The owner's first account is always the
// default; a new default clears the flag on the owner's other accounts in
// the same unit of work.
func (r *Accounts) Create(ctx context.Context, owner core.OwnerID, in core.AccountInput) (core.Account, error) {
	if err := owner.Validate(); err != nil {
		return core.Account{}, err
	}
	if err := in.Validate(); err != nil {
		return core.Account{}, err
	}

	now := r.db.now().UTC()
	a := core.Account{
		ID:             uuid.NewString(),
		Owner:          owner,
		Name:           in.Name,
		Type:           in.Type,
		Balance:        in.Balance,
		OpeningBalance: in.Balance,
		IsDefault:      in.IsDefault,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM accounts WHERE owner_id = ?`, string(owner)).Scan(&existing); err != nil {
			return fmt.Errorf("count accounts: %w", err)
		}
		if existing == 0 {
			a.IsDefault = true
		}
		if a.IsDefault {
			if err := clearDefault(ctx, tx, owner, now); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, string(owner), a.Name, string(a.Type), a.Balance.String(), a.OpeningBalance.String(),
			boolInt(a.IsDefault), formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account created",
		log.FieldOwnerID, string(owner),
		log.FieldAccountID, a.ID,
		log.FieldBalance, a.Balance.String(),
		"is_default", a.IsDefault)
	return a, nil
}

// SetDefault makes accountID the owner's only default account. The target
// is checked before any flag is cleared.
func (r *Accounts) SetDefault(ctx context.Context, owner core.OwnerID, accountID string) (core.Account, error) {
	if err := owner.Validate(); err != nil {
		return core.Account{}, err
	}

	var a core.Account
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		if a, err = getAccount(ctx, tx, owner, accountID); err != nil {
			return err
		}
		if a.IsDefault {
			return nil
		}

		now := r.db.now().UTC()
		if err := clearDefault(ctx, tx, owner, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET is_default = 1, updated_at = ? WHERE id = ? AND owner_id = ?`,
			formatTime(now), accountID, string(owner)); err != nil {
			return fmt.Errorf("set default: %w", err)
		}
		a.IsDefault = true
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("set default account: %w", err)
	}

	slog.InfoContext(ctx, "Default account changed",
		log.FieldOwnerID, string(owner),
		log.FieldAccountID, accountID)
	return a, nil
}

// Get returns one of owner's accounts.
func (r *Accounts) Get(ctx context.Context, owner core.OwnerID, accountID string) (core.Account, error) {
	if err := owner.Validate(); err != nil {
		return core.Account{}, err
	}
	a, err := getAccount(ctx, r.db.db, owner, accountID)
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// ListWithTransactionCount returns owner's accounts, newest first, each with
// the number of transactions booked on it.
func (r *Accounts) ListWithTransactionCount(ctx context.Context, owner core.OwnerID) ([]core.AccountSummary, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	rows, err := r.db.db.QueryContext(ctx, `SELECT `+prefixed("a", accountColumns)+`,
			(SELECT COUNT(*) FROM transactions t WHERE t.account_id = a.id) AS tx_count
		FROM accounts a
		WHERE a.owner_id = ?
		ORDER BY a.created_at DESC, a.rowid DESC`, string(owner))
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.AccountSummary
	for rows.Next() {
		var s core.AccountSummary
		if s.Account, err = scanAccount(rows, &s.TransactionCount); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

// GetWithTransactions returns the detail view of one account, read from a
// single snapshot.
func (r *Accounts) GetWithTransactions(ctx context.Context, owner core.OwnerID, accountID string) (core.AccountDetail, error) {
	if err := owner.Validate(); err != nil {
		return core.AccountDetail{}, err
	}

	var detail core.AccountDetail
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		a, err := getAccount(ctx, tx, owner, accountID)
		if err != nil {
			return err
		}
		txs, err := queryTransactions(ctx, tx,
			`SELECT `+transactionColumns+` FROM transactions WHERE account_id = ? AND owner_id = ?
			ORDER BY date DESC, created_at DESC, rowid DESC`, accountID, string(owner))
		if err != nil {
			return fmt.Errorf("list account transactions: %w", err)
		}
		detail = core.AccountDetail{Account: a, TransactionCount: len(txs), Transactions: txs}
		return nil
	})
	if err != nil {
		return core.AccountDetail{}, fmt.Errorf("get account detail: %w", err)
	}
	return detail, nil
}

// ListOwners returns every owner that has at least one account.
func (r *Accounts) ListOwners(ctx context.Context) ([]core.OwnerID, error) {
	rows, err := r.db.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM accounts ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	var owners []core.OwnerID
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, core.OwnerID(o))
	}
	return owners, rows.Err()
}

// Reconcile recomputes every balance of owner from the opening balance and
// the account's transactions, in one unit of work, and rewrites the ones
// that drifted. It returns the drifted accounts.
func (r *Accounts) Reconcile(ctx context.Context, owner core.OwnerID) ([]Drift, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	var drifts []Drift
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		ids, err := accountIDs(ctx, tx, owner)
		if err != nil {
			return err
		}
		now := formatTime(r.db.now())
		for _, id := range ids {
			cached, expected, err := balances(ctx, tx, owner, id)
			if err != nil {
				return err
			}
			if cached.Equal(expected) {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
				expected.String(), now, id, string(owner)); err != nil {
				return fmt.Errorf("repair balance: %w", err)
			}
			drifts = append(drifts, Drift{AccountID: id, Cached: cached, Expected: expected})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile accounts: %w", err)
	}

	for _, d := range drifts {
		slog.WarnContext(ctx, "Balance repaired",
			log.FieldOwnerID, string(owner),
			log.FieldAccountID, d.AccountID,
			"cached", d.Cached.String(),
			"expected", d.Expected.String())
	}
	return drifts, nil
}

// AccountIDs returns the ids of owner's accounts in id order.
func (r *Accounts) AccountIDs(ctx context.Context, owner core.OwnerID) ([]string, error) {
	ids, err := accountIDs(ctx, r.db.db, owner)
	if err != nil {
		return nil, fmt.Errorf("list account ids: %w", err)
	}
	return ids, nil
}

func accountIDs(ctx context.Context, q queryer, owner core.OwnerID) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM accounts WHERE owner_id = ? ORDER BY id`, string(owner))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func clearDefault(ctx context.Context, tx *sql.Tx, owner core.OwnerID, now time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET is_default = 0, updated_at = ? WHERE owner_id = ? AND is_default = 1`,
		formatTime(now), string(owner)); err != nil {
		return fmt.Errorf("clear default: %w", err)
	}
	return nil
}

func getAccount(ctx context.Context, q queryer, owner core.OwnerID, accountID string) (core.Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ? AND owner_id = ?`,
		accountID, string(owner))
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %s: %w", accountID, core.ErrNotFound)
	}
	return a, err
}

// scanAccount reads accountColumns followed by any extra destinations.
func scanAccount(s rowScanner, extra ...any) (core.Account, error) {
	var (
		a                    core.Account
		owner, typ           string
		isDefault            int
		createdAt, updatedAt string
	)
	dest := []any{&a.ID, &owner, &a.Name, &typ, &a.Balance, &a.OpeningBalance, &isDefault, &createdAt, &updatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return core.Account{}, err
	}

	a.Owner = core.OwnerID(owner)
	a.Type = core.AccountType(typ)
	a.IsDefault = isDefault != 0
	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Account{}, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

// prefixed qualifies a comma separated column list with a table alias.
func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
