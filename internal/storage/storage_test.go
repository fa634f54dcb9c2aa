package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"finance/internal/core"
)

type testStore struct {
	db       *DB
	ledger   *Ledger
	txs      *Transactions
	accounts *Accounts
	budgets  *Budgets
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ledger := NewLedger(db)
	txs := NewTransactions(db, ledger)
	return &testStore{
		db:       db,
		ledger:   ledger,
		txs:      txs,
		accounts: NewAccounts(db),
		budgets:  NewBudgets(db, txs),
	}
}

func (s *testStore) account(t *testing.T, owner core.OwnerID, name, balance string) core.Account {
	t.Helper()
	a, err := s.accounts.Create(context.Background(), owner, core.AccountInput{
		Name:    name,
		Type:    core.Current,
		Balance: core.MustMoney(balance),
	})
	if err != nil {
		t.Fatalf("create account %s: %v", name, err)
	}
	return a
}

func (s *testStore) book(t *testing.T, owner core.OwnerID, accountID string, typ core.TransactionType, amount string, date time.Time) core.Transaction {
	t.Helper()
	tx, err := s.txs.Create(context.Background(), owner, core.TransactionInput{
		AccountID: accountID,
		Type:      typ,
		Amount:    core.MustMoney(amount),
		Category:  "general",
		Date:      date,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tx
}

func (s *testStore) balance(t *testing.T, owner core.OwnerID, accountID string) core.Money {
	t.Helper()
	a, err := s.accounts.Get(context.Background(), owner, accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return a.Balance
}

// assertConsistent fails the test when the cached balance of any of owner's
// accounts disagrees with its transactions.
func (s *testStore) assertConsistent(t *testing.T, owner core.OwnerID) {
	t.Helper()
	ids, err := s.accounts.AccountIDs(context.Background(), owner)
	if err != nil {
		t.Fatalf("account ids: %v", err)
	}
	for _, id := range ids {
		if err := s.ledger.Verify(context.Background(), owner, id); err != nil {
			t.Fatalf("verify %s: %v", id, err)
		}
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	for i := 0; i < 2; i++ {
		db, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		if db.Path() != path {
			t.Fatalf("unexpected path %q", db.Path())
		}
		db.Close()
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	a := s.account(t, "user_1", "Main", "100")

	boom := errors.New("boom")
	err := s.db.InTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := s.ledger.ApplyDelta(context.Background(), tx, "user_1", a.ID, core.MustMoney("50")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got := s.balance(t, "user_1", a.ID); !got.Equal(core.MustMoney("100")) {
		t.Fatalf("balance should be unchanged, got %s", got)
	}
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	s := newTestStore(t)
	a := s.account(t, "user_1", "Main", "100")

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = s.db.InTx(context.Background(), func(tx *sql.Tx) error {
			if _, err := s.ledger.ApplyDelta(context.Background(), tx, "user_1", a.ID, core.MustMoney("-1")); err != nil {
				return err
			}
			panic("interrupted")
		})
	}()

	if got := s.balance(t, "user_1", a.ID); !got.Equal(core.MustMoney("100")) {
		t.Fatalf("balance should be unchanged, got %s", got)
	}
}

func TestMapErrorPassesThroughOtherErrors(t *testing.T) {
	if mapError(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	err := errors.New("constraint failed")
	if got := mapError(err); got != err {
		t.Fatalf("expected error unchanged, got %v", got)
	}
	if core.Retryable(mapError(err)) {
		t.Fatalf("non contention errors must not be retryable")
	}
	wrapped := &transientError{err: err}
	if !errors.Is(wrapped, core.ErrTransient) || !errors.Is(wrapped, err) {
		t.Fatalf("transient error should match both ErrTransient and its cause")
	}
}

func TestFormatTimeSortsChronologically(t *testing.T) {
	a := formatTime(time.Date(2024, 1, 2, 3, 4, 5, 6, time.FixedZone("X", 2*3600)))
	b := formatTime(time.Date(2024, 1, 2, 3, 4, 5, 7, time.FixedZone("X", 2*3600)))
	if !(a < b) {
		t.Fatalf("expected %s < %s", a, b)
	}
	parsed, err := parseTime(a)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.Equal(time.Date(2024, 1, 2, 1, 4, 5, 6, time.UTC)) {
		t.Fatalf("round trip lost precision: %s", parsed)
	}
}

func TestPlaceholders(t *testing.T) {
	cases := map[int]string{0: "", 1: "?", 3: "?, ?, ?"}
	for n, want := range cases {
		if got := placeholders(n); got != want {
			t.Errorf("placeholders(%d) = %q, want %q", n, got, want)
		}
	}
}
