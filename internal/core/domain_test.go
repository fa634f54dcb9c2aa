package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestOwnerValidate(t *testing.T) {
	if err := OwnerID("user_1").Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, o := range []OwnerID{"", "   "} {
		if err := o.Validate(); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%q: expected ErrUnauthorized, got %v", o, err)
		}
	}
}

func TestSignedAmount(t *testing.T) {
	amount := MustMoney("60")
	if got := SignedAmount(Income, amount); !got.Equal(amount) {
		t.Fatalf("income: got %s", got)
	}
	if got := SignedAmount(Expense, amount); !got.Equal(MustMoney("-60")) {
		t.Fatalf("expense: got %s", got)
	}
	tx := Transaction{Type: Expense, Amount: MustMoney("0")}
	if !tx.SignedAmount().IsZero() {
		t.Fatalf("zero expense should contribute zero")
	}
}

func TestParseTransaction(t *testing.T) {
	raw := RawTransaction{
		AccountID:         "acc-1",
		Type:              "expense",
		Amount:            "12,50",
		Description:       "  groceries ",
		Category:          "food",
		Date:              "2024-03-15",
		IsRecurring:       true,
		RecurringInterval: "monthly",
	}
	in, err := ParseTransaction(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Type != Expense || in.Status != Completed {
		t.Fatalf("unexpected type/status: %s/%s", in.Type, in.Status)
	}
	if !in.Amount.Equal(MustMoney("12.5")) {
		t.Fatalf("amount: got %s", in.Amount)
	}
	if in.Description != "groceries" {
		t.Fatalf("description not trimmed: %q", in.Description)
	}
	if in.RecurringInterval == nil || *in.RecurringInterval != Monthly {
		t.Fatalf("interval: got %v", in.RecurringInterval)
	}
	if !in.Date.Equal(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date: got %s", in.Date)
	}
}

func TestParseTransactionDropsIntervalWhenNotRecurring(t *testing.T) {
	in, err := ParseTransaction(RawTransaction{
		AccountID: "a", Type: "INCOME", Amount: "1", Category: "salary",
		Date: "2024-03-15T10:00:00Z", RecurringInterval: "WEEKLY",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.RecurringInterval != nil {
		t.Fatalf("expected no interval, got %v", *in.RecurringInterval)
	}
}

func TestParseTransactionRejects(t *testing.T) {
	valid := RawTransaction{AccountID: "a", Type: "EXPENSE", Amount: "10", Category: "c", Date: "2024-01-01"}
	cases := []struct {
		name   string
		mutate func(*RawTransaction)
		want   error
	}{
		{"negative amount", func(r *RawTransaction) { r.Amount = "-5" }, ErrInvalidAmount},
		{"garbage amount", func(r *RawTransaction) { r.Amount = "ten" }, ErrInvalidAmount},
		{"bad interval", func(r *RawTransaction) { r.IsRecurring = true; r.RecurringInterval = "HOURLY" }, ErrInvalidInterval},
		{"bad type", func(r *RawTransaction) { r.Type = "TRANSFER" }, ErrInvalidInput},
		{"bad status", func(r *RawTransaction) { r.Status = "DONE" }, ErrInvalidInput},
		{"missing account", func(r *RawTransaction) { r.AccountID = " " }, ErrInvalidInput},
		{"missing category", func(r *RawTransaction) { r.Category = "" }, ErrInvalidInput},
		{"bad date", func(r *RawTransaction) { r.Date = "15/03/2024" }, ErrInvalidInput},
		{"long description", func(r *RawTransaction) { r.Description = strings.Repeat("x", 501) }, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := valid
			tc.mutate(&raw)
			_, err := ParseTransaction(raw)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if KindOf(err) != KindInvalidInput {
				t.Fatalf("expected invalid input kind, got %s", KindOf(err))
			}
		})
	}
}

func TestParseAccount(t *testing.T) {
	in, err := ParseAccount(RawAccount{Name: " Main ", Balance: "100"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Name != "Main" || in.Type != Current || !in.Balance.Equal(MustMoney("100")) {
		t.Fatalf("unexpected input: %+v", in)
	}
	if _, err := ParseAccount(RawAccount{Name: "", Balance: "0"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank name, got %v", err)
	}
	if _, err := ParseAccount(RawAccount{Name: "x", Type: "BROKERAGE", Balance: "0"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for type, got %v", err)
	}
	if _, err := ParseAccount(RawAccount{Name: "x", Balance: "abc"}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if in, err := ParseAccount(RawAccount{Name: "x", Balance: " "}); err != nil || !in.Balance.IsZero() {
		t.Fatalf("blank balance should open at zero, got %+v (err=%v)", in, err)
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{fmt.Errorf("get account: %w", ErrNotFound), KindNotFound},
		{fmt.Errorf("insert: %w", ErrTransient), KindTransient},
		{ErrUnauthorized, KindUnauthorized},
		{ErrRateLimited, KindRateLimited},
		{ErrBlocked, KindBlocked},
		{ErrInconsistent, KindInconsistent},
		{errors.New("boom"), KindInternal},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
	if !Retryable(fmt.Errorf("commit: %w", ErrTransient)) {
		t.Fatalf("transient errors should be retryable")
	}
}
