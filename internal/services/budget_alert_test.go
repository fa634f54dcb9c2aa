package services

import (
	"context"
	"testing"
	"time"

	"finance/internal/cache"
	"finance/internal/core"
	"finance/internal/notify"
)

// newClockedService wires a service whose clock the test moves.
func newClockedService(t *testing.T, now *time.Time) (*LedgerService, *testEnv) {
	t.Helper()
	env := openStores(t)
	svc := NewLedgerService(env.accounts, env.txs, env.budgets, Options{
		Views: cache.NewViews(64, time.Hour),
		Now:   func() time.Time { return *now },
	})
	return svc, env
}

func TestCheckBudgetAlert(t *testing.T) {
	ctx := context.Background()
	now := may20
	svc, env := newClockedService(t, &now)

	acc, err := svc.CreateAccount(ctx, "user_1", core.RawAccount{Name: "Main"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	spend := func(amount, date string) {
		t.Helper()
		if _, err := svc.CreateTransaction(ctx, "user_1", core.RawTransaction{
			AccountID: acc.ID, Type: "EXPENSE", Amount: amount, Category: "food", Date: date,
		}); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}

	spend("90", "2024-05-02")
	if alert, err := svc.CheckBudgetAlert(ctx, "user_1"); err != nil || alert != nil {
		t.Fatalf("no budget, no alert: got %+v, %v", alert, err)
	}

	if _, err := svc.UpdateBudget(ctx, "user_1", "200"); err != nil {
		t.Fatalf("update budget: %v", err)
	}
	if alert, err := svc.CheckBudgetAlert(ctx, "user_1"); err != nil || alert != nil {
		t.Fatalf("45%% used should not alert: got %+v, %v", alert, err)
	}

	spend("70", "2024-05-10")
	alert, err := svc.CheckBudgetAlert(ctx, "user_1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if alert == nil || alert.Exceeded || *alert.Status.PercentUsed != 80 {
		t.Fatalf("expected an alert at 80%%, got %+v", alert)
	}
	b, err := env.budgets.Get(ctx, "user_1")
	if err != nil || b.LastAlertSent == nil || !b.LastAlertSent.Equal(may20) {
		t.Fatalf("alert not recorded: %+v, %v", b, err)
	}

	spend("100", "2024-05-11")
	if alert, err := svc.CheckBudgetAlert(ctx, "user_1"); err != nil || alert != nil {
		t.Fatalf("one alert per month: got %+v, %v", alert, err)
	}

	now = time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	spend("250", "2024-06-02")
	alert, err = svc.CheckBudgetAlert(ctx, "user_1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if alert == nil || !alert.Exceeded || !alert.Status.CurrentExpenses.Equal(core.MustMoney("250")) {
		t.Fatalf("expected an exceeded alert in June, got %+v", alert)
	}
}

func TestBudgetAlertSinkReactsToBudgetViews(t *testing.T) {
	ctx := context.Background()
	now := may20
	svc, env := newClockedService(t, &now)

	acc, err := svc.CreateAccount(ctx, "user_1", core.RawAccount{Name: "Main"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := svc.UpdateBudget(ctx, "user_1", "10"); err != nil {
		t.Fatalf("update budget: %v", err)
	}
	if _, err := svc.CreateTransaction(ctx, "user_1", core.RawTransaction{
		AccountID: acc.ID, Type: "EXPENSE", Amount: "9", Category: "food", Date: "2024-05-02",
	}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	sink := svc.BudgetAlertSink()
	if err := sink.Invalidate(ctx, "user_1", []notify.View{notify.Dashboard}); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if b, _ := env.budgets.Get(ctx, "user_1"); b.LastAlertSent != nil {
		t.Fatal("views without the budget must not trigger a check")
	}

	if err := sink.Invalidate(ctx, "user_1", notify.MutationViews(acc.ID)); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if b, _ := env.budgets.Get(ctx, "user_1"); b.LastAlertSent == nil {
		t.Fatal("budget view change should have raised the alert")
	}
}

func TestCurrentBudgetWestOfUTC(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.May, 20, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))
	svc, _ := newClockedService(t, &now)

	acc, err := svc.CreateAccount(ctx, "user_1", core.RawAccount{Name: "Main"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	for _, date := range []string{"2024-04-30", "2024-05-01", "2024-05-10", "2024-05-31", "2024-06-01"} {
		if _, err := svc.CreateTransaction(ctx, "user_1", core.RawTransaction{
			AccountID: acc.ID, Type: "EXPENSE", Amount: "10", Category: "food", Date: date,
		}); err != nil {
			t.Fatalf("create transaction %s: %v", date, err)
		}
	}

	status, err := svc.CurrentBudget(ctx, "user_1", acc.ID)
	if err != nil {
		t.Fatalf("budget: %v", err)
	}
	if !status.CurrentExpenses.Equal(core.MustMoney("30")) {
		t.Fatalf("expected May's three expenses (30), got %s", status.CurrentExpenses)
	}
}
