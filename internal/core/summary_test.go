package core

import (
	"testing"
	"time"
)

func TestMonthWindow(t *testing.T) {
	start, end := MonthWindow(time.Date(2024, time.February, 10, 15, 4, 5, 0, time.UTC))
	if !start.Equal(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start: got %s", start)
	}
	if end.Day() != 29 || end.Month() != time.February || end.Hour() != 23 {
		t.Fatalf("end: got %s", end)
	}
	if !end.Add(time.Nanosecond).Equal(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end should be the last instant of the month, got %s", end)
	}
}

func TestMonthWindowUsesCalendarOfAsOf(t *testing.T) {
	tests := []struct {
		name string
		asOf time.Time
		want time.Month
	}{
		{"west of UTC", time.Date(2024, time.May, 20, 10, 0, 0, 0, time.FixedZone("EST", -5*3600)), time.May},
		{"late evening west of UTC", time.Date(2024, time.May, 31, 22, 0, 0, 0, time.FixedZone("PDT", -7*3600)), time.May},
		{"early morning east of UTC", time.Date(2024, time.June, 1, 1, 0, 0, 0, time.FixedZone("CEST", 2*3600)), time.June},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := MonthWindow(tt.asOf)
			first := time.Date(2024, tt.want, 1, 0, 0, 0, 0, time.UTC)
			if !start.Equal(first) {
				t.Fatalf("start: got %s, want %s", start, first)
			}
			if !end.Add(time.Nanosecond).Equal(first.AddDate(0, 1, 0)) {
				t.Fatalf("end: got %s", end)
			}

			day1, err := ParseDate(first.Format("2006-01-02"))
			if err != nil {
				t.Fatal(err)
			}
			if day1.Before(start) || day1.After(end) {
				t.Fatalf("first of the month %s outside window [%s, %s]", day1, start, end)
			}
		})
	}
}

func TestNewBudgetStatus(t *testing.T) {
	budget := MustMoney("100")
	st := NewBudgetStatus(&budget, MustMoney("65"))
	if st.Budget == nil || !st.Budget.Equal(budget) {
		t.Fatalf("budget: got %v", st.Budget)
	}
	if !st.Remaining.Equal(MustMoney("35")) {
		t.Fatalf("remaining: got %s", st.Remaining)
	}
	if *st.PercentUsed != 65 {
		t.Fatalf("percent: got %v", *st.PercentUsed)
	}

	none := NewBudgetStatus(nil, MustMoney("65"))
	if none.Budget != nil || none.Remaining != nil || none.PercentUsed != nil {
		t.Fatalf("expected only expenses without a budget, got %+v", none)
	}
	if !none.CurrentExpenses.Equal(MustMoney("65")) {
		t.Fatalf("expenses: got %s", none.CurrentExpenses)
	}

	zero := Zero()
	if st := NewBudgetStatus(&zero, MustMoney("5")); *st.PercentUsed != 0 {
		t.Fatalf("zero budget should not divide, got %v", *st.PercentUsed)
	}
}

func TestByCategory(t *testing.T) {
	txs := []Transaction{
		{Category: "food", Amount: MustMoney("20")},
		{Category: "rent", Amount: MustMoney("500")},
		{Category: "food", Amount: MustMoney("15")},
	}
	got := ByCategory(txs)
	if len(got) != 2 || got[0].Name != "food" || !got[0].Amount.Equal(MustMoney("35")) {
		t.Fatalf("unexpected totals: %+v", got)
	}
}
