package core

import "time"

// AccountSummary is an account with the number of transactions booked on it.
type AccountSummary struct {
	Account
	TransactionCount int
}

// AccountDetail is the single-account view: the account, its transaction
// count and its transactions ordered by date, newest first.
type AccountDetail struct {
	Account          Account
	TransactionCount int
	Transactions     []Transaction
}

// BudgetStatus is the result of evaluating a monthly budget. Budget,
// Remaining and PercentUsed are nil when the owner has no budget.
type BudgetStatus struct {
	Budget          *Money
	CurrentExpenses Money
	Remaining       *Money
	PercentUsed     *float64
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthWindow returns the calendar month containing asOf: from the first day
// at 00:00 up to the last instant of the last day. The month is the one on
// asOf's calendar; the bounds are in UTC, where ParseDate places calendar
// dates.
func MonthWindow(asOf time.Time) (start, end time.Time) {
	y, m, _ := asOf.Date()
	start = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// NewBudgetStatus computes remaining and percent used from a budget and the
// expenses booked against it. A nil budget yields expenses only.
func NewBudgetStatus(budget *Money, expenses Money) BudgetStatus {
	status := BudgetStatus{CurrentExpenses: expenses}
	if budget == nil {
		return status
	}
	b := *budget
	remaining := b.Sub(expenses)
	status.Budget = &b
	status.Remaining = &remaining

	var pct float64
	if !b.IsZero() {
		pct = expenses.Decimal().Div(b.Decimal()).Shift(2).InexactFloat64()
	}
	status.PercentUsed = &pct
	return status
}

// ByCategory totals amounts per category, keeping first-seen order.
func ByCategory(txs []Transaction) []CategoryAmount {
	idx := make(map[string]int)
	var out []CategoryAmount
	for _, t := range txs {
		i, ok := idx[t.Category]
		if !ok {
			idx[t.Category] = len(out)
			out = append(out, CategoryAmount{Name: t.Category})
			i = len(out) - 1
		}
		out[i].Amount = out[i].Amount.Add(t.Amount)
	}
	return out
}
