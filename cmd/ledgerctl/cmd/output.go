package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"finance/internal/core"
)

type accountView struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Balance          string `json:"balance"`
	IsDefault        bool   `json:"isDefault"`
	TransactionCount *int   `json:"transactionCount,omitempty"`
}

type transactionView struct {
	ID                string `json:"id"`
	AccountID         string `json:"accountId"`
	Type              string `json:"type"`
	Amount            string `json:"amount"`
	Category          string `json:"category"`
	Description       string `json:"description,omitempty"`
	Date              string `json:"date"`
	Status            string `json:"status"`
	IsRecurring       bool   `json:"isRecurring"`
	RecurringInterval string `json:"recurringInterval,omitempty"`
	NextRecurringDate string `json:"nextRecurringDate,omitempty"`
	ReceiptURL        string `json:"receiptUrl,omitempty"`
}

type categoryView struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

func toAccountView(a core.Account) accountView {
	return accountView{
		ID:        a.ID,
		Name:      a.Name,
		Type:      string(a.Type),
		Balance:   a.Balance.String(),
		IsDefault: a.IsDefault,
	}
}

func toTransactionView(t core.Transaction) transactionView {
	v := transactionView{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Type:        string(t.Type),
		Amount:      t.Amount.String(),
		Category:    t.Category,
		Description: t.Description,
		Date:        core.FormatDate(t.Date),
		Status:      string(t.Status),
		IsRecurring: t.IsRecurring,
		ReceiptURL:  t.ReceiptURL,
	}
	if t.RecurringInterval != nil {
		v.RecurringInterval = t.RecurringInterval.String()
	}
	if t.NextRecurringDate != nil {
		v.NextRecurringDate = core.FormatDate(*t.NextRecurringDate)
	}
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *rootOptions) money(m core.Money) string {
	return m.Format(o.cfg.DefaultCurrency)
}

func (o *rootOptions) printAccounts(w io.Writer, accounts []core.AccountSummary) error {
	if o.asJSON {
		views := make([]accountView, 0, len(accounts))
		for _, a := range accounts {
			v := toAccountView(a.Account)
			count := a.TransactionCount
			v.TransactionCount = &count
			views = append(views, v)
		}
		return writeJSON(w, views)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tBALANCE\tDEFAULT\tTRANSACTIONS")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", a.ID, a.Name, a.Type, o.money(a.Balance), yesNo(a.IsDefault), a.TransactionCount)
	}
	return tw.Flush()
}

func (o *rootOptions) printAccount(w io.Writer, a core.Account) error {
	if o.asJSON {
		return writeJSON(w, toAccountView(a))
	}
	fmt.Fprintf(w, "%s  %s (%s)  balance %s", a.ID, a.Name, a.Type, o.money(a.Balance))
	if a.IsDefault {
		fmt.Fprint(w, "  [default]")
	}
	fmt.Fprintln(w)
	return nil
}

func (o *rootOptions) printTransactions(w io.Writer, txs []core.Transaction) error {
	if o.asJSON {
		views := make([]transactionView, 0, len(txs))
		for _, t := range txs {
			views = append(views, toTransactionView(t))
		}
		return writeJSON(w, views)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tACCOUNT\tTYPE\tAMOUNT\tCATEGORY\tSTATUS\tRECURRING\tDESCRIPTION")
	for _, t := range txs {
		recurring := ""
		if t.IsRecurring && t.RecurringInterval != nil {
			recurring = t.RecurringInterval.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, core.FormatDate(t.Date), t.AccountID, t.Type, o.money(t.SignedAmount()),
			t.Category, t.Status, recurring, t.Description)
	}
	return tw.Flush()
}

func (o *rootOptions) printTransaction(w io.Writer, t core.Transaction) error {
	if o.asJSON {
		return writeJSON(w, toTransactionView(t))
	}
	return o.printTransactions(w, []core.Transaction{t})
}

func (o *rootOptions) printBudget(w io.Writer, s core.BudgetStatus) error {
	if o.asJSON {
		v := struct {
			Budget          *string  `json:"budget"`
			CurrentExpenses string   `json:"currentExpenses"`
			Remaining       *string  `json:"remaining"`
			PercentUsed     *float64 `json:"percentUsed"`
		}{CurrentExpenses: s.CurrentExpenses.String(), PercentUsed: s.PercentUsed}
		if s.Budget != nil {
			b := s.Budget.String()
			v.Budget = &b
		}
		if s.Remaining != nil {
			r := s.Remaining.String()
			v.Remaining = &r
		}
		return writeJSON(w, v)
	}
	if s.Budget == nil {
		fmt.Fprintf(w, "No budget set. Expenses this month: %s\n", o.money(s.CurrentExpenses))
		return nil
	}
	pct := ""
	if s.PercentUsed != nil {
		pct = strconv.FormatFloat(*s.PercentUsed, 'f', 1, 64) + "%"
	}
	fmt.Fprintf(w, "Budget:    %s\nSpent:     %s (%s)\nRemaining: %s\n",
		o.money(*s.Budget), o.money(s.CurrentExpenses), pct, o.money(*s.Remaining))
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
