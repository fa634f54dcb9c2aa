package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"finance/internal/core"
	"finance/internal/storage"

	"github.com/spf13/cobra"
)

func newTxCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transaction"},
		Short:   "Book, change and list transactions",
	}
	cmd.AddCommand(
		newTxAddCmd(o),
		newTxUpdateCmd(o),
		newTxDeleteCmd(o),
		newTxGetCmd(o),
		newTxListCmd(o),
	)
	return cmd
}

// transactionFlags binds the fields of a RawTransaction to command flags.
func transactionFlags(cmd *cobra.Command, raw *core.RawTransaction) {
	cmd.Flags().StringVar(&raw.AccountID, "account", "", "account id")
	cmd.Flags().StringVar(&raw.Type, "type", string(core.Expense), "INCOME or EXPENSE")
	cmd.Flags().StringVar(&raw.Amount, "amount", "", "amount, always positive")
	cmd.Flags().StringVar(&raw.Category, "category", "", "category")
	cmd.Flags().StringVar(&raw.Description, "description", "", "description")
	cmd.Flags().StringVar(&raw.Date, "date", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&raw.Status, "status", "", "PENDING, COMPLETED or FAILED (default COMPLETED)")
	cmd.Flags().BoolVar(&raw.IsRecurring, "recurring", false, "repeat the transaction")
	cmd.Flags().StringVar(&raw.RecurringInterval, "interval", "", intervalChoices())
	cmd.Flags().StringVar(&raw.ReceiptURL, "receipt-url", "", "link to the receipt")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
}

// intervalChoices renders the supported intervals as "A, B or C".
func intervalChoices() string {
	all := core.Intervals()
	names := make([]string, len(all))
	for i, every := range all {
		names[i] = string(every)
	}
	last := len(names) - 1
	return strings.Join(names[:last], ", ") + " or " + names[last]
}

func defaultDate(raw *core.RawTransaction) {
	if strings.TrimSpace(raw.Date) == "" {
		raw.Date = core.FormatDate(time.Now())
	}
}

func newTxAddCmd(o *rootOptions) *cobra.Command {
	var raw core.RawTransaction
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Book a transaction and adjust its account balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaultDate(&raw)
			t, err := o.app.Service.CreateTransaction(cmd.Context(), o.ownerID(), raw)
			if err != nil {
				return err
			}
			return o.printTransaction(cmd.OutOrStdout(), t)
		},
	}
	transactionFlags(cmd, &raw)
	return cmd
}

func newTxUpdateCmd(o *rootOptions) *cobra.Command {
	var raw core.RawTransaction
	cmd := &cobra.Command{
		Use:   "update <transaction-id>",
		Short: "Replace a transaction",
		Long: `Replace every field of a transaction. The old amount is reversed on its
account and the new amount applied to the (possibly different) target
account in one step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defaultDate(&raw)
			t, err := o.app.Service.UpdateTransaction(cmd.Context(), o.ownerID(), args[0], raw)
			if err != nil {
				return err
			}
			return o.printTransaction(cmd.OutOrStdout(), t)
		},
	}
	transactionFlags(cmd, &raw)
	return cmd
}

func newTxDeleteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <transaction-id>...",
		Short: "Delete transactions and reverse their effect on balances",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := o.app.Service.DeleteTransactions(cmd.Context(), o.ownerID(), args)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if o.asJSON {
				adjustments := make(map[string]string, len(res.Adjustments))
				for id, delta := range res.Adjustments {
					adjustments[id] = delta.String()
				}
				return writeJSON(w, struct {
					Deleted     []string          `json:"deleted"`
					Adjustments map[string]string `json:"adjustments"`
				}{res.Deleted, adjustments})
			}
			fmt.Fprintf(w, "Deleted %d transaction(s)\n", len(res.Deleted))
			for id, delta := range res.Adjustments {
				fmt.Fprintf(w, "  %s  %s\n", id, o.money(delta))
			}
			return nil
		},
	}
}

func newTxGetCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <transaction-id>",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := o.app.Service.GetTransaction(cmd.Context(), o.ownerID(), args[0])
			if err != nil {
				return err
			}
			return o.printTransaction(cmd.OutOrStdout(), t)
		},
	}
}

func newTxListCmd(o *rootOptions) *cobra.Command {
	var (
		filter    storage.TransactionFilter
		txType    string
		status    string
		from, to  string
		recurring bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Type = core.TransactionType(strings.ToUpper(txType))
			filter.Status = core.TransactionStatus(strings.ToUpper(status))
			var err error
			if from != "" {
				if filter.From, err = core.ParseDate(from); err != nil {
					return err
				}
			}
			if to != "" {
				if filter.To, err = core.ParseDate(to); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("recurring") {
				filter.IsRecurring = &recurring
			}
			txs, err := o.app.Service.ListTransactions(cmd.Context(), o.ownerID(), filter)
			if err != nil {
				return err
			}
			return o.printTransactions(cmd.OutOrStdout(), txs)
		},
	}
	cmd.Flags().StringVar(&filter.AccountID, "account", "", "only this account")
	cmd.Flags().StringVar(&txType, "type", "", "only INCOME or EXPENSE")
	cmd.Flags().StringVar(&status, "status", "", "only this status")
	cmd.Flags().StringVar(&filter.Category, "category", "", "only this category")
	cmd.Flags().StringVar(&from, "from", "", "earliest date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "latest date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&recurring, "recurring", false, "only recurring (or, with =false, only one-off) transactions")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum number of transactions")
	return cmd
}

func newDashboardCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show every account, every transaction and spending per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := o.app.Service.Dashboard(cmd.Context(), o.ownerID())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if o.asJSON {
				v := struct {
					Accounts           []accountView     `json:"accounts"`
					Transactions       []transactionView `json:"transactions"`
					ExpensesByCategory []categoryView    `json:"expensesByCategory"`
				}{
					make([]accountView, 0, len(d.Accounts)),
					make([]transactionView, 0, len(d.Transactions)),
					make([]categoryView, 0, len(d.ExpensesByCategory)),
				}
				for _, a := range d.Accounts {
					av := toAccountView(a.Account)
					count := a.TransactionCount
					av.TransactionCount = &count
					v.Accounts = append(v.Accounts, av)
				}
				for _, t := range d.Transactions {
					v.Transactions = append(v.Transactions, toTransactionView(t))
				}
				for _, c := range d.ExpensesByCategory {
					v.ExpensesByCategory = append(v.ExpensesByCategory, categoryView{c.Name, c.Amount.String()})
				}
				return writeJSON(w, v)
			}
			if err := o.printAccounts(w, d.Accounts); err != nil {
				return err
			}
			fmt.Fprintln(w)
			if err := o.printTransactions(w, d.Transactions); err != nil {
				return err
			}
			if len(d.ExpensesByCategory) == 0 {
				return nil
			}
			fmt.Fprintln(w)
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tEXPENSES")
			for _, c := range d.ExpensesByCategory {
				fmt.Fprintf(tw, "%s\t%s\n", c.Name, o.money(c.Amount))
			}
			return tw.Flush()
		},
	}
}
