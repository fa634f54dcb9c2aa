package cmd

import (
	"finance/internal/core"

	"github.com/spf13/cobra"
)

func newAccountCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Create and inspect accounts",
	}
	cmd.AddCommand(
		newAccountCreateCmd(o),
		newAccountListCmd(o),
		newAccountShowCmd(o),
		newAccountDefaultCmd(o),
	)
	return cmd
}

func newAccountCreateCmd(o *rootOptions) *cobra.Command {
	var raw core.RawAccount
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Long: `Create an account with an opening balance. The first account becomes
the default when --default is given; marking a new default clears the
previous one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := o.app.Service.CreateAccount(cmd.Context(), o.ownerID(), raw)
			if err != nil {
				return err
			}
			return o.printAccount(cmd.OutOrStdout(), acc)
		},
	}
	cmd.Flags().StringVar(&raw.Name, "name", "", "account name")
	cmd.Flags().StringVar(&raw.Type, "type", string(core.Current), "account type (CURRENT or SAVINGS)")
	cmd.Flags().StringVar(&raw.Balance, "balance", "", "opening balance (default 0)")
	cmd.Flags().BoolVar(&raw.IsDefault, "default", false, "make this the default account")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAccountListCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts with their transaction counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := o.app.Service.ListAccounts(cmd.Context(), o.ownerID())
			if err != nil {
				return err
			}
			return o.printAccounts(cmd.OutOrStdout(), accounts)
		},
	}
}

func newAccountShowCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <account-id>",
		Short: "Show an account and its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, err := o.app.Service.AccountDetail(cmd.Context(), o.ownerID(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if o.asJSON {
				v := struct {
					Account      accountView       `json:"account"`
					Transactions []transactionView `json:"transactions"`
				}{Account: toAccountView(detail.Account), Transactions: make([]transactionView, 0, len(detail.Transactions))}
				count := detail.TransactionCount
				v.Account.TransactionCount = &count
				for _, t := range detail.Transactions {
					v.Transactions = append(v.Transactions, toTransactionView(t))
				}
				return writeJSON(w, v)
			}
			if err := o.printAccount(w, detail.Account); err != nil {
				return err
			}
			return o.printTransactions(w, detail.Transactions)
		},
	}
}

func newAccountDefaultCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "default <account-id>",
		Short: "Make an account the owner's default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := o.app.Service.SetDefaultAccount(cmd.Context(), o.ownerID(), args[0])
			if err != nil {
				return err
			}
			return o.printAccount(cmd.OutOrStdout(), acc)
		},
	}
}
