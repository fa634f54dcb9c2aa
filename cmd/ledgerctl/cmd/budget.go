package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBudgetCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Set and check the monthly budget",
	}
	cmd.AddCommand(newBudgetSetCmd(o), newBudgetShowCmd(o))
	return cmd
}

func newBudgetSetCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <amount>",
		Short: "Create or replace the monthly budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := o.app.Service.UpdateBudget(cmd.Context(), o.ownerID(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if o.asJSON {
				return writeJSON(w, struct {
					ID     string `json:"id"`
					Amount string `json:"amount"`
				}{b.ID, b.Amount.String()})
			}
			fmt.Fprintf(w, "Monthly budget set to %s\n", o.money(b.Amount))
			return nil
		},
	}
}

func newBudgetShowCmd(o *rootOptions) *cobra.Command {
	var accountID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show this month's spending against the budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if accountID != "" {
				// An unknown account would otherwise show zero expenses.
				if _, err := o.app.Service.GetAccount(cmd.Context(), o.ownerID(), accountID); err != nil {
					return err
				}
			}
			status, err := o.app.Service.CurrentBudget(cmd.Context(), o.ownerID(), accountID)
			if err != nil {
				return err
			}
			return o.printBudget(cmd.OutOrStdout(), status)
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "count only this account's expenses")
	return cmd
}
