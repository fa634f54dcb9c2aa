package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAuditCmd(o *rootOptions) *cobra.Command {
	var repair bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check every cached balance against its transactions",
		Long: `Recompute each account's balance from its opening balance and
transactions and report accounts whose cached balance disagrees.
With --repair, drifted balances are rewritten. The audit covers every
owner in the database, not just --owner.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := o.app.Auditor.Run(cmd.Context(), repair)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if o.asJSON {
				type issue struct {
					Owner     string `json:"owner"`
					AccountID string `json:"accountId"`
					Problem   string `json:"problem"`
				}
				type fix struct {
					AccountID string `json:"accountId"`
					Cached    string `json:"cached"`
					Expected  string `json:"expected"`
				}
				issues := make([]issue, 0, len(report.Inconsistent))
				for _, in := range report.Inconsistent {
					issues = append(issues, issue{string(in.Owner), in.AccountID, in.Err.Error()})
				}
				fixes := make([]fix, 0, len(report.Repaired))
				for _, d := range report.Repaired {
					fixes = append(fixes, fix{d.AccountID, d.Cached.String(), d.Expected.String()})
				}
				return writeJSON(w, struct {
					Owners       int     `json:"owners"`
					Accounts     int     `json:"accounts"`
					Inconsistent []issue `json:"inconsistent"`
					Repaired     []fix   `json:"repaired"`
				}{report.Owners, report.Accounts, issues, fixes})
			}

			fmt.Fprintf(w, "Audited %d account(s) of %d owner(s) in %s\n", report.Accounts, report.Owners, report.Duration)
			if len(report.Inconsistent) == 0 {
				fmt.Fprintln(w, "All balances consistent")
				return nil
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "OWNER\tACCOUNT\tPROBLEM")
			for _, in := range report.Inconsistent {
				fmt.Fprintf(tw, "%s\t%s\t%v\n", in.Owner, in.AccountID, in.Err)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, d := range report.Repaired {
				fmt.Fprintf(w, "Repaired %s: %s -> %s\n", d.AccountID, o.money(d.Cached), o.money(d.Expected))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "rewrite drifted balances")
	return cmd
}
