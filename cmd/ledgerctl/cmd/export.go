package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the owner's transactions to Google Sheets",
		Long: `Replace the configured sheet (GOOGLE_SPREADSHEET_ID, GOOGLE_SHEET_NAME)
with one row per transaction. Requires a service account in
GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.app.Exporter == nil {
				return errors.New("export is not configured: set GOOGLE_SPREADSHEET_ID and a service account")
			}
			d, err := o.app.Service.Dashboard(cmd.Context(), o.ownerID())
			if err != nil {
				return err
			}
			n, err := o.app.Exporter.Export(cmd.Context(), o.ownerID(), d.Accounts, d.Transactions)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d transaction(s)\n", n)
			return nil
		},
	}
}
