package cmd

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"finance/internal/core"

	"github.com/spf13/cobra"
)

func newReceiptCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receipt",
		Short: "Read transactions from receipt images",
	}
	cmd.AddCommand(newReceiptScanCmd(o))
	return cmd
}

func newReceiptScanCmd(o *rootOptions) *cobra.Command {
	var (
		accountID string
		txType    string
		save      bool
	)
	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Extract a transaction draft from a receipt image",
		Long: `Extract amount, date, description and category from a receipt image.
The draft is printed for review; with --save it is booked on --account
through the regular create path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read receipt: %w", err)
			}
			draft, err := o.app.Service.ScanReceipt(cmd.Context(), o.ownerID(), image, imageType(args[0], image))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if !save {
				if o.asJSON {
					return writeJSON(w, draft)
				}
				fmt.Fprintf(w, "Amount:      %s\nDate:        %s\nDescription: %s\nCategory:    %s\nMerchant:    %s\n",
					draft.Amount, draft.Date, draft.Description, draft.Category, draft.MerchantName)
				return nil
			}

			if accountID == "" {
				return fmt.Errorf("%w: --account is required with --save", core.ErrInvalidInput)
			}
			typ := core.TransactionType(strings.ToUpper(txType))
			t, err := o.app.Service.CreateFromReceipt(cmd.Context(), o.ownerID(), draft, accountID, typ)
			if err != nil {
				return err
			}
			return o.printTransaction(w, t)
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account to book the draft on")
	cmd.Flags().StringVar(&txType, "type", string(core.Expense), "INCOME or EXPENSE")
	cmd.Flags().BoolVar(&save, "save", false, "book the draft as a transaction")
	return cmd
}

// imageType prefers the file extension since content sniffing does not
// recognise HEIC.
func imageType(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return http.DetectContentType(data)
}
