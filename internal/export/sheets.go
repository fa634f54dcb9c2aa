// Package export writes an owner's ledger to a Google Sheets spreadsheet.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"finance/internal/core"
	"finance/internal/log"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const DefaultSheetName = "Transactions"

// Header is the first row of every export.
var Header = []any{"Date", "Account", "Type", "Amount", "Signed amount", "Category", "Description", "Status", "Recurring", "Next occurrence", "ID"}

// Config selects the target spreadsheet and the service account used to
// write it. CredentialsJSON takes precedence over CredentialsFile.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
}

// valuesWriter is the part of the Sheets values API the exporter needs.
type valuesWriter interface {
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Update(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
}

type sheetsValues struct {
	svc *gsheet.Service
}

func (v sheetsValues) Clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := v.svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (v sheetsValues) Update(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := v.svc.Spreadsheets.Values.Update(spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// SheetsExporter replaces the content of one sheet with an owner's
// transactions.
type SheetsExporter struct {
	values        valuesWriter
	spreadsheetID string
	sheet         string
}

// NewSheetsExporter creates a Sheets client authenticated with a service
// account.
func NewSheetsExporter(ctx context.Context, cfg Config) (*SheetsExporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	credentials := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	if len(credentials) == 0 {
		if cfg.CredentialsFile == "" {
			return nil, errors.New("missing service account credentials")
		}
		var err error
		if credentials, err = os.ReadFile(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newSheetsExporter(sheetsValues{svc: svc}, cfg.SpreadsheetID, cfg.SheetName), nil
}

func newSheetsExporter(values valuesWriter, spreadsheetID, sheet string) *SheetsExporter {
	if strings.TrimSpace(sheet) == "" {
		sheet = DefaultSheetName
	}
	return &SheetsExporter{values: values, spreadsheetID: spreadsheetID, sheet: sheet}
}

// Export clears the sheet and writes a header plus one row per transaction.
// It returns the number of transaction rows written.
func (e *SheetsExporter) Export(ctx context.Context, owner core.OwnerID, accounts []core.AccountSummary, txs []core.Transaction) (int, error) {
	if err := owner.Validate(); err != nil {
		return 0, err
	}
	start := time.Now()
	quoted := "'" + strings.ReplaceAll(e.sheet, "'", "''") + "'"

	if err := e.values.Clear(ctx, e.spreadsheetID, quoted+"!A:K"); err != nil {
		return 0, fmt.Errorf("clear sheet %s: %w", e.sheet, err)
	}
	rows := Rows(accounts, txs)
	if err := e.values.Update(ctx, e.spreadsheetID, quoted+"!A1", rows); err != nil {
		return 0, fmt.Errorf("update sheet %s: %w", e.sheet, err)
	}

	slog.InfoContext(ctx, "Ledger exported",
		log.FieldComponent, log.ComponentExport,
		log.FieldOwnerID, string(owner),
		log.FieldCount, len(txs),
		"sheet", e.sheet,
		log.FieldDuration, time.Since(start).Milliseconds())
	return len(txs), nil
}

// Rows renders transactions as sheet rows preceded by Header. Amounts are
// written as decimal text so the sheet shows exactly what is stored.
func Rows(accounts []core.AccountSummary, txs []core.Transaction) [][]any {
	names := make(map[string]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}

	rows := make([][]any, 0, len(txs)+1)
	rows = append(rows, Header)
	for _, t := range txs {
		account := names[t.AccountID]
		if account == "" {
			account = t.AccountID
		}
		recurring := ""
		if t.IsRecurring && t.RecurringInterval != nil {
			recurring = t.RecurringInterval.String()
		}
		next := ""
		if t.NextRecurringDate != nil {
			next = core.FormatDate(*t.NextRecurringDate)
		}
		rows = append(rows, []any{
			core.FormatDate(t.Date),
			account,
			string(t.Type),
			t.Amount.String(),
			t.SignedAmount().String(),
			t.Category,
			t.Description,
			string(t.Status),
			recurring,
			next,
			t.ID,
		})
	}
	return rows
}
