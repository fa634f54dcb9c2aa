// Package receipt turns a receipt image into a transaction draft. Extracted
// values are untrusted and go through the same parsing as user input before
// anything is stored.
package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"finance/internal/core"
)

// MaxImageSize is the largest receipt image accepted, in bytes.
const MaxImageSize = 5 << 20

var supportedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

// Extractor reads a receipt image.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (Draft, error)
}

// Draft holds the fields read from a receipt. Nothing in it has been
// validated yet.
type Draft struct {
	Amount       string `json:"amount"`
	Date         string `json:"date"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	MerchantName string `json:"merchantName"`
}

// ToRaw converts the draft into raw transaction input for accountID.
// Receipts are expenses unless typ says otherwise.
func (d Draft) ToRaw(accountID string, typ core.TransactionType) core.RawTransaction {
	if typ == "" {
		typ = core.Expense
	}
	description := strings.TrimSpace(d.Description)
	if description == "" {
		description = strings.TrimSpace(d.MerchantName)
	}
	return core.RawTransaction{
		AccountID:   accountID,
		Type:        string(typ),
		Amount:      d.Amount,
		Description: description,
		Category:    strings.ToLower(strings.TrimSpace(d.Category)),
		Date:        d.Date,
	}
}

// Input parses the draft as transaction input. The result is validated
// exactly like user-submitted input.
func (d Draft) Input(accountID string, typ core.TransactionType) (core.TransactionInput, error) {
	in, err := core.ParseTransaction(d.ToRaw(accountID, typ))
	if err != nil {
		return core.TransactionInput{}, fmt.Errorf("receipt draft: %w", err)
	}
	return in, nil
}

// CheckImage rejects empty, oversized or non-image uploads.
func CheckImage(image []byte, mimeType string) error {
	if len(image) == 0 {
		return fmt.Errorf("%w: empty receipt image", core.ErrInvalidInput)
	}
	if len(image) > MaxImageSize {
		return fmt.Errorf("%w: receipt image exceeds %d bytes", core.ErrInvalidInput, MaxImageSize)
	}
	if !supportedMIMETypes[strings.ToLower(strings.TrimSpace(mimeType))] {
		return fmt.Errorf("%w: unsupported receipt type %q", core.ErrInvalidInput, mimeType)
	}
	return nil
}

// modelDraft mirrors Draft with amount accepted as a JSON number or string.
type modelDraft struct {
	Amount       looseString `json:"amount"`
	Date         looseString `json:"date"`
	Description  string      `json:"description"`
	Category     string      `json:"category"`
	MerchantName string      `json:"merchantName"`
}

// looseString keeps the literal text of a JSON string or number so decimal
// amounts are never routed through float64.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = looseString(n.String())
	return nil
}

// decodeDraft parses the model's reply into a Draft.
func decodeDraft(raw string) (Draft, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return Draft{}, fmt.Errorf("%w: empty model response", core.ErrInvalidInput)
	}
	var md modelDraft
	if err := json.Unmarshal([]byte(clean), &md); err != nil {
		return Draft{}, fmt.Errorf("%w: unreadable model response: %v", core.ErrInvalidInput, err)
	}
	return Draft{
		Amount:       strings.TrimSpace(string(md.Amount)),
		Date:         strings.TrimSpace(string(md.Date)),
		Description:  strings.TrimSpace(md.Description),
		Category:     strings.TrimSpace(md.Category),
		MerchantName: strings.TrimSpace(md.MerchantName),
	}, nil
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return ""
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
