package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"

	Pending   TransactionStatus = "PENDING"
	Completed TransactionStatus = "COMPLETED"
	Failed    TransactionStatus = "FAILED"

	Current AccountType = "CURRENT"
	Savings AccountType = "SAVINGS"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 500
	dateLayout           = "2006-01-02"
)

type (
	// OwnerID identifies the authenticated user that exclusively owns a set
	// of accounts, transactions and a budget.
	OwnerID string

	TransactionType   string
	TransactionStatus string
	AccountType       string

	Account struct {
		ID      string
		Owner   OwnerID
		Name    string
		Type    AccountType
		Balance Money
		// OpeningBalance is the balance the account was created with; the
		// cached Balance always equals OpeningBalance plus the signed sum of
		// the account's transactions.
		OpeningBalance Money
		IsDefault      bool
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	Transaction struct {
		ID                string
		Owner             OwnerID
		AccountID         string
		Type              TransactionType
		Amount            Money // unsigned, sign comes from Type
		Description       string
		Category          string
		Date              time.Time
		Status            TransactionStatus
		IsRecurring       bool
		RecurringInterval *Interval
		NextRecurringDate *time.Time
		ReceiptURL        string
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	Budget struct {
		ID            string
		Owner         OwnerID
		Amount        Money
		LastAlertSent *time.Time
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// AccountInput carries validated fields for a new account.
	AccountInput struct {
		Name      string
		Type      AccountType
		Balance   Money
		IsDefault bool
	}

	// TransactionInput carries validated fields for creating or replacing a
	// transaction.
	TransactionInput struct {
		AccountID         string
		Type              TransactionType
		Amount            Money
		Description       string
		Category          string
		Date              time.Time
		Status            TransactionStatus
		IsRecurring       bool
		RecurringInterval *Interval
		ReceiptURL        string
	}

	// RawAccount is account input as submitted, before parsing.
	RawAccount struct {
		Name      string
		Type      string
		Balance   string
		IsDefault bool
	}

	// RawTransaction is transaction input as submitted (or as extracted from
	// a receipt), before parsing. Every field is untrusted.
	RawTransaction struct {
		AccountID         string
		Type              string
		Amount            string
		Description       string
		Category          string
		Date              string
		Status            string
		IsRecurring       bool
		RecurringInterval string
		ReceiptURL        string
	}
)

// Validate rejects a blank owner. Absence of a valid identity stops every
// operation before it reaches storage.
func (o OwnerID) Validate() error {
	if strings.TrimSpace(string(o)) == "" {
		return ErrUnauthorized
	}
	return nil
}

func (o OwnerID) String() string { return string(o) }

func (t TransactionType) Valid() bool { return t == Income || t == Expense }

func (s TransactionStatus) Valid() bool {
	return s == Pending || s == Completed || s == Failed
}

func (t AccountType) Valid() bool { return t == Current || t == Savings }

// SignedAmount returns +amount for income and -amount for expenses.
func SignedAmount(t TransactionType, amount Money) Money {
	if t == Expense {
		return amount.Neg()
	}
	return amount
}

// SignedAmount is the transaction's contribution to its account balance.
func (t Transaction) SignedAmount() Money {
	return SignedAmount(t.Type, t.Amount)
}

// SignedAmount is the contribution the input would make once persisted.
func (in TransactionInput) SignedAmount() Money {
	return SignedAmount(in.Type, in.Amount)
}

// Normalized fills defaults: status COMPLETED, and no interval unless the
// transaction is recurring.
func (in TransactionInput) Normalized() TransactionInput {
	if in.Status == "" {
		in.Status = Completed
	}
	if !in.IsRecurring {
		in.RecurringInterval = nil
	}
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	return in
}

func (in TransactionInput) Validate() error {
	if strings.TrimSpace(in.AccountID) == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: transaction type %q", ErrInvalidInput, in.Type)
	}
	if in.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidAmount)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if in.Status != "" && !in.Status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidInput, in.Status)
	}
	if strings.TrimSpace(in.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	if len(in.Description) > maxDescriptionLength {
		return fmt.Errorf("%w: description too long (max %d characters)", ErrInvalidInput, maxDescriptionLength)
	}
	if in.RecurringInterval != nil && !in.RecurringInterval.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidInterval, string(*in.RecurringInterval))
	}
	return nil
}

func (in AccountInput) Validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: account name is required", ErrInvalidInput)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: account name too long (max %d characters)", ErrInvalidInput, maxNameLength)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: account type %q", ErrInvalidInput, in.Type)
	}
	return nil
}

// ParseAccount parses and validates raw account fields. A blank balance
// opens the account at zero.
func ParseAccount(raw RawAccount) (AccountInput, error) {
	balance := Zero()
	if strings.TrimSpace(raw.Balance) != "" {
		var err error
		if balance, err = ParseBalance(raw.Balance); err != nil {
			return AccountInput{}, err
		}
	}
	in := AccountInput{
		Name:      strings.TrimSpace(raw.Name),
		Type:      AccountType(strings.ToUpper(strings.TrimSpace(raw.Type))),
		Balance:   balance,
		IsDefault: raw.IsDefault,
	}
	if in.Type == "" {
		in.Type = Current
	}
	if err := in.Validate(); err != nil {
		return AccountInput{}, err
	}
	return in, nil
}

// ParseTransaction parses and validates raw transaction fields. User input
// and receipt extraction output both go through here.
func ParseTransaction(raw RawTransaction) (TransactionInput, error) {
	amount, err := ParseAmount(raw.Amount)
	if err != nil {
		return TransactionInput{}, err
	}
	date, err := ParseDate(raw.Date)
	if err != nil {
		return TransactionInput{}, err
	}
	in := TransactionInput{
		AccountID:   strings.TrimSpace(raw.AccountID),
		Type:        TransactionType(strings.ToUpper(strings.TrimSpace(raw.Type))),
		Amount:      amount,
		Description: raw.Description,
		Category:    raw.Category,
		Date:        date,
		Status:      TransactionStatus(strings.ToUpper(strings.TrimSpace(raw.Status))),
		IsRecurring: raw.IsRecurring,
		ReceiptURL:  strings.TrimSpace(raw.ReceiptURL),
	}
	if strings.TrimSpace(raw.RecurringInterval) != "" {
		every, err := ParseInterval(raw.RecurringInterval)
		if err != nil {
			return TransactionInput{}, err
		}
		in.RecurringInterval = &every
	}
	in = in.Normalized()
	if err := in.Validate(); err != nil {
		return TransactionInput{}, err
	}
	return in, nil
}

// ParseDate accepts a calendar date (2006-01-02), placed at midnight UTC, or
// an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidInput, s)
	}
	return t, nil
}

// FormatDate renders t as a calendar date.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
