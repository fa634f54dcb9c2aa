package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"finance/internal/cache"
	"finance/internal/core"
	"finance/internal/log"
	"finance/internal/notify"
	"finance/internal/receipt"
	"finance/internal/storage"
)

// AccountStore is the account persistence used by LedgerService.
type AccountStore interface {
	Create(ctx context.Context, owner core.OwnerID, in core.AccountInput) (core.Account, error)
	SetDefault(ctx context.Context, owner core.OwnerID, accountID string) (core.Account, error)
	Get(ctx context.Context, owner core.OwnerID, accountID string) (core.Account, error)
	ListWithTransactionCount(ctx context.Context, owner core.OwnerID) ([]core.AccountSummary, error)
	GetWithTransactions(ctx context.Context, owner core.OwnerID, accountID string) (core.AccountDetail, error)
}

// TransactionStore is the transaction persistence used by LedgerService.
type TransactionStore interface {
	Create(ctx context.Context, owner core.OwnerID, in core.TransactionInput) (core.Transaction, error)
	Update(ctx context.Context, owner core.OwnerID, id string, in core.TransactionInput) (core.Transaction, error)
	Delete(ctx context.Context, owner core.OwnerID, ids []string) (storage.DeleteResult, error)
	Get(ctx context.Context, owner core.OwnerID, id string) (core.Transaction, error)
	List(ctx context.Context, owner core.OwnerID, filter storage.TransactionFilter) ([]core.Transaction, error)
}

// BudgetStore is the budget persistence used by LedgerService.
type BudgetStore interface {
	Upsert(ctx context.Context, owner core.OwnerID, amount core.Money) (core.Budget, error)
	Get(ctx context.Context, owner core.OwnerID) (*core.Budget, error)
	Evaluate(ctx context.Context, owner core.OwnerID, accountID string, asOf time.Time) (core.BudgetStatus, error)
	MarkAlertSent(ctx context.Context, owner core.OwnerID, at time.Time) error
}

// Admitter decides whether an owner may perform a create.
type Admitter interface {
	Admit(ctx context.Context, owner core.OwnerID, units int) error
}

// Notifier is told which views a mutation made stale. It is fire-and-forget;
// the local view cache is dropped before it is called.
type Notifier interface {
	Invalidate(owner core.OwnerID, views ...notify.View) bool
}

// Options holds the optional collaborators of LedgerService. Nil fields
// disable the corresponding concern.
type Options struct {
	Admission Admitter
	Notifier  Notifier
	Views     *cache.Views
	Receipts  receipt.Extractor
	Now       func() time.Time
}

// Dashboard is the owner's overview: every account with its transaction
// count, every transaction, newest first, and expense totals per category.
type Dashboard struct {
	Accounts           []core.AccountSummary
	Transactions       []core.Transaction
	ExpensesByCategory []core.CategoryAmount
}

// LedgerService is the boundary every caller goes through. Each operation
// checks the owner first, then admission (creates only), then the input,
// then runs one atomic storage operation and finally notifies listeners.
type LedgerService struct {
	accounts     AccountStore
	transactions TransactionStore
	budgets      BudgetStore

	admission Admitter
	notifier  Notifier
	views     *cache.Views
	local     *notify.CacheSink
	receipts  receipt.Extractor
	now       func() time.Time
}

func NewLedgerService(accounts AccountStore, transactions TransactionStore, budgets BudgetStore, opts Options) *LedgerService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &LedgerService{
		accounts:     accounts,
		transactions: transactions,
		budgets:      budgets,
		admission:    opts.Admission,
		notifier:     opts.Notifier,
		views:        opts.Views,
		receipts:     opts.Receipts,
		now:          now,
	}
	if opts.Views != nil {
		s.local = notify.NewCacheSink(opts.Views)
	}
	return s
}

func (s *LedgerService) admit(ctx context.Context, owner core.OwnerID) error {
	if s.admission == nil {
		return nil
	}
	return s.admission.Admit(ctx, owner, 1)
}

// invalidate drops this process's cached copies of views before returning,
// so the caller's next read sees the mutation. Other processes are told
// through the notifier; a dropped notification there only delays their
// refresh until the entry expires.
func (s *LedgerService) invalidate(ctx context.Context, owner core.OwnerID, views ...notify.View) {
	if s.local != nil {
		s.local.Invalidate(ctx, owner, views)
	}
	if s.notifier == nil {
		return
	}
	if !s.notifier.Invalidate(owner, views...) {
		slog.WarnContext(ctx, "Stale view notification not queued",
			log.FieldComponent, log.ComponentLedger,
			log.FieldOwnerID, string(owner))
	}
}

// logFailure records storage failures that are not the caller's fault.
// Domain errors are returned to the caller without logging.
func logFailure(ctx context.Context, msg string, err error, op string, owner core.OwnerID) {
	switch core.KindOf(err) {
	case core.KindTransient, core.KindInconsistent, core.KindInternal:
		log.NewStructuredLogger(log.FromContext(ctx)).
			LogError(ctx, msg, err, log.ComponentLedger, op, log.NewFields().WithOwner(string(owner)))
	}
}

// CreateAccount opens an account. The owner's first account always becomes
// the default.
func (s *LedgerService) CreateAccount(ctx context.Context, owner core.OwnerID, raw core.RawAccount) (core.Account, error) {
	if err := owner.Validate(); err != nil {
		return core.Account{}, err
	}
	if err := s.admit(ctx, owner); err != nil {
		return core.Account{}, err
	}
	in, err := core.ParseAccount(raw)
	if err != nil {
		return core.Account{}, err
	}

	account, err := s.accounts.Create(ctx, owner, in)
	if err != nil {
		return core.Account{}, err
	}
	s.invalidate(ctx, owner, notify.Accounts, notify.Dashboard)
	return account, nil
}

// SetDefaultAccount makes accountID the owner's only default account.
func (s *LedgerService) SetDefaultAccount(ctx context.Context, owner core.OwnerID, accountID string) (core.Account, error) {
	if err := owner.Validate(); err != nil {
		return core.Account{}, err
	}
	account, err := s.accounts.SetDefault(ctx, owner, accountID)
	if err != nil {
		return core.Account{}, err
	}
	s.invalidate(ctx, owner, notify.Accounts, notify.Dashboard)
	return account, nil
}

// ListAccounts returns the owner's accounts, newest first, with their
// transaction counts.
func (s *LedgerService) ListAccounts(ctx context.Context, owner core.OwnerID) ([]core.AccountSummary, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	return cache.Load(ctx, s.views, notify.Key(owner, notify.Accounts), func(ctx context.Context) ([]core.AccountSummary, error) {
		return s.accounts.ListWithTransactionCount(ctx, owner)
	})
}

func (s *LedgerService) GetAccount(ctx context.Context, owner core.OwnerID, accountID string) (core.Account, error) {
	if err := owner.Validate(); err != nil {
		return core.Account{}, err
	}
	return s.accounts.Get(ctx, owner, accountID)
}

// AccountDetail returns one account with all of its transactions.
func (s *LedgerService) AccountDetail(ctx context.Context, owner core.OwnerID, accountID string) (core.AccountDetail, error) {
	if err := owner.Validate(); err != nil {
		return core.AccountDetail{}, err
	}
	return cache.Load(ctx, s.views, notify.Key(owner, notify.Account(accountID)), func(ctx context.Context) (core.AccountDetail, error) {
		return s.accounts.GetWithTransactions(ctx, owner, accountID)
	})
}

// CreateTransaction books a transaction and moves the account balance by
// its signed amount.
func (s *LedgerService) CreateTransaction(ctx context.Context, owner core.OwnerID, raw core.RawTransaction) (core.Transaction, error) {
	if err := owner.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.admit(ctx, owner); err != nil {
		return core.Transaction{}, err
	}
	in, err := core.ParseTransaction(raw)
	if err != nil {
		return core.Transaction{}, err
	}

	t, err := s.transactions.Create(ctx, owner, in)
	if err != nil {
		logFailure(ctx, "Create transaction failed", err, log.OpCreate, owner)
		return core.Transaction{}, err
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogTransactionCreated(ctx,
		string(owner), t.ID, t.AccountID, string(t.Type), t.Amount.String(), t.Category)
	s.invalidate(ctx, owner, notify.MutationViews(t.AccountID)...)
	return t, nil
}

// UpdateTransaction replaces a transaction's fields and rebalances the
// accounts involved.
func (s *LedgerService) UpdateTransaction(ctx context.Context, owner core.OwnerID, id string, raw core.RawTransaction) (core.Transaction, error) {
	if err := owner.Validate(); err != nil {
		return core.Transaction{}, err
	}
	in, err := core.ParseTransaction(raw)
	if err != nil {
		return core.Transaction{}, err
	}

	t, err := s.transactions.Update(ctx, owner, id, in)
	if err != nil {
		logFailure(ctx, "Update transaction failed", err, log.OpUpdate, owner)
		return core.Transaction{}, err
	}
	// Accounts covers the previous account's detail view when the
	// transaction moved.
	s.invalidate(ctx, owner, notify.MutationViews(t.AccountID)...)
	return t, nil
}

// DeleteTransactions removes the owner's transactions among ids. Unknown or
// foreign ids are ignored.
func (s *LedgerService) DeleteTransactions(ctx context.Context, owner core.OwnerID, ids []string) (storage.DeleteResult, error) {
	if err := owner.Validate(); err != nil {
		return storage.DeleteResult{}, err
	}
	result, err := s.transactions.Delete(ctx, owner, ids)
	if err != nil {
		logFailure(ctx, "Delete transactions failed", err, log.OpDelete, owner)
		return storage.DeleteResult{}, err
	}
	if len(result.Deleted) > 0 {
		sl := log.NewStructuredLogger(log.FromContext(ctx))
		accountIDs := make([]string, 0, len(result.Adjustments))
		for id, delta := range result.Adjustments {
			accountIDs = append(accountIDs, id)
			sl.LogBalanceAdjusted(ctx, string(owner), id, delta.String(), log.OpDelete)
		}
		s.invalidate(ctx, owner, notify.MutationViews(accountIDs...)...)
	}
	return result, nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, owner core.OwnerID, id string) (core.Transaction, error) {
	if err := owner.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return s.transactions.Get(ctx, owner, id)
}

// ListTransactions returns the owner's transactions matching filter, newest
// first.
func (s *LedgerService) ListTransactions(ctx context.Context, owner core.OwnerID, filter storage.TransactionFilter) ([]core.Transaction, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	key := notify.Key(owner, notify.Transactions) + filterKey(filter)
	return cache.Load(ctx, s.views, key, func(ctx context.Context) ([]core.Transaction, error) {
		return s.transactions.List(ctx, owner, filter)
	})
}

// Dashboard returns the owner's overview.
func (s *LedgerService) Dashboard(ctx context.Context, owner core.OwnerID) (Dashboard, error) {
	if err := owner.Validate(); err != nil {
		return Dashboard{}, err
	}
	return cache.Load(ctx, s.views, notify.Key(owner, notify.Dashboard), func(ctx context.Context) (Dashboard, error) {
		accounts, err := s.accounts.ListWithTransactionCount(ctx, owner)
		if err != nil {
			return Dashboard{}, fmt.Errorf("dashboard: %w", err)
		}
		txs, err := s.transactions.List(ctx, owner, storage.TransactionFilter{})
		if err != nil {
			return Dashboard{}, fmt.Errorf("dashboard: %w", err)
		}
		var expenses []core.Transaction
		for _, t := range txs {
			if t.Type == core.Expense {
				expenses = append(expenses, t)
			}
		}
		return Dashboard{
			Accounts:           accounts,
			Transactions:       txs,
			ExpensesByCategory: core.ByCategory(expenses),
		}, nil
	})
}

// CurrentBudget evaluates the owner's budget against this month's expenses
// of accountID, or of every account when accountID is empty.
func (s *LedgerService) CurrentBudget(ctx context.Context, owner core.OwnerID, accountID string) (core.BudgetStatus, error) {
	if err := owner.Validate(); err != nil {
		return core.BudgetStatus{}, err
	}
	asOf := s.now()
	key := notify.Key(owner, notify.Budget) + "?" + url.Values{
		"account": {accountID},
		"month":   {asOf.Format("2006-01")},
	}.Encode()
	return cache.Load(ctx, s.views, key, func(ctx context.Context) (core.BudgetStatus, error) {
		return s.budgets.Evaluate(ctx, owner, accountID, asOf)
	})
}

// UpdateBudget sets the owner's monthly budget. Zero is a valid budget.
func (s *LedgerService) UpdateBudget(ctx context.Context, owner core.OwnerID, amount string) (core.Budget, error) {
	if err := owner.Validate(); err != nil {
		return core.Budget{}, err
	}
	m, err := core.ParseAmount(amount)
	if err != nil {
		return core.Budget{}, err
	}
	b, err := s.budgets.Upsert(ctx, owner, m)
	if err != nil {
		return core.Budget{}, err
	}
	s.invalidate(ctx, owner, notify.Budget, notify.Dashboard)
	return b, nil
}

// ScanReceipt extracts a draft from a receipt image. Nothing is stored; the
// draft must pass the same checks as typed input.
func (s *LedgerService) ScanReceipt(ctx context.Context, owner core.OwnerID, image []byte, mimeType string) (receipt.Draft, error) {
	if err := owner.Validate(); err != nil {
		return receipt.Draft{}, err
	}
	if s.receipts == nil {
		return receipt.Draft{}, fmt.Errorf("%w: receipt scanning is not configured", core.ErrInvalidInput)
	}
	if err := receipt.CheckImage(image, mimeType); err != nil {
		return receipt.Draft{}, err
	}

	draft, err := s.receipts.Extract(ctx, image, mimeType)
	if err != nil {
		return receipt.Draft{}, err
	}
	// Validate against a placeholder account: only the extracted fields
	// matter here.
	if _, err := draft.Input("draft", core.Expense); err != nil {
		return receipt.Draft{}, err
	}
	return draft, nil
}

// CreateFromReceipt books a reviewed receipt draft on accountID through the
// regular create path.
func (s *LedgerService) CreateFromReceipt(ctx context.Context, owner core.OwnerID, draft receipt.Draft, accountID string, typ core.TransactionType) (core.Transaction, error) {
	return s.CreateTransaction(ctx, owner, draft.ToRaw(accountID, typ))
}

func filterKey(f storage.TransactionFilter) string {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("account", f.AccountID)
	set("type", string(f.Type))
	set("status", string(f.Status))
	set("category", f.Category)
	if !f.From.IsZero() {
		q.Set("from", f.From.UTC().Format(time.RFC3339Nano))
	}
	if !f.To.IsZero() {
		q.Set("to", f.To.UTC().Format(time.RFC3339Nano))
	}
	if f.IsRecurring != nil {
		q.Set("recurring", strconv.FormatBool(*f.IsRecurring))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
