// Package notify tells interested parties that an owner's read views changed
// after a ledger mutation. Delivery is fire-and-forget: a failing or slow
// sink never affects the mutation that triggered it.
package notify

import (
	"strings"

	"finance/internal/core"
)

// View names one read model of an owner.
type View string

const (
	Dashboard    View = "dashboard"
	Accounts     View = "accounts"
	Transactions View = "transactions"
	Budget       View = "budget"
)

const accountPrefix = "account/"

// Account is the detail view of one account.
func Account(id string) View {
	return View(accountPrefix + id)
}

// AccountID returns the account a detail view refers to.
func (v View) AccountID() (string, bool) {
	id, ok := strings.CutPrefix(string(v), accountPrefix)
	return id, ok && id != ""
}

// Key is the cache key of owner's view. Parameterized variants of the same
// view append "?" and their parameters to it.
func Key(owner core.OwnerID, v View) string {
	return string(owner) + "/" + string(v)
}

// MutationViews lists the views a change to transactions or balances of the
// given accounts makes stale.
func MutationViews(accountIDs ...string) []View {
	views := []View{Dashboard, Accounts, Transactions, Budget}
	seen := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		views = append(views, Account(id))
	}
	return views
}

func viewNames(views []View) []string {
	names := make([]string, len(views))
	for i, v := range views {
		names[i] = string(v)
	}
	return names
}

func parseViews(names []string) []View {
	views := make([]View, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			views = append(views, View(n))
		}
	}
	return views
}
