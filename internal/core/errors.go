package core

import "errors"

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidInterval = errors.New("invalid recurring interval")
	ErrInvalidInput    = errors.New("invalid input")
	ErrRateLimited     = errors.New("too many requests, please try again later")
	ErrBlocked         = errors.New("request blocked")
	ErrTransient       = errors.New("storage busy, retry")
	ErrInconsistent    = errors.New("balance does not match transactions")
)

// Kind classifies an error into the ledger's error taxonomy.
type Kind string

const (
	KindNone         Kind = ""
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindInvalidInput Kind = "invalid_input"
	KindRateLimited  Kind = "rate_limited"
	KindBlocked      Kind = "blocked"
	KindTransient    Kind = "transient"
	KindInconsistent Kind = "inconsistent"
	KindInternal     Kind = "internal"
)

// KindOf walks the wrap chain of err and reports its category.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidInterval),
		errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrBlocked):
		return KindBlocked
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrInconsistent):
		return KindInconsistent
	default:
		return KindInternal
	}
}

// Retryable reports whether the operation may succeed if attempted again.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
