package log

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey string

const loggerContextKey contextKey = "logger"

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// WithOperation tags logger with a fresh operation id and returns a context
// carrying it, so every record of one command or job can be correlated.
func WithOperation(ctx context.Context, logger *Logger) (context.Context, string) {
	id := uuid.NewString()
	return WithLogger(ctx, logger.With(FieldOperationID, id)), id
}

// FromContext extracts a logger from the context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return logger
	}
	// Return default logger if not found
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides ledger-specific logging helpers
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogTransactionCreated logs a successfully booked transaction
func (sl *StructuredLogger) LogTransactionCreated(ctx context.Context, owner, id, accountID, txType, amount, category string) {
	fields := NewFields().
		WithOwner(owner).
		WithTransaction(id, accountID, txType, amount, category).
		WithOperation(OpCreate).
		WithComponent(ComponentLedger)

	sl.logger.InfoContext(ctx, "Transaction created", fields.ToSlice()...)
}

// LogBalanceAdjusted logs a balance delta applied to an account
func (sl *StructuredLogger) LogBalanceAdjusted(ctx context.Context, owner, accountID, delta, op string) {
	fields := NewFields().
		WithOwner(owner).
		WithDelta(accountID, delta).
		WithOperation(op).
		WithComponent(ComponentLedger)

	sl.logger.InfoContext(ctx, "Balance adjusted", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
