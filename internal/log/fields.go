package log

import (
	"maps"
	"slices"
)

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldOwnerID       = "owner_id"
	FieldAccountID     = "account_id"
	FieldTransactionID = "transaction_id"
	FieldType          = "type"
	FieldAmount        = "amount"
	FieldDelta         = "delta"
	FieldBalance       = "balance"
	FieldCategory      = "category"
	FieldCount         = "count"
	FieldDuration      = "duration_ms"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldView          = "view"
	FieldUnits         = "units"
	FieldOperationID   = "operation_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentCLI       = "cli"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentAudit     = "audit"
	ComponentNotify    = "notify"
	ComponentCache     = "cache"
	ComponentAdmission = "admission"
	ComponentReceipt   = "receipt"
	ComponentExport    = "export"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpRead       = "read"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpList       = "list"
	OpSetDefault = "set_default"
	OpReconcile  = "reconcile"
	OpVerify     = "verify"
	OpEvaluate   = "evaluate"
	OpExtract    = "extract"
	OpExport     = "export"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithOwner adds the owner field
func (f LogFields) WithOwner(owner string) LogFields {
	f[FieldOwnerID] = owner
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds transaction-related fields. Amounts are logged in
// their canonical decimal form.
func (f LogFields) WithTransaction(id, accountID, txType, amount, category string) LogFields {
	f[FieldTransactionID] = id
	f[FieldAccountID] = accountID
	f[FieldType] = txType
	f[FieldAmount] = amount
	f[FieldCategory] = category
	return f
}

// WithDelta adds a balance adjustment for an account
func (f LogFields) WithDelta(accountID, delta string) LogFields {
	f[FieldAccountID] = accountID
	f[FieldDelta] = delta
	return f
}

// fieldOrder is the order ToSlice emits the common fields in.
var fieldOrder = []string{
	FieldComponent,
	FieldOperation,
	FieldOwnerID,
	FieldAccountID,
	FieldTransactionID,
	FieldType,
	FieldAmount,
	FieldDelta,
	FieldBalance,
	FieldCategory,
	FieldCount,
	FieldDuration,
	FieldSuccess,
	FieldError,
}

// ToSlice converts LogFields to a slice for slog. Common fields come first
// in a fixed order, any others follow sorted by key.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	known := make(map[string]bool, len(fieldOrder))
	for _, k := range fieldOrder {
		known[k] = true
		if v, ok := f[k]; ok {
			slice = append(slice, k, v)
		}
	}
	for _, k := range slices.Sorted(maps.Keys(f)) {
		if !known[k] {
			slice = append(slice, k, f[k])
		}
	}
	return slice
}
