package log

import "fintrack/internal/core"

// Attribute keys shared by every log line.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"
	FieldCount      = "count"
	FieldBatch      = "batch"
	FieldBatchSize  = "batch_size"
)

// Transaction attributes.
const (
	FieldOwner         = "owner_id"
	FieldMonth         = "month"
	FieldTransactionID = "transaction_id"
	FieldAmount        = "amount"
	FieldCategory      = "category"
	FieldSubcategory   = "subcategory"
	FieldTxType        = "type"
	FieldStatus        = "status"
)

const (
	ComponentApp            = "app"
	ComponentHTTP           = "http"
	ComponentTransactions   = "transactions"
	ComponentClassification = "classification"
	ComponentStorage        = "storage"
	ComponentAMQP           = "amqp"
	ComponentWorker         = "worker"
	ComponentSheets         = "sheets"
	ComponentCache          = "cache"
	ComponentSecurity       = "security"
	ComponentRateLimit      = "rate_limit"
	ComponentTrace          = "trace"
	ComponentBackend        = "backend"
)

const (
	OpCreate   = "create"
	OpClassify = "classify"
	OpImport   = "import"
	OpExport   = "export"
	OpBudgets  = "replace_budgets"
)

// Error categories for FieldErrorType, used to group alerts.
const (
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeMalformed     = "malformed_response"
)

// LogFields collects attributes for one log call. Pass them with ToSlice.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOwner(ownerID string) LogFields {
	f[FieldOwner] = ownerID
	return f
}

// WithError records err and its category; a nil err adds nothing.
func (f LogFields) WithError(err error, errorType string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = errorType
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds the identifying and classification fields of tx.
// Descriptions are left out; they may contain personal data.
func (f LogFields) WithTransaction(tx core.Transaction) LogFields {
	f[FieldTransactionID] = tx.ID
	f[FieldOwner] = tx.OwnerID
	f[FieldAmount] = tx.Amount.String()
	f[FieldCategory] = tx.Category
	f[FieldSubcategory] = tx.Subcategory
	f[FieldTxType] = string(tx.Type)
	f[FieldStatus] = string(tx.Status)
	return f
}

func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
