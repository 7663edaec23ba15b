package log

// Field names shared by every component.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldMonth      = "month"

	FieldUserID        = "user_id"
	FieldSavingsID     = "savings_id"
	FieldTransactionID = "transaction_id"
	FieldActivityID    = "activity_id"
	FieldActionType    = "action_type"
	FieldAmount        = "amount"
	FieldFundSource    = "fund_source"
)

// Component names.
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentSavings      = "savings"
	ComponentBudget       = "budget"
	ComponentNotification = "notification"
	ComponentLedger       = "ledger"
	ComponentActivity     = "activity"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentCache        = "cache"
	ComponentSecurity     = "security"
	ComponentRateLimit    = "rate_limit"
	ComponentCLI          = "cli"
)

const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpList     = "list"
	OpDeposit  = "deposit"
	OpWithdraw = "withdraw"
	OpConsume  = "consume"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields builds attribute lists for slog.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	if requestID != "" {
		f[FieldRequestID] = requestID
	}
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	if userID != "" {
		f[FieldUserID] = userID
	}
	return f
}

// WithError records err's message; nil is ignored.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds the fields identifying one savings movement.
func (f LogFields) WithTransaction(savingsID, transactionID, amount, fundSource string) LogFields {
	f[FieldSavingsID] = savingsID
	f[FieldTransactionID] = transactionID
	f[FieldAmount] = amount
	f[FieldFundSource] = fundSource
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields into key/value pairs.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
