package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldSessionID  = "session_id"
	FieldCategoryID = "category_id"
	FieldAccountID  = "account_id"
	FieldHourlyRate = "hourly_rate"
	FieldTotalMs    = "total_ms"
	FieldAmount     = "total_amount"
	FieldPolicy     = "policy"
	FieldBackend    = "backend"
	FieldRunID      = "run_id"
	FieldDuration   = "duration_ms"
	FieldCount      = "count"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentSession  = "session"
	ComponentStats    = "stats"
	ComponentTransfer = "transfer"
	ComponentSync     = "sync"
	ComponentStore    = "store"
	ComponentAMQP     = "amqp"
	ComponentCLI      = "cli"
)

// Operations defines standard operation names
const (
	OpStart     = "start"
	OpPause     = "pause"
	OpResume    = "resume"
	OpStop      = "stop"
	OpStatus    = "status"
	OpImport    = "import"
	OpExport    = "export"
	OpPush      = "push"
	OpPull      = "pull"
	OpConfigure = "configure"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
