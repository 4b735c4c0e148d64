package log

// Common field names for structured logging.
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldBudgetID    = "budget_id"
	FieldEntryID     = "entry_id"
	FieldUserID      = "user_id"
	FieldAmountCents = "amount_cents"
	FieldRunID       = "run_id"
)

// Components defines standard component names.
const (
	ComponentApp       = "app"
	ComponentCLI       = "cli"
	ComponentWorker    = "worker"
	ComponentStorage   = "storage"
	ComponentProcessor = "processor"
	ComponentNotify    = "notify"
)
