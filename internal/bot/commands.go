package bot

// Operator console commands.
const (
	CommandStart   = "/start"
	CommandPending = "/pending"
	CommandCancel  = "/cancel"
)
