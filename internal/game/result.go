package game

// Stable error codes shared by the runtime and the wire layer. Clients match
// on these strings, so they never change.
const (
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInvalidAPIKey     = "INVALID_API_KEY"
	CodeInvalidSession    = "INVALID_SESSION"
	CodeSessionExpired    = "SESSION_EXPIRED"
	CodeOutdatedClient    = "OUTDATED_CLIENT"
	CodeValidationError   = "VALIDATION_ERROR"
	CodeTableNotFound     = "TABLE_NOT_FOUND"
	CodeTableEnded        = "TABLE_ENDED"
	CodeTableFull         = "TABLE_FULL"
	CodeInvalidTableState = "INVALID_TABLE_STATE"
	CodeAlreadySeated     = "ALREADY_SEATED"
	CodeNotSeated         = "NOT_SEATED"
	CodeNotYourTurn       = "NOT_YOUR_TURN"
	CodeInvalidAction     = "INVALID_ACTION"
	CodeStaleSeq          = "STALE_SEQ"
	CodeInternalError     = "INTERNAL_ERROR"
)

// ActionKind is a betting action requested by a player.
type ActionKind string

const (
	ActionFold    ActionKind = "fold"
	ActionCheck   ActionKind = "check"
	ActionCall    ActionKind = "call"
	ActionRaiseTo ActionKind = "raiseTo"
)

// ActionRequest is a player's action submission. TurnToken scopes the request
// to the exact turn it was issued for and provides end-to-end idempotency.
type ActionRequest struct {
	TurnToken string
	Kind      ActionKind
	Amount    int
}

// Result is the structured outcome of a runtime operation. Validation
// failures are results, not errors: the runtime never panics on client input.
type Result struct {
	OK        bool
	Duplicate bool
	Code      string
	Message   string
	// Seq is the table version after the operation (or the originally
	// recorded version for a duplicate turn token).
	Seq uint64
	// Events emitted by the operation, in order, each carrying its own seq.
	Events []Event
	// HandComplete is set when the operation finished the hand.
	HandComplete bool
}

func okResult(seq uint64, events []Event) Result {
	return Result{OK: true, Seq: seq, Events: events}
}

func errResult(code, message string) Result {
	return Result{OK: false, Code: code, Message: message}
}
