package audit

import "time"

// Actions captured on the append-only trail.
const (
	ActionStaffRegistered  = "staff.registered"
	ActionStaffDeactivated = "staff.deactivated"
	ActionBatchProcessed   = "batch.processed"
	ActionBatchRejected    = "batch.rejected"
	ActionFlagRaised       = "flag.raised"
	ActionFlagReviewed     = "flag.reviewed"
	ActionLedgerConfirmed  = "ledger.confirmed"
	ActionLedgerFailed     = "ledger.failed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. Subject is the identity
// or batch hash the action is about; raw PII never appears here.
type Event struct {
	Timestamp time.Time
	Actor     string
	Subject   string
	Action    string
	Reason    string
	Metadata  map[string]string
}
