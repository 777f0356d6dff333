package ledger

// ReceiptStatus is the three-state outcome of a ledger submission. Callers
// must handle the pending case: a broadcast transaction is acknowledged
// before the network confirms it.
type ReceiptStatus string

const (
	StatusSuccess ReceiptStatus = "success"
	StatusFailed  ReceiptStatus = "failed"
	StatusPending ReceiptStatus = "unknown-pending"
)

// Receipt records a ledger submission attached to a staff identity or a
// payroll batch. LedgerSeq is zero until confirmation lands.
type Receipt struct {
	TxHash    string        `json:"txHash"`
	LedgerSeq uint32        `json:"ledgerSeq,omitempty"`
	Status    ReceiptStatus `json:"status"`
}

// SubmissionKind distinguishes what a pending transaction proves.
type SubmissionKind string

const (
	KindStaffRegistration SubmissionKind = "staff-registration"
	KindStaffRevocation   SubmissionKind = "staff-revocation"
	KindBatchRecord       SubmissionKind = "batch-record"
)

// Pending is a broadcast transaction awaiting confirmation. Ref is the
// identity or batch hash the submission is about.
type Pending struct {
	TxHash string
	Kind   SubmissionKind
	Ref    string
}
