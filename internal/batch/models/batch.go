package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payguard/internal/ledger"
)

// RecordStatus tracks one payroll row through screening. Status only ever
// upgrades toward flagged; a flagged record is never silently downgraded.
type RecordStatus string

const (
	RecordPending  RecordStatus = "pending"
	RecordVerified RecordStatus = "verified"
	RecordFlagged  RecordStatus = "flagged"
	RecordRejected RecordStatus = "rejected"
)

// BatchStatus is the batch lifecycle. "failed" means not yet chain-proven,
// not invalid: a failed batch stays fully queryable.
type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchVerified   BatchStatus = "verified"
	BatchFailed     BatchStatus = "failed"
)

// PayrollRecord is one row of a batch after ingestion validation.
type PayrollRecord struct {
	IdentityHash string
	Amount       decimal.Decimal
	Status       RecordStatus
	FlagIDs      []uuid.UUID
}

// Flagged reports whether any detector finding is attached.
func (r *PayrollRecord) Flagged() bool {
	return len(r.FlagIDs) > 0
}

// PayrollBatch is one payroll submission cycle. BatchHash is the digest over
// the raw submitted content and enforces uniqueness: byte-identical
// re-submissions are rejected, never re-processed.
type PayrollBatch struct {
	BatchHash    string
	Records      []PayrollRecord
	TotalAmount  decimal.Decimal
	RecordCount  int
	FlaggedCount int
	Status       BatchStatus
	Receipt      *ledger.Receipt
	CreatedAt    time.Time
}
