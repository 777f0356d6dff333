package models

import (
	"time"

	"github.com/google/uuid"
)

// FlagType classifies a detector finding.
type FlagType string

const (
	TypeGhost           FlagType = "ghost"
	TypeMissingRegistry FlagType = "missing-registry"
	TypeDuplicate       FlagType = "duplicate"
	TypeSalaryAnomaly   FlagType = "salary-anomaly"
)

// Resolution is the outcome of human review.
type Resolution string

const (
	ResolutionPending       Resolution = "pending"
	ResolutionConfirmed     Resolution = "confirmed"
	ResolutionFalsePositive Resolution = "false_positive"
)

// Review is mutated only by the external audit workflow, never by the
// detector engine.
type Review struct {
	Reviewed   bool
	Resolution Resolution
	Reviewer   string
	ReviewedAt *time.Time
	Notes      string
}

// Flag is one detector finding requiring human review. Flags are append-only:
// review fields mutate, the finding itself never does, and flags are never
// deleted.
type Flag struct {
	ID           uuid.UUID
	BatchID      string
	IdentityHash string
	Type         FlagType
	Score        float64
	Reason       string
	Metadata     map[string]string
	Review       Review
	CreatedAt    time.Time
}
