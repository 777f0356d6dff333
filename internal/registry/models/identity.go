package models

import (
	"time"

	"payguard/internal/ledger"
)

// FieldChannel names one per-field hash used for duplicate detection without
// re-exposing the underlying value.
type FieldChannel string

const (
	ChannelName        FieldChannel = "name"
	ChannelDateOfBirth FieldChannel = "date-of-birth"
	ChannelNationalID1 FieldChannel = "national-id-1"
	ChannelNationalID2 FieldChannel = "national-id-2"
)

// IdentifierChannels are the channels the exact-duplicate pass checks. Name
// and date of birth are too collision-prone to treat as identifiers.
var IdentifierChannels = []FieldChannel{ChannelNationalID1, ChannelNationalID2}

// StaffIdentity is the off-chain system of record for one person.
//
// IdentityHash is a pure function of the four normalized identifying fields;
// it never changes after registration. Identities are never deleted, only
// deactivated. Verified flips to true only when a ledger registration is
// confirmed on-chain.
type StaffIdentity struct {
	IdentityHash string
	FieldHashes  map[FieldChannel]string
	SealedName   string
	PayGrade     string
	Verified     bool
	Active       bool
	RegisteredAt time.Time
	Receipts     []ledger.Receipt
}

// ConfirmedReceipt reports whether any attached ledger receipt has confirmed.
func (s *StaffIdentity) ConfirmedReceipt() bool {
	for _, r := range s.Receipts {
		if r.Status == ledger.StatusSuccess {
			return true
		}
	}
	return false
}
