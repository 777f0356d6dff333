package sentinel

import "errors"

// Sentinel errors for infrastructure and ledger facts. Stores, the ledger
// client, and other infrastructure layers return these (optionally wrapped)
// so services can translate them into domain outcomes.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: entity with the same content already exists off-chain
// - ErrAlreadyRegistered: identity hash already present on-chain
// - ErrAlreadyRecorded: batch hash already present on-chain
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: service or resource temporarily unavailable
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrAlreadyRecorded   = errors.New("already recorded")
	ErrInvalidState      = errors.New("invalid state")
	ErrUnavailable       = errors.New("unavailable")
)
