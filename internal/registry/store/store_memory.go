package store

import (
	"context"
	"fmt"
	"sync"

	"payguard/internal/ledger"
	"payguard/internal/registry/models"
	"payguard/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this pattern:
// - Return ErrNotFound when the requested identity does not exist
// - Return ErrConflict when saving an identity hash that already exists
// - Return wrapped errors with context for infrastructure failures

// InMemoryStore keeps staff identities in process memory for tests and dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	byHash  map[string]*models.StaffIdentity
	byField map[models.FieldChannel]map[string][]string
}

// NewMemory constructs an empty in-memory staff store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		byHash:  make(map[string]*models.StaffIdentity),
		byField: make(map[models.FieldChannel]map[string][]string),
	}
}

func (s *InMemoryStore) Save(_ context.Context, identity *models.StaffIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byHash[identity.IdentityHash]; exists {
		return fmt.Errorf("staff identity exists: %w", sentinel.ErrConflict)
	}
	cp := cloneIdentity(identity)
	s.byHash[identity.IdentityHash] = cp
	for channel, fieldHash := range cp.FieldHashes {
		if s.byField[channel] == nil {
			s.byField[channel] = make(map[string][]string)
		}
		s.byField[channel][fieldHash] = append(s.byField[channel][fieldHash], cp.IdentityHash)
	}
	return nil
}

func (s *InMemoryStore) FindByIdentityHash(_ context.Context, hash string) (*models.StaffIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("staff identity %s: %w", hash, sentinel.ErrNotFound)
	}
	return cloneIdentity(identity), nil
}

// FindManyByIdentityHash resolves a batch of hashes in one call. Unknown
// hashes are simply absent from the result, not errors.
func (s *InMemoryStore) FindManyByIdentityHash(_ context.Context, hashes []string) ([]*models.StaffIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.StaffIdentity, 0, len(hashes))
	for _, h := range hashes {
		if identity, ok := s.byHash[h]; ok {
			out = append(out, cloneIdentity(identity))
		}
	}
	return out, nil
}

func (s *InMemoryStore) FindByFieldHash(_ context.Context, channel models.FieldChannel, fieldHash string) ([]*models.StaffIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.StaffIdentity
	for _, identityHash := range s.byField[channel][fieldHash] {
		if identity, ok := s.byHash[identityHash]; ok {
			out = append(out, cloneIdentity(identity))
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkVerified(_ context.Context, identityHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byHash[identityHash]
	if !ok {
		return fmt.Errorf("staff identity %s: %w", identityHash, sentinel.ErrNotFound)
	}
	identity.Verified = true
	return nil
}

func (s *InMemoryStore) Deactivate(_ context.Context, identityHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byHash[identityHash]
	if !ok {
		return fmt.Errorf("staff identity %s: %w", identityHash, sentinel.ErrNotFound)
	}
	identity.Active = false
	return nil
}

func (s *InMemoryStore) AttachReceipt(_ context.Context, identityHash string, receipt ledger.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byHash[identityHash]
	if !ok {
		return fmt.Errorf("staff identity %s: %w", identityHash, sentinel.ErrNotFound)
	}
	for i, existing := range identity.Receipts {
		if existing.TxHash == receipt.TxHash {
			identity.Receipts[i] = receipt
			return nil
		}
	}
	identity.Receipts = append(identity.Receipts, receipt)
	return nil
}

func cloneIdentity(in *models.StaffIdentity) *models.StaffIdentity {
	cp := *in
	cp.FieldHashes = make(map[models.FieldChannel]string, len(in.FieldHashes))
	for k, v := range in.FieldHashes {
		cp.FieldHashes[k] = v
	}
	cp.Receipts = append([]ledger.Receipt(nil), in.Receipts...)
	return &cp
}
