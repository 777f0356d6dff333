package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"payguard/internal/detector/models"
	"payguard/pkg/platform/sentinel"
)

// InMemoryFlagStore keeps flags in memory for tests and dev. Flags are
// append-only; only the review sub-record ever mutates.
type InMemoryFlagStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.Flag
	byBatch map[string][]uuid.UUID
}

// NewMemory constructs an empty in-memory flag store.
func NewMemory() *InMemoryFlagStore {
	return &InMemoryFlagStore{
		byID:    make(map[uuid.UUID]*models.Flag),
		byBatch: make(map[string][]uuid.UUID),
	}
}

// SaveAll commits a batch run's complete flag set in one call, preserving the
// all-or-nothing contract of the detector engine.
func (s *InMemoryFlagStore) SaveAll(_ context.Context, flags []models.Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range flags {
		f := flags[i]
		s.byID[f.ID] = &f
		s.byBatch[f.BatchID] = append(s.byBatch[f.BatchID], f.ID)
	}
	return nil
}

func (s *InMemoryFlagStore) FindByID(_ context.Context, id uuid.UUID) (*models.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("flag %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *f
	return &cp, nil
}

func (s *InMemoryFlagStore) ListByBatch(_ context.Context, batchID string) ([]models.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byBatch[batchID]
	out := make([]models.Flag, 0, len(ids))
	for _, id := range ids {
		if f, ok := s.byID[id]; ok {
			out = append(out, *f)
		}
	}
	return out, nil
}

// Review records the outcome of human review on an existing flag.
func (s *InMemoryFlagStore) Review(_ context.Context, id uuid.UUID, review models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("flag %s: %w", id, sentinel.ErrNotFound)
	}
	if review.ReviewedAt == nil {
		now := time.Now().UTC()
		review.ReviewedAt = &now
	}
	review.Reviewed = true
	f.Review = review
	return nil
}
