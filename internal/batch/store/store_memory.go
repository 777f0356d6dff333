package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"payguard/internal/batch/models"
	"payguard/pkg/platform/sentinel"
)

// InMemoryStore keeps batches in a map keyed by batch hash. Suited to tests
// and single-node deployments without Postgres.
type InMemoryStore struct {
	mu      sync.RWMutex
	batches map[string]*models.PayrollBatch
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{batches: make(map[string]*models.PayrollBatch)}
}

func (s *InMemoryStore) Save(ctx context.Context, batch *models.PayrollBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.BatchHash]; ok {
		return sentinel.ErrConflict
	}
	s.batches[batch.BatchHash] = cloneBatch(batch)
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, batch *models.PayrollBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.BatchHash]; !ok {
		return sentinel.ErrNotFound
	}
	s.batches[batch.BatchHash] = cloneBatch(batch)
	return nil
}

func (s *InMemoryStore) FindByHash(ctx context.Context, batchHash string) (*models.PayrollBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[batchHash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneBatch(batch), nil
}

func cloneBatch(b *models.PayrollBatch) *models.PayrollBatch {
	cp := *b
	cp.Records = make([]models.PayrollRecord, len(b.Records))
	copy(cp.Records, b.Records)
	for i := range cp.Records {
		src := b.Records[i]
		if src.FlagIDs != nil {
			cp.Records[i].FlagIDs = append([]uuid.UUID(nil), src.FlagIDs...)
		}
	}
	if b.Receipt != nil {
		r := *b.Receipt
		cp.Receipt = &r
	}
	return &cp
}
