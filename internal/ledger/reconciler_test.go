package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingStatusStore struct {
	mu        sync.Mutex
	confirmed []Pending
	failed    []Pending
	done      chan struct{}
}

func newRecordingStatusStore() *recordingStatusStore {
	return &recordingStatusStore{done: make(chan struct{}, 8)}
}

func (s *recordingStatusStore) ReceiptConfirmed(_ context.Context, p Pending, _ uint32) error {
	s.mu.Lock()
	s.confirmed = append(s.confirmed, p)
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func (s *recordingStatusStore) ReceiptFailed(_ context.Context, p Pending) error {
	s.mu.Lock()
	s.failed = append(s.failed, p)
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func (s *recordingStatusStore) await(t *testing.T) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reconciliation outcome")
	}
}

type scriptedRPC struct {
	mu      sync.Mutex
	results map[string][]TxResult // consumed front-to-back per tx hash
}

func (r *scriptedRPC) Simulate(context.Context, *Transaction) (SimulateResult, error) {
	return SimulateResult{}, nil
}

func (r *scriptedRPC) Send(context.Context, *Transaction) (SendResult, error) {
	return SendResult{}, nil
}

func (r *scriptedRPC) GetTransaction(_ context.Context, txHash string) (TxResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	queue := r.results[txHash]
	if len(queue) == 0 {
		return TxResult{Status: TxStatusNotFound}, nil
	}
	result := queue[0]
	r.results[txHash] = queue[1:]
	return result, nil
}

func startReconciler(t *testing.T, rpc RPC, store StatusStore, attempts int) (*Reconciler, context.CancelFunc) {
	t.Helper()
	reconciler := NewReconciler(rpc, store, zap.NewNop(), attempts, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = reconciler.Run(ctx) }()
	return reconciler, cancel
}

func TestReconcilerConfirms(t *testing.T) {
	rpc := &scriptedRPC{results: map[string][]TxResult{
		"tx-1": {
			{Status: TxStatusPending},
			{Status: TxStatusSuccess, LedgerSeq: 99},
		},
	}}
	store := newRecordingStatusStore()
	reconciler, cancel := startReconciler(t, rpc, store, 10)
	defer cancel()

	reconciler.Track(Pending{TxHash: "tx-1", Kind: KindStaffRegistration, Ref: "hash-1"})
	store.await(t)

	require.Len(t, store.confirmed, 1)
	assert.Equal(t, "tx-1", store.confirmed[0].TxHash)
	assert.Empty(t, store.failed)
}

func TestReconcilerReportsFailure(t *testing.T) {
	rpc := &scriptedRPC{results: map[string][]TxResult{
		"tx-2": {{Status: TxStatusFailed}},
	}}
	store := newRecordingStatusStore()
	reconciler, cancel := startReconciler(t, rpc, store, 10)
	defer cancel()

	reconciler.Track(Pending{TxHash: "tx-2", Kind: KindBatchRecord, Ref: "batch-1"})
	store.await(t)

	require.Len(t, store.failed, 1)
	assert.Equal(t, KindBatchRecord, store.failed[0].Kind)
	assert.Empty(t, store.confirmed)
}

func TestReconcilerExhaustsAttempts(t *testing.T) {
	// Never-found transaction: the watcher gives up after its budget and the
	// receipt stays unknown-pending on the store side.
	rpc := &scriptedRPC{results: map[string][]TxResult{}}
	store := newRecordingStatusStore()
	reconciler, cancel := startReconciler(t, rpc, store, 3)
	defer cancel()

	reconciler.Track(Pending{TxHash: "tx-3", Kind: KindStaffRevocation, Ref: "hash-3"})

	time.Sleep(50 * time.Millisecond)
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.confirmed)
	assert.Empty(t, store.failed)
}

func TestReconcilerStopsOnCancel(t *testing.T) {
	rpc := &scriptedRPC{results: map[string][]TxResult{}}
	store := newRecordingStatusStore()
	reconciler := NewReconciler(rpc, store, zap.NewNop(), 1000, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- reconciler.Run(ctx) }()

	reconciler.Track(Pending{TxHash: "tx-4", Kind: KindStaffRegistration, Ref: "hash-4"})
	cancel()

	select {
	case err := <-stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop on cancellation")
	}
}
