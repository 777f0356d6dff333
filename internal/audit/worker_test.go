package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWorkerDrainsInbox(t *testing.T) {
	store := NewMemoryStore()
	inbox := make(chan Event, 8)
	worker := NewWorker(store, inbox)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- worker.Run(ctx) }()

	emitter := NewAsync(inbox, zap.NewNop())
	require.NoError(t, emitter.Emit(ctx, Event{Subject: "hash-1", Action: ActionStaffRegistered}))
	require.NoError(t, emitter.Emit(ctx, Event{Subject: "hash-1", Action: ActionLedgerConfirmed}))

	require.Eventually(t, func() bool {
		events, err := store.ListBySubject(ctx, "hash-1")
		return err == nil && len(events) == 2
	}, 2*time.Second, 5*time.Millisecond)

	events, err := store.ListBySubject(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, ActionStaffRegistered, events[0].Action)
	assert.False(t, events[0].Timestamp.IsZero())

	cancel()
	select {
	case err := <-stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancellation")
	}
}

func TestAsyncDropsWhenInboxFull(t *testing.T) {
	inbox := make(chan Event, 1)
	emitter := NewAsync(inbox, zap.NewNop())

	require.NoError(t, emitter.Emit(context.Background(), Event{Subject: "a", Action: ActionFlagRaised}))
	// Second emit finds the inbox full and drops rather than blocking.
	require.NoError(t, emitter.Emit(context.Background(), Event{Subject: "b", Action: ActionFlagRaised}))
	assert.Len(t, inbox, 1)
}
