package ledger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StatusStore receives reconciliation outcomes. Implementations update the
// off-chain verification state; they never roll anything back, since off-chain
// state is the source of truth and chain status is an advisory proof layer.
type StatusStore interface {
	ReceiptConfirmed(ctx context.Context, p Pending, ledgerSeq uint32) error
	ReceiptFailed(ctx context.Context, p Pending) error
}

// Reconciler polls broadcast transactions until they confirm, fail, or the
// attempt budget runs out. Each tracked transaction is watched independently
// with a fixed inter-attempt delay; the whole reconciler is cancellable via
// the context handed to Run.
type Reconciler struct {
	rpc      RPC
	store    StatusStore
	log      *zap.Logger
	inbox    chan Pending
	attempts int
	delay    time.Duration
	wg       sync.WaitGroup
}

// NewReconciler builds a reconciler with a bounded attempt budget.
func NewReconciler(rpc RPC, store StatusStore, log *zap.Logger, attempts int, delay time.Duration) *Reconciler {
	if attempts < 1 {
		attempts = 1
	}
	if delay <= 0 {
		delay = 3 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		rpc:      rpc,
		store:    store,
		log:      log,
		inbox:    make(chan Pending, 64),
		attempts: attempts,
		delay:    delay,
	}
}

// Track enqueues a broadcast transaction for confirmation polling. It never
// blocks the submission path: if the inbox is full the transaction is left
// unknown-pending and logged for operator follow-up.
func (r *Reconciler) Track(p Pending) {
	select {
	case r.inbox <- p:
	default:
		r.log.Warn("reconciler inbox full, abandoning confirmation poll",
			zap.String("tx_hash", p.TxHash),
			zap.String("kind", string(p.Kind)))
	}
}

// Run consumes tracked transactions until the context is cancelled, then
// waits for in-flight watchers to stop. Abandoning a watcher mid-poll leaves
// the receipt unknown-pending, which is safe: chain status is advisory.
func (r *Reconciler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return ctx.Err()
		case p := <-r.inbox:
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.watch(ctx, p)
			}()
		}
	}
}

func (r *Reconciler) watch(ctx context.Context, p Pending) {
	for attempt := 1; attempt <= r.attempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.delay):
		}

		result, err := r.rpc.GetTransaction(ctx, p.TxHash)
		if err != nil {
			r.log.Warn("confirmation poll failed",
				zap.String("tx_hash", p.TxHash),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		switch result.Status {
		case TxStatusSuccess:
			if err := r.store.ReceiptConfirmed(ctx, p, result.LedgerSeq); err != nil {
				r.log.Error("recording confirmation failed",
					zap.String("tx_hash", p.TxHash),
					zap.Error(err))
			}
			return
		case TxStatusFailed:
			// Off-chain state already reflects the optimistic submission;
			// log for operator attention rather than rolling back.
			r.log.Error("ledger transaction failed",
				zap.String("tx_hash", p.TxHash),
				zap.String("kind", string(p.Kind)),
				zap.String("ref", abbrev(p.Ref)))
			if err := r.store.ReceiptFailed(ctx, p); err != nil {
				r.log.Error("recording failure failed",
					zap.String("tx_hash", p.TxHash),
					zap.Error(err))
			}
			return
		default:
			// NOT_FOUND / PENDING: keep polling within the budget.
		}
	}
	r.log.Warn("confirmation attempts exhausted, transaction left unknown-pending",
		zap.String("tx_hash", p.TxHash),
		zap.String("kind", string(p.Kind)))
}
