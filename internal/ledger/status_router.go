package ledger

import (
	"context"
	"fmt"
)

// StatusRouter dispatches reconciliation outcomes to the owning domain by
// submission kind: staff kinds to the registry, batch kinds to the batch
// pipeline.
type StatusRouter struct {
	Staff StatusStore
	Batch StatusStore
}

var _ StatusStore = (*StatusRouter)(nil)

func (r *StatusRouter) ReceiptConfirmed(ctx context.Context, p Pending, ledgerSeq uint32) error {
	store, err := r.pick(p)
	if err != nil {
		return err
	}
	return store.ReceiptConfirmed(ctx, p, ledgerSeq)
}

func (r *StatusRouter) ReceiptFailed(ctx context.Context, p Pending) error {
	store, err := r.pick(p)
	if err != nil {
		return err
	}
	return store.ReceiptFailed(ctx, p)
}

func (r *StatusRouter) pick(p Pending) (StatusStore, error) {
	switch p.Kind {
	case KindStaffRegistration, KindStaffRevocation:
		if r.Staff == nil {
			return nil, fmt.Errorf("no status store for kind %s", p.Kind)
		}
		return r.Staff, nil
	case KindBatchRecord:
		if r.Batch == nil {
			return nil, fmt.Errorf("no status store for kind %s", p.Kind)
		}
		return r.Batch, nil
	default:
		return nil, fmt.Errorf("unknown submission kind %s", p.Kind)
	}
}
