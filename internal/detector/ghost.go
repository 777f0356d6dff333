package detector

import (
	"context"

	"payguard/internal/detector/explain"
	"payguard/internal/detector/models"
)

// ghostPass screens every identity in the batch against the registry.
// No entry at all is maximal-confidence fraud (the identity provably does
// not exist in the system of record). An entry without a confirmed ledger
// proof scores slightly lower: existence is asserted, chain proof pending.
func (e *Engine) ghostPass(ctx context.Context, snap *snapshot) ([]models.Flag, error) {
	var flags []models.Flag
	for _, identityHash := range snap.order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, known := snap.entries[identityHash]
		switch {
		case !known:
			flags = append(flags, newFlag(snap.batchID, identityHash, models.TypeGhost, 1.0,
				explain.Ghost(identityHash), map[string]string{"registry": "absent"}))
		case !entry.Active:
			// Deactivated identities are treated like unknown ones: a revoked
			// worker on a payroll is as suspect as a fabricated one.
			flags = append(flags, newFlag(snap.batchID, identityHash, models.TypeGhost, 1.0,
				explain.Ghost(identityHash), map[string]string{"registry": "deactivated"}))
		case !entry.Verified:
			flags = append(flags, newFlag(snap.batchID, identityHash, models.TypeMissingRegistry, 0.9,
				explain.MissingRegistry(identityHash), map[string]string{"registry": "unconfirmed"}))
		}
	}
	return flags, nil
}
