package detector

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"payguard/internal/detector/explain"
	"payguard/internal/detector/models"
	regmodels "payguard/internal/registry/models"
)

// exactDuplicatePass looks for registry entries sharing a per-field hash on
// any identifier channel. Every member of a collision cluster is flagged with
// its siblings listed; an identity flagged via one channel is not flagged
// again when a second channel finds the same duplicate set.
func (e *Engine) exactDuplicatePass(ctx context.Context, snap *snapshot) ([]models.Flag, error) {
	var flags []models.Flag
	flagged := make(map[string]bool)

	for _, channel := range regmodels.IdentifierChannels {
		for _, identityHash := range snap.order {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			entry, known := snap.entries[identityHash]
			if !known || flagged[identityHash] {
				continue
			}
			fieldHash, ok := entry.FieldHashes[channel]
			if !ok || fieldHash == "" {
				continue
			}
			cluster, err := e.registry.FindByFieldHash(ctx, channel, fieldHash)
			if err != nil {
				// One failed lookup never aborts the batch; record and move on.
				e.log.Warn("field hash lookup failed, record skipped",
					zap.String("channel", string(channel)),
					zap.Error(err))
				continue
			}
			siblings := siblingHashes(cluster, identityHash)
			if len(siblings) == 0 {
				continue
			}
			flagged[identityHash] = true
			flags = append(flags, newFlag(snap.batchID, identityHash, models.TypeDuplicate, 1.0,
				explain.ExactDuplicate(string(channel), len(siblings)),
				map[string]string{
					"channel":  string(channel),
					"siblings": strings.Join(siblings, ","),
				}))
		}
	}
	return flags, nil
}

func siblingHashes(cluster []*regmodels.StaffIdentity, self string) []string {
	var out []string
	for _, identity := range cluster {
		if identity.IdentityHash != self {
			out = append(out, identity.IdentityHash)
		}
	}
	sort.Strings(out)
	return out
}
