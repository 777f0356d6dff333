package detector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xrash/smetrics"
	"go.uber.org/zap"

	"payguard/internal/detector/explain"
	"payguard/internal/detector/models"
	"payguard/internal/identity/hasher"
)

// fuzzyDuplicatePass compares display names pairwise across the batch using
// Jaro-Winkler similarity over token-sorted normalized names, so "Doe Jane"
// and "Jane Doe" compare as equals. Pairs strictly above the threshold and
// strictly below 1.0 are flagged on the first member; identical names are
// exact duplicates and out of this pass's scope.
//
// The comparison is O(n^2) in distinct batch identities. Acceptable at
// current batch sizes; blocking by phonetic key would be needed beyond the
// low thousands.
func (e *Engine) fuzzyDuplicatePass(ctx context.Context, snap *snapshot) ([]models.Flag, error) {
	type namedEntry struct {
		identityHash string
		name         string
	}
	var entries []namedEntry
	for _, identityHash := range snap.order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, known := snap.entries[identityHash]
		if !known || entry.SealedName == "" {
			continue
		}
		name, err := e.names.OpenName(entry.SealedName)
		if err != nil {
			// A single undecryptable name is skipped, not fatal.
			e.log.Warn("name recovery failed, record skipped from fuzzy pass",
				zap.String("identity_hash", identityHash[:12]),
				zap.Error(err))
			continue
		}
		entries = append(entries, namedEntry{identityHash: identityHash, name: normalizeName(name)})
	}

	var flags []models.Flag
	for i := 0; i < len(entries); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < len(entries); j++ {
			similarity := smetrics.JaroWinkler(entries[i].name, entries[j].name, 0.7, 4)
			if similarity <= FuzzyThreshold || similarity >= 1.0 {
				continue
			}
			flags = append(flags, newFlag(snap.batchID, entries[i].identityHash, models.TypeDuplicate, similarity,
				explain.FuzzyDuplicate(entries[j].identityHash, similarity),
				map[string]string{
					"counterpart":      entries[j].identityHash,
					"name":             entries[i].name,
					"counterpart_name": entries[j].name,
					"similarity":       fmt.Sprintf("%.4f", similarity),
				}))
		}
	}
	return flags, nil
}

// normalizeName case-folds, collapses whitespace, and sorts tokens so word
// order never affects similarity.
func normalizeName(name string) string {
	tokens := strings.Fields(hasher.Normalize(name))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
