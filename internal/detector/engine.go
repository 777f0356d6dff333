package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	batchmodels "payguard/internal/batch/models"
	"payguard/internal/detector/explain"
	"payguard/internal/detector/models"
	"payguard/internal/platform/metrics"
	regmodels "payguard/internal/registry/models"
)

// FuzzyThreshold is the similarity above which (strictly) a name pair is
// considered a fuzzy duplicate. Exact matches (1.0) are excluded; those are
// the exact pass's business.
const FuzzyThreshold = 0.8

// Registry is the lookup surface the engine needs. Lookups for a batch are
// bundled into one multi-key fetch to bound round-trips.
type Registry interface {
	FindManyByIdentityHash(ctx context.Context, hashes []string) ([]*regmodels.StaffIdentity, error)
	FindByFieldHash(ctx context.Context, channel regmodels.FieldChannel, fieldHash string) ([]*regmodels.StaffIdentity, error)
}

// NameOpener recovers a display name from its sealed form.
type NameOpener interface {
	OpenName(sealed string) (string, error)
}

// Engine runs the four detection passes over one batch and produces a
// complete, reproducible flag set. Passes are independent: each appends to
// its own result slice over an immutable snapshot, and results are merged
// only after every pass finishes. Cancellation discards the whole run; a
// batch never ends up with a partially-visible flag set.
type Engine struct {
	registry Registry
	names    NameOpener
	grades   GradeTable
	enricher explain.Enricher
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewEngine(registry Registry, names NameOpener, grades GradeTable, enricher explain.Enricher, log *zap.Logger, m *metrics.Metrics) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("detector engine: registry is required")
	}
	if names == nil {
		return nil, fmt.Errorf("detector engine: name opener is required")
	}
	if grades == nil {
		grades = GradeTable{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		registry: registry,
		names:    names,
		grades:   grades,
		enricher: enricher,
		log:      log,
		metrics:  m,
	}, nil
}

// snapshot is the immutable input shared by all passes: the batch records
// plus every registry entry they reference, resolved once.
type snapshot struct {
	batchID string
	records []batchmodels.PayrollRecord
	order   []string // distinct identity hashes in first-seen order
	entries map[string]*regmodels.StaffIdentity
}

// Run executes all passes concurrently and returns the merged flag set.
// Individual lookup or decryption failures are skipped and logged, never
// fatal; only registry unavailability for the initial snapshot and context
// cancellation abort the run.
func (e *Engine) Run(ctx context.Context, batchID string, records []batchmodels.PayrollRecord) ([]models.Flag, error) {
	start := time.Now()
	snap, err := e.snapshot(ctx, batchID, records)
	if err != nil {
		return nil, err
	}

	passes := []func(ctx context.Context, snap *snapshot) ([]models.Flag, error){
		e.ghostPass,
		e.exactDuplicatePass,
		e.fuzzyDuplicatePass,
		e.salaryPass,
	}
	results := make([][]models.Flag, len(passes))

	g, gctx := errgroup.WithContext(ctx)
	for i, pass := range passes {
		i, pass := i, pass
		g.Go(func() error {
			flags, err := pass(gctx, snap)
			if err != nil {
				return err
			}
			results[i] = flags
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// All-or-nothing: partial results are discarded, not surfaced.
		return nil, fmt.Errorf("detector run aborted: %w", err)
	}

	merged := mergeFlags(results)
	for i := range merged {
		merged[i].Reason = explain.Apply(ctx, e.enricher, string(merged[i].Type), merged[i].Metadata, merged[i].Reason)
	}

	if e.metrics != nil {
		e.metrics.DetectionDuration.Observe(time.Since(start).Seconds())
		for _, f := range merged {
			e.metrics.FlagsRaised.WithLabelValues(string(f.Type)).Inc()
		}
	}
	return merged, nil
}

func (e *Engine) snapshot(ctx context.Context, batchID string, records []batchmodels.PayrollRecord) (*snapshot, error) {
	seen := make(map[string]bool, len(records))
	var order []string
	for _, r := range records {
		if !seen[r.IdentityHash] {
			seen[r.IdentityHash] = true
			order = append(order, r.IdentityHash)
		}
	}
	found, err := e.registry.FindManyByIdentityHash(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("detector snapshot: %w", err)
	}
	entries := make(map[string]*regmodels.StaffIdentity, len(found))
	for _, identity := range found {
		entries[identity.IdentityHash] = identity
	}
	return &snapshot{batchID: batchID, records: records, order: order, entries: entries}, nil
}

// newFlag fills the invariant fields every pass shares.
func newFlag(batchID, identityHash string, typ models.FlagType, score float64, reason string, metadata map[string]string) models.Flag {
	return models.Flag{
		ID:           uuid.New(),
		BatchID:      batchID,
		IdentityHash: identityHash,
		Type:         typ,
		Score:        score,
		Reason:       reason,
		Metadata:     metadata,
		Review:       models.Review{Resolution: models.ResolutionPending},
		CreatedAt:    time.Now().UTC(),
	}
}

type flagKey struct {
	identity string
	typ      models.FlagType
}

// mergeFlags combines per-pass results, deduplicating per (identity, type)
// within the batch run. When two passes agree on a finding the higher score
// wins; order is preserved from the first occurrence.
func mergeFlags(results [][]models.Flag) []models.Flag {
	var merged []models.Flag
	index := make(map[flagKey]int)
	for _, passFlags := range results {
		for _, f := range passFlags {
			key := flagKey{identity: f.IdentityHash, typ: f.Type}
			if at, ok := index[key]; ok {
				if f.Score > merged[at].Score {
					f.ID = merged[at].ID
					merged[at] = f
				}
				continue
			}
			index[key] = len(merged)
			merged = append(merged, f)
		}
	}
	return merged
}
