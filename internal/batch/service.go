package batch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payguard/internal/audit"
	"payguard/internal/batch/models"
	detmodels "payguard/internal/detector/models"
	"payguard/internal/ledger"
	"payguard/internal/platform/metrics"
	"payguard/pkg/platform/sentinel"
)

// Store is the persistence surface for payroll batches.
type Store interface {
	Save(ctx context.Context, batch *models.PayrollBatch) error
	Update(ctx context.Context, batch *models.PayrollBatch) error
	FindByHash(ctx context.Context, batchHash string) (*models.PayrollBatch, error)
}

// Detector runs the screening passes over a batch's records.
type Detector interface {
	Run(ctx context.Context, batchID string, records []models.PayrollRecord) ([]detmodels.Flag, error)
}

// FlagStore persists the findings of one detector run atomically.
type FlagStore interface {
	SaveAll(ctx context.Context, flags []detmodels.Flag) error
	FindByID(ctx context.Context, id uuid.UUID) (*detmodels.Flag, error)
	ListByBatch(ctx context.Context, batchID string) ([]detmodels.Flag, error)
	Review(ctx context.Context, id uuid.UUID, review detmodels.Review) error
}

// Ledger anchors batch digests on-chain.
type Ledger interface {
	RecordBatch(ctx context.Context, batchHash string, recordCount uint32) (ledger.Receipt, error)
}

// Tracker enqueues broadcast transactions for background confirmation.
type Tracker interface {
	Track(p ledger.Pending)
}

// Auditor appends to the audit trail.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates one payroll submission cycle: ingest, screen, persist,
// anchor. Off-chain persistence is the commit point; a ledger failure marks
// the batch failed but never discards it.
type Service struct {
	store    Store
	detector Detector
	flags    FlagStore
	ledger   Ledger
	tracker  Tracker
	auditor  Auditor
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewService(store Store, det Detector, flags FlagStore, l Ledger, tracker Tracker, auditor Auditor, log *zap.Logger, m *metrics.Metrics) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("batch service: store is required")
	}
	if det == nil {
		return nil, fmt.Errorf("batch service: detector is required")
	}
	if flags == nil {
		return nil, fmt.Errorf("batch service: flag store is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		detector: det,
		flags:    flags,
		ledger:   l,
		tracker:  tracker,
		auditor:  auditor,
		log:      log,
		metrics:  m,
	}, nil
}

// HashBatch is the digest over the raw submitted bytes, before any parsing.
// Two byte-identical submissions always collide; a single changed byte never
// does.
func HashBatch(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Process runs the full cycle over one raw submission. Duplicate submissions
// are rejected with sentinel.ErrConflict before any detection work; empty
// submissions (no valid rows) are rejected with sentinel.ErrInvalidState.
func (s *Service) Process(ctx context.Context, raw []byte) (*models.PayrollBatch, error) {
	batchHash := HashBatch(raw)

	if _, err := s.store.FindByHash(ctx, batchHash); err == nil {
		s.countBatch("rejected")
		s.emit(ctx, audit.Event{
			Subject: batchHash,
			Action:  audit.ActionBatchRejected,
			Reason:  "duplicate submission",
		})
		return nil, fmt.Errorf("batch %s already processed: %w", abbrev(batchHash), sentinel.ErrConflict)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	records, dropped, err := ParseRows(raw)
	if err != nil {
		s.countBatch("rejected")
		return nil, err
	}
	if dropped > 0 {
		s.log.Info("dropped invalid payroll rows",
			zap.String("batch_hash", abbrev(batchHash)),
			zap.Int("dropped", dropped))
		if s.metrics != nil {
			s.metrics.RowsDropped.Add(float64(dropped))
		}
	}
	if len(records) == 0 {
		s.countBatch("rejected")
		s.emit(ctx, audit.Event{
			Subject: batchHash,
			Action:  audit.ActionBatchRejected,
			Reason:  "no valid rows",
		})
		return nil, fmt.Errorf("batch %s has no valid rows: %w", abbrev(batchHash), sentinel.ErrInvalidState)
	}

	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	batch := &models.PayrollBatch{
		BatchHash:   batchHash,
		Records:     records,
		TotalAmount: total,
		RecordCount: len(records),
		Status:      models.BatchProcessing,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Save(ctx, batch); err != nil {
		return nil, err
	}

	flags, err := s.detector.Run(ctx, batchHash, batch.Records)
	if err != nil {
		// The batch stays in processing for a later re-run; no partial
		// flag set is ever persisted.
		return nil, err
	}
	if err := s.flags.SaveAll(ctx, flags); err != nil {
		return nil, err
	}
	s.applyFlags(batch, flags)
	for _, f := range flags {
		s.emit(ctx, audit.Event{
			Subject: f.IdentityHash,
			Action:  audit.ActionFlagRaised,
			Reason:  string(f.Type),
			Metadata: map[string]string{
				"batch_hash": batchHash,
				"flag_id":    f.ID.String(),
				"score":      strconv.FormatFloat(f.Score, 'f', 4, 64),
			},
		})
	}

	s.anchor(ctx, batch)

	if err := s.store.Update(ctx, batch); err != nil {
		return nil, err
	}
	s.countBatch(string(batch.Status))
	s.emit(ctx, audit.Event{
		Subject: batchHash,
		Action:  audit.ActionBatchProcessed,
		Reason:  string(batch.Status),
		Metadata: map[string]string{
			"record_count":  strconv.Itoa(batch.RecordCount),
			"flagged_count": strconv.Itoa(batch.FlaggedCount),
		},
	})
	return batch, nil
}

// applyFlags attaches flag references to their records and recomputes the
// per-record statuses and the flagged count. FlaggedCount counts flagged
// records, not flags: one record with three findings counts once.
func (s *Service) applyFlags(batch *models.PayrollBatch, flags []detmodels.Flag) {
	byIdentity := make(map[string][]uuid.UUID)
	for _, f := range flags {
		byIdentity[f.IdentityHash] = append(byIdentity[f.IdentityHash], f.ID)
	}
	flagged := 0
	for i := range batch.Records {
		record := &batch.Records[i]
		if ids, ok := byIdentity[record.IdentityHash]; ok {
			record.FlagIDs = append([]uuid.UUID(nil), ids...)
			record.Status = models.RecordFlagged
			flagged++
		} else {
			record.Status = models.RecordVerified
		}
	}
	batch.FlaggedCount = flagged
}

// anchor records the batch digest on-chain and sets the batch status from the
// outcome. Chain failure marks the batch failed but keeps it queryable.
func (s *Service) anchor(ctx context.Context, batch *models.PayrollBatch) {
	if s.ledger == nil {
		batch.Status = models.BatchVerified
		return
	}
	receipt, err := s.ledger.RecordBatch(ctx, batch.BatchHash, uint32(batch.RecordCount))
	switch {
	case errors.Is(err, sentinel.ErrAlreadyRecorded):
		// The chain already proves this digest; adopt the proof.
		batch.Status = models.BatchVerified
		s.log.Info("batch already on-chain, adopted as verified",
			zap.String("batch_hash", abbrev(batch.BatchHash)))
	case err != nil:
		batch.Status = models.BatchFailed
		s.log.Warn("ledger recording failed, batch marked failed",
			zap.String("batch_hash", abbrev(batch.BatchHash)),
			zap.Error(err))
	default:
		batch.Status = models.BatchVerified
		batch.Receipt = &receipt
		if s.tracker != nil {
			s.tracker.Track(ledger.Pending{
				TxHash: receipt.TxHash,
				Kind:   ledger.KindBatchRecord,
				Ref:    batch.BatchHash,
			})
		}
	}
}

// FindByHash returns a batch with its records.
func (s *Service) FindByHash(ctx context.Context, batchHash string) (*models.PayrollBatch, error) {
	return s.store.FindByHash(ctx, batchHash)
}

// Flags lists the findings recorded for a batch.
func (s *Service) Flags(ctx context.Context, batchHash string) ([]detmodels.Flag, error) {
	if _, err := s.store.FindByHash(ctx, batchHash); err != nil {
		return nil, err
	}
	return s.flags.ListByBatch(ctx, batchHash)
}

// ReviewFlag records a human resolution on a finding. The flag itself is
// immutable; only the review envelope changes.
func (s *Service) ReviewFlag(ctx context.Context, id uuid.UUID, review detmodels.Review) (*detmodels.Flag, error) {
	if err := s.flags.Review(ctx, id, review); err != nil {
		return nil, err
	}
	flag, err := s.flags.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, audit.Event{
		Actor:   review.Reviewer,
		Subject: flag.IdentityHash,
		Action:  audit.ActionFlagReviewed,
		Reason:  string(review.Resolution),
		Metadata: map[string]string{
			"batch_hash": flag.BatchID,
			"flag_id":    id.String(),
		},
	})
	return flag, nil
}

// ReceiptConfirmed implements ledger.StatusStore for batch submissions.
func (s *Service) ReceiptConfirmed(ctx context.Context, p ledger.Pending, ledgerSeq uint32) error {
	batch, err := s.store.FindByHash(ctx, p.Ref)
	if err != nil {
		return err
	}
	batch.Receipt = &ledger.Receipt{TxHash: p.TxHash, LedgerSeq: ledgerSeq, Status: ledger.StatusSuccess}
	batch.Status = models.BatchVerified
	if err := s.store.Update(ctx, batch); err != nil {
		return err
	}
	s.emit(ctx, audit.Event{
		Subject: p.Ref,
		Action:  audit.ActionLedgerConfirmed,
		Reason:  string(p.Kind),
	})
	return nil
}

// ReceiptFailed downgrades a batch whose broadcast transaction failed
// on-chain. Records and flags are untouched; the batch is simply not
// chain-proven.
func (s *Service) ReceiptFailed(ctx context.Context, p ledger.Pending) error {
	batch, err := s.store.FindByHash(ctx, p.Ref)
	if err != nil {
		return err
	}
	batch.Receipt = &ledger.Receipt{TxHash: p.TxHash, Status: ledger.StatusFailed}
	batch.Status = models.BatchFailed
	if err := s.store.Update(ctx, batch); err != nil {
		return err
	}
	s.emit(ctx, audit.Event{
		Subject: p.Ref,
		Action:  audit.ActionLedgerFailed,
		Reason:  string(p.Kind),
	})
	return nil
}

func (s *Service) countBatch(status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.BatchesProcessed.WithLabelValues(status).Inc()
	if status == "rejected" {
		s.metrics.BatchesRejected.Inc()
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.log.Warn("audit emit failed", zap.String("action", event.Action), zap.Error(err))
	}
}

func abbrev(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
