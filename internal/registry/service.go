package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"payguard/internal/audit"
	"payguard/internal/identity/hasher"
	"payguard/internal/identity/vault"
	"payguard/internal/ledger"
	"payguard/internal/platform/metrics"
	"payguard/internal/registry/cache"
	"payguard/internal/registry/models"
	"payguard/pkg/platform/sentinel"
)

// Store is the persistence surface for staff identities.
type Store interface {
	Save(ctx context.Context, identity *models.StaffIdentity) error
	FindByIdentityHash(ctx context.Context, hash string) (*models.StaffIdentity, error)
	FindManyByIdentityHash(ctx context.Context, hashes []string) ([]*models.StaffIdentity, error)
	FindByFieldHash(ctx context.Context, channel models.FieldChannel, fieldHash string) ([]*models.StaffIdentity, error)
	MarkVerified(ctx context.Context, identityHash string) error
	Deactivate(ctx context.Context, identityHash string) error
	AttachReceipt(ctx context.Context, identityHash string, receipt ledger.Receipt) error
}

// Ledger is the chain-submission surface the registry needs.
type Ledger interface {
	RegisterStaff(ctx context.Context, identityHash string) (ledger.Receipt, error)
	RevokeStaff(ctx context.Context, identityHash string) (ledger.Receipt, error)
}

// Tracker enqueues broadcast transactions for background confirmation.
type Tracker interface {
	Track(p ledger.Pending)
}

// Auditor appends to the audit trail.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// RegisterRequest carries the raw identifying fields for one person. The
// service hashes and seals them; raw values are never persisted.
type RegisterRequest struct {
	Name        string
	DateOfBirth string
	NationalID1 string
	NationalID2 string
	PayGrade    string
}

// Service coordinates staff identity lifecycle: registration, lookup with
// optional caching, deactivation, and ledger receipt reconciliation.
type Service struct {
	store   Store
	cache   *cache.Cache
	vault   *vault.Vault
	ledger  Ledger
	tracker Tracker
	auditor Auditor
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewService(store Store, c *cache.Cache, v *vault.Vault, l Ledger, tracker Tracker, auditor Auditor, log *zap.Logger, m *metrics.Metrics) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("registry service: store is required")
	}
	if v == nil {
		return nil, fmt.Errorf("registry service: vault is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   store,
		cache:   c,
		vault:   v,
		ledger:  l,
		tracker: tracker,
		auditor: auditor,
		log:     log,
		metrics: m,
	}, nil
}

// Register hashes, seals, and persists a new staff identity, then anchors it
// on-chain. Off-chain persistence is the commit point: a ledger failure
// leaves the identity registered but unverified ("not yet chain-proven"),
// never rolled back.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.StaffIdentity, error) {
	identityHash, err := hasher.HashIdentity(req.Name, req.DateOfBirth, req.NationalID1, req.NationalID2)
	if err != nil {
		return nil, err
	}
	fieldHashes, err := fieldHashes(req)
	if err != nil {
		return nil, err
	}
	sealedName, err := s.vault.Seal(req.Name)
	if err != nil {
		return nil, fmt.Errorf("register staff: %w", err)
	}

	identity := &models.StaffIdentity{
		IdentityHash: identityHash,
		FieldHashes:  fieldHashes,
		SealedName:   sealedName,
		PayGrade:     req.PayGrade,
		Active:       true,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.store.Save(ctx, identity); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.StaffRegistered.Inc()
	}
	s.emit(ctx, audit.Event{
		Subject: identityHash,
		Action:  audit.ActionStaffRegistered,
	})

	if s.ledger == nil {
		return identity, nil
	}
	receipt, err := s.ledger.RegisterStaff(ctx, identityHash)
	switch {
	case errors.Is(err, sentinel.ErrAlreadyRegistered):
		// The chain already proves this hash; adopt the proof.
		if err := s.store.MarkVerified(ctx, identityHash); err != nil {
			return nil, err
		}
		identity.Verified = true
		s.log.Info("identity already on-chain, adopted as verified",
			zap.String("identity_hash", identityHash[:12]))
	case err != nil:
		s.log.Warn("ledger registration failed, identity left unverified",
			zap.String("identity_hash", identityHash[:12]),
			zap.Error(err))
	default:
		identity.Receipts = append(identity.Receipts, receipt)
		if err := s.store.AttachReceipt(ctx, identityHash, receipt); err != nil {
			return nil, err
		}
		if s.tracker != nil {
			s.tracker.Track(ledger.Pending{
				TxHash: receipt.TxHash,
				Kind:   ledger.KindStaffRegistration,
				Ref:    identityHash,
			})
		}
	}
	return identity, nil
}

// FindByIdentityHash looks up one identity, consulting the cache first.
func (s *Service) FindByIdentityHash(ctx context.Context, hash string) (*models.StaffIdentity, error) {
	if s.cache != nil {
		if cached, err := s.cache.Find(ctx, hash); err == nil {
			return cached, nil
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			s.log.Warn("registry cache read failed", zap.Error(err))
		}
	}
	identity, err := s.store.FindByIdentityHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	s.cacheSave(ctx, identity)
	return identity, nil
}

// FindManyByIdentityHash resolves a batch of hashes with at most one cache
// round-trip and one store round-trip. Unknown hashes are absent from the
// result.
func (s *Service) FindManyByIdentityHash(ctx context.Context, hashes []string) ([]*models.StaffIdentity, error) {
	if s.cache == nil {
		return s.store.FindManyByIdentityHash(ctx, hashes)
	}
	hits, misses, err := s.cache.FindMany(ctx, hashes)
	if err != nil {
		s.log.Warn("registry cache read failed", zap.Error(err))
		return s.store.FindManyByIdentityHash(ctx, hashes)
	}
	if len(misses) == 0 {
		return hits, nil
	}
	fetched, err := s.store.FindManyByIdentityHash(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, identity := range fetched {
		s.cacheSave(ctx, identity)
	}
	return append(hits, fetched...), nil
}

// FindByFieldHash returns every identity sharing a per-field hash on the
// given channel. Used by the exact-duplicate pass; not cached, since results
// span identities.
func (s *Service) FindByFieldHash(ctx context.Context, channel models.FieldChannel, fieldHash string) ([]*models.StaffIdentity, error) {
	return s.store.FindByFieldHash(ctx, channel, fieldHash)
}

// Deactivate flips the active flag off-chain and revokes on-chain
// best-effort. Identities are never deleted.
func (s *Service) Deactivate(ctx context.Context, identityHash string) error {
	if err := s.store.Deactivate(ctx, identityHash); err != nil {
		return err
	}
	s.cacheDrop(ctx, identityHash)
	s.emit(ctx, audit.Event{
		Subject: identityHash,
		Action:  audit.ActionStaffDeactivated,
	})
	if s.ledger == nil {
		return nil
	}
	receipt, err := s.ledger.RevokeStaff(ctx, identityHash)
	if err != nil {
		s.log.Warn("ledger revocation failed",
			zap.String("identity_hash", identityHash[:12]),
			zap.Error(err))
		return nil
	}
	if err := s.store.AttachReceipt(ctx, identityHash, receipt); err != nil {
		return err
	}
	if s.tracker != nil {
		s.tracker.Track(ledger.Pending{
			TxHash: receipt.TxHash,
			Kind:   ledger.KindStaffRevocation,
			Ref:    identityHash,
		})
	}
	return nil
}

// OpenName recovers the plaintext display name for an identity. Only the
// fuzzy-duplicate pass should need this.
func (s *Service) OpenName(sealed string) (string, error) {
	return s.vault.Open(sealed)
}

// ReceiptConfirmed implements ledger.StatusStore for staff submissions:
// confirmation upgrades the identity to verified.
func (s *Service) ReceiptConfirmed(ctx context.Context, p ledger.Pending, ledgerSeq uint32) error {
	receipt := ledger.Receipt{TxHash: p.TxHash, LedgerSeq: ledgerSeq, Status: ledger.StatusSuccess}
	if err := s.store.AttachReceipt(ctx, p.Ref, receipt); err != nil {
		return err
	}
	if p.Kind == ledger.KindStaffRegistration {
		if err := s.store.MarkVerified(ctx, p.Ref); err != nil {
			return err
		}
	}
	s.cacheDrop(ctx, p.Ref)
	s.emit(ctx, audit.Event{
		Subject: p.Ref,
		Action:  audit.ActionLedgerConfirmed,
		Reason:  string(p.Kind),
	})
	return nil
}

// ReceiptFailed records a failed submission. Off-chain state stays as-is;
// the identity simply remains unverified for operator follow-up.
func (s *Service) ReceiptFailed(ctx context.Context, p ledger.Pending) error {
	receipt := ledger.Receipt{TxHash: p.TxHash, Status: ledger.StatusFailed}
	if err := s.store.AttachReceipt(ctx, p.Ref, receipt); err != nil {
		return err
	}
	s.cacheDrop(ctx, p.Ref)
	s.emit(ctx, audit.Event{
		Subject: p.Ref,
		Action:  audit.ActionLedgerFailed,
		Reason:  string(p.Kind),
	})
	return nil
}

func (s *Service) cacheSave(ctx context.Context, identity *models.StaffIdentity) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(ctx, identity); err != nil {
		s.log.Warn("registry cache write failed", zap.Error(err))
	}
}

func (s *Service) cacheDrop(ctx context.Context, identityHash string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, identityHash); err != nil {
		s.log.Warn("registry cache invalidation failed", zap.Error(err))
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

func fieldHashes(req RegisterRequest) (map[models.FieldChannel]string, error) {
	out := make(map[models.FieldChannel]string, 4)
	for _, field := range []struct {
		channel models.FieldChannel
		value   string
	}{
		{models.ChannelName, req.Name},
		{models.ChannelDateOfBirth, req.DateOfBirth},
		{models.ChannelNationalID1, req.NationalID1},
		{models.ChannelNationalID2, req.NationalID2},
	} {
		digest, err := hasher.HashField(field.value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.channel, err)
		}
		out[field.channel] = digest
	}
	return out, nil
}
