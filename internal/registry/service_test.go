package registry

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"payguard/internal/audit"
	"payguard/internal/identity/vault"
	"payguard/internal/ledger"
	"payguard/internal/registry/models"
	"payguard/internal/registry/store"
	"payguard/pkg/platform/sentinel"
)

type fakeLedger struct {
	registerErr error
	revokeErr   error
	registered  []string
	revoked     []string
}

func (f *fakeLedger) RegisterStaff(_ context.Context, identityHash string) (ledger.Receipt, error) {
	if f.registerErr != nil {
		return ledger.Receipt{}, f.registerErr
	}
	f.registered = append(f.registered, identityHash)
	return ledger.Receipt{TxHash: "tx-" + identityHash[:8], Status: ledger.StatusPending}, nil
}

func (f *fakeLedger) RevokeStaff(_ context.Context, identityHash string) (ledger.Receipt, error) {
	if f.revokeErr != nil {
		return ledger.Receipt{}, f.revokeErr
	}
	f.revoked = append(f.revoked, identityHash)
	return ledger.Receipt{TxHash: "rv-" + identityHash[:8], Status: ledger.StatusPending}, nil
}

type fakeTracker struct {
	tracked []ledger.Pending
}

func (f *fakeTracker) Track(p ledger.Pending) { f.tracked = append(f.tracked, p) }

type recordingAuditor struct {
	events []audit.Event
}

func (r *recordingAuditor) Emit(_ context.Context, event audit.Event) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAuditor) actions() []string {
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Action
	}
	return out
}

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	chain   *fakeLedger
	tracker *fakeTracker
	auditor *recordingAuditor
	svc     *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewMemory()
	s.chain = &fakeLedger{}
	s.tracker = &fakeTracker{}
	s.auditor = &recordingAuditor{}

	v, err := vault.New(strings.Repeat("42", 32))
	s.Require().NoError(err)
	s.svc, err = NewService(s.store, nil, v, s.chain, s.tracker, s.auditor, zap.NewNop(), nil)
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func (s *ServiceSuite) register(name string) *models.StaffIdentity {
	identity, err := s.svc.Register(s.ctx, RegisterRequest{
		Name:        name,
		DateOfBirth: "1990-04-01",
		NationalID1: "NIN-" + name,
		NationalID2: "BVN-" + name,
		PayGrade:    "GL07",
	})
	s.Require().NoError(err)
	return identity
}

func (s *ServiceSuite) TestRegister() {
	s.Run("persists hashed identity and anchors on-chain", func() {
		identity := s.register("Jane Doe")

		s.Len(identity.IdentityHash, 64)
		s.True(identity.Active)
		s.False(identity.Verified)
		s.Len(identity.FieldHashes, 4)
		s.NotEqual("Jane Doe", identity.SealedName)
		s.Require().Len(identity.Receipts, 1)
		s.Equal(ledger.StatusPending, identity.Receipts[0].Status)

		s.Equal([]string{identity.IdentityHash}, s.chain.registered)
		s.Require().Len(s.tracker.tracked, 1)
		s.Equal(ledger.KindStaffRegistration, s.tracker.tracked[0].Kind)
		s.Contains(s.auditor.actions(), audit.ActionStaffRegistered)
	})

	s.Run("same person twice conflicts", func() {
		_, err := s.svc.Register(s.ctx, RegisterRequest{
			Name:        "Jane Doe",
			DateOfBirth: "1990-04-01",
			NationalID1: "NIN-Jane Doe",
			NationalID2: "BVN-Jane Doe",
		})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("name plaintext never reaches the store", func() {
		identity, err := s.store.FindByIdentityHash(s.ctx, s.chain.registered[0])
		s.Require().NoError(err)
		s.NotContains(identity.SealedName, "Jane")

		name, err := s.svc.OpenName(identity.SealedName)
		s.Require().NoError(err)
		s.Equal("Jane Doe", name)
	})
}

func (s *ServiceSuite) TestRegisterLedgerOutcomes() {
	s.Run("ledger failure leaves the identity unverified", func() {
		s.chain.registerErr = fmt.Errorf("network down")
		identity := s.register("John Roe")
		s.False(identity.Verified)
		s.Empty(identity.Receipts)
		s.Empty(s.tracker.tracked)
	})

	s.Run("already on-chain is adopted as verified", func() {
		s.chain.registerErr = fmt.Errorf("seen before: %w", sentinel.ErrAlreadyRegistered)
		identity := s.register("Mary Major")
		s.True(identity.Verified)

		stored, err := s.store.FindByIdentityHash(s.ctx, identity.IdentityHash)
		s.Require().NoError(err)
		s.True(stored.Verified)
	})
}

func (s *ServiceSuite) TestReceiptLifecycle() {
	identity := s.register("Jane Doe")
	pending := s.tracker.tracked[0]

	s.Run("confirmation upgrades to verified", func() {
		s.Require().NoError(s.svc.ReceiptConfirmed(s.ctx, pending, 1234))

		stored, err := s.store.FindByIdentityHash(s.ctx, identity.IdentityHash)
		s.Require().NoError(err)
		s.True(stored.Verified)
		s.True(stored.ConfirmedReceipt())
		s.Require().Len(stored.Receipts, 1)
		s.Equal(uint32(1234), stored.Receipts[0].LedgerSeq)
		s.Contains(s.auditor.actions(), audit.ActionLedgerConfirmed)
	})

	s.Run("failure keeps the identity, marks the receipt", func() {
		other := s.register("John Roe")
		failed := s.tracker.tracked[1]
		s.Require().NoError(s.svc.ReceiptFailed(s.ctx, failed))

		stored, err := s.store.FindByIdentityHash(s.ctx, other.IdentityHash)
		s.Require().NoError(err)
		s.False(stored.Verified)
		s.Contains(s.auditor.actions(), audit.ActionLedgerFailed)
	})
}

func (s *ServiceSuite) TestDeactivate() {
	identity := s.register("Jane Doe")

	s.Require().NoError(s.svc.Deactivate(s.ctx, identity.IdentityHash))

	stored, err := s.store.FindByIdentityHash(s.ctx, identity.IdentityHash)
	s.Require().NoError(err)
	s.False(stored.Active)
	s.Equal([]string{identity.IdentityHash}, s.chain.revoked)
	s.Require().Len(s.tracker.tracked, 2)
	s.Equal(ledger.KindStaffRevocation, s.tracker.tracked[1].Kind)

	s.ErrorIs(s.svc.Deactivate(s.ctx, strings.Repeat("00", 32)), sentinel.ErrNotFound)
}

func (s *ServiceSuite) TestLookups() {
	a := s.register("Jane Doe")
	b := s.register("John Roe")

	s.Run("find many returns only known hashes", func() {
		found, err := s.svc.FindManyByIdentityHash(s.ctx, []string{a.IdentityHash, strings.Repeat("ff", 32), b.IdentityHash})
		s.Require().NoError(err)
		s.Len(found, 2)
	})

	s.Run("shared field hash clusters identities", func() {
		// A third registration sharing Jane's first national id.
		shared, err := s.svc.Register(s.ctx, RegisterRequest{
			Name:        "Jane D",
			DateOfBirth: "1991-05-02",
			NationalID1: "NIN-Jane Doe",
			NationalID2: "BVN-other",
		})
		s.Require().NoError(err)

		cluster, err := s.svc.FindByFieldHash(s.ctx, models.ChannelNationalID1, a.FieldHashes[models.ChannelNationalID1])
		s.Require().NoError(err)
		s.Len(cluster, 2)
		hashes := []string{cluster[0].IdentityHash, cluster[1].IdentityHash}
		s.Contains(hashes, a.IdentityHash)
		s.Contains(hashes, shared.IdentityHash)
	})
}
