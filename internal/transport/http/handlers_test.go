package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payguard/internal/audit"
	batchmodels "payguard/internal/batch/models"
	detmodels "payguard/internal/detector/models"
	"payguard/internal/registry"
	regmodels "payguard/internal/registry/models"
	"payguard/pkg/platform/sentinel"

	"github.com/shopspring/decimal"
)

type stubStaffService struct {
	identity *regmodels.StaffIdentity
	err      error
}

func (s *stubStaffService) Register(context.Context, registry.RegisterRequest) (*regmodels.StaffIdentity, error) {
	return s.identity, s.err
}

func (s *stubStaffService) FindByIdentityHash(context.Context, string) (*regmodels.StaffIdentity, error) {
	return s.identity, s.err
}

func (s *stubStaffService) Deactivate(context.Context, string) error { return s.err }

type stubBatchService struct {
	batch *batchmodels.PayrollBatch
	flag  *detmodels.Flag
	err   error
}

func (s *stubBatchService) Process(context.Context, []byte) (*batchmodels.PayrollBatch, error) {
	return s.batch, s.err
}

func (s *stubBatchService) FindByHash(context.Context, string) (*batchmodels.PayrollBatch, error) {
	return s.batch, s.err
}

func (s *stubBatchService) Flags(context.Context, string) ([]detmodels.Flag, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.flag == nil {
		return nil, nil
	}
	return []detmodels.Flag{*s.flag}, nil
}

func (s *stubBatchService) ReviewFlag(context.Context, uuid.UUID, detmodels.Review) (*detmodels.Flag, error) {
	return s.flag, s.err
}

func testIdentity() *regmodels.StaffIdentity {
	return &regmodels.StaffIdentity{
		IdentityHash: strings.Repeat("ab", 32),
		SealedName:   "opaque-sealed-blob",
		PayGrade:     "GL07",
		Active:       true,
		RegisteredAt: time.Now().UTC(),
	}
}

func testBatch() *batchmodels.PayrollBatch {
	return &batchmodels.PayrollBatch{
		BatchHash:   strings.Repeat("cd", 32),
		TotalAmount: decimal.NewFromInt(100),
		RecordCount: 1,
		Status:      batchmodels.BatchVerified,
		Records: []batchmodels.PayrollRecord{{
			IdentityHash: strings.Repeat("ab", 32),
			Amount:       decimal.NewFromInt(100),
			Status:       batchmodels.RecordVerified,
		}},
		CreatedAt: time.Now().UTC(),
	}
}

func serve(staff StaffService, batches BatchService, method, path, body string) *httptest.ResponseRecorder {
	router := NewRouter(staff, batches, nil, zap.NewNop())
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterStaffEndpoint(t *testing.T) {
	t.Run("created with sealed fields withheld", func(t *testing.T) {
		rec := serve(&stubStaffService{identity: testIdentity()}, &stubBatchService{},
			http.MethodPost, "/v1/staff",
			`{"name":"Jane Doe","date_of_birth":"1990-04-01","national_id_1":"A","national_id_2":"B","pay_grade":"GL07"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, strings.Repeat("ab", 32), resp["identity_hash"])
		assert.NotContains(t, rec.Body.String(), "opaque-sealed-blob")
		assert.NotContains(t, rec.Body.String(), "Jane")
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		rec := serve(&stubStaffService{}, &stubBatchService{}, http.MethodPost, "/v1/staff", "{not json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate person maps to 409", func(t *testing.T) {
		rec := serve(&stubStaffService{err: fmt.Errorf("exists: %w", sentinel.ErrConflict)}, &stubBatchService{},
			http.MethodPost, "/v1/staff", `{"name":"Jane Doe"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestBatchEndpoints(t *testing.T) {
	t.Run("submission returns the screened batch", func(t *testing.T) {
		rec := serve(&stubStaffService{}, &stubBatchService{batch: testBatch()},
			http.MethodPost, "/v1/batches", "identity_hash,amount\n"+strings.Repeat("ab", 32)+",100\n")

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "verified", resp["status"])
		assert.Equal(t, float64(1), resp["record_count"])
	})

	t.Run("empty submission is a 400", func(t *testing.T) {
		rec := serve(&stubStaffService{}, &stubBatchService{}, http.MethodPost, "/v1/batches", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate batch maps to 409", func(t *testing.T) {
		rec := serve(&stubStaffService{}, &stubBatchService{err: fmt.Errorf("dup: %w", sentinel.ErrConflict)},
			http.MethodPost, "/v1/batches", "raw")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown batch maps to 404", func(t *testing.T) {
		rec := serve(&stubStaffService{}, &stubBatchService{err: fmt.Errorf("gone: %w", sentinel.ErrNotFound)},
			http.MethodGet, "/v1/batches/"+strings.Repeat("cd", 32), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("flags listing", func(t *testing.T) {
		flag := &detmodels.Flag{
			ID:           uuid.New(),
			BatchID:      strings.Repeat("cd", 32),
			IdentityHash: strings.Repeat("ab", 32),
			Type:         detmodels.TypeGhost,
			Score:        1.0,
			Reason:       "identity not registered",
			Review:       detmodels.Review{Resolution: detmodels.ResolutionPending},
			CreatedAt:    time.Now().UTC(),
		}
		rec := serve(&stubStaffService{}, &stubBatchService{batch: testBatch(), flag: flag},
			http.MethodGet, "/v1/batches/"+strings.Repeat("cd", 32)+"/flags", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		assert.Equal(t, "ghost", resp[0]["type"])
		assert.Equal(t, "pending", resp[0]["resolution"])
	})
}

func TestReviewEndpoint(t *testing.T) {
	flag := &detmodels.Flag{
		ID:     uuid.New(),
		Type:   detmodels.TypeSalaryAnomaly,
		Review: detmodels.Review{Reviewed: true, Resolution: detmodels.ResolutionConfirmed},
	}

	t.Run("valid review", func(t *testing.T) {
		rec := serve(&stubStaffService{}, &stubBatchService{flag: flag},
			http.MethodPost, "/v1/flags/"+flag.ID.String()+"/review",
			`{"resolution":"confirmed","reviewer":"auditor-7"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown resolution rejected", func(t *testing.T) {
		rec := serve(&stubStaffService{}, &stubBatchService{flag: flag},
			http.MethodPost, "/v1/flags/"+flag.ID.String()+"/review", `{"resolution":"maybe"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-uuid id rejected", func(t *testing.T) {
		rec := serve(&stubStaffService{}, &stubBatchService{flag: flag},
			http.MethodPost, "/v1/flags/not-a-uuid/review", `{"resolution":"confirmed"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthz(t *testing.T) {
	rec := serve(&stubStaffService{}, &stubBatchService{}, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuditTrailEndpoint(t *testing.T) {
	store := audit.NewMemoryStore()
	trail := audit.NewPublisher(store)
	subject := strings.Repeat("ab", 32)
	require.NoError(t, trail.Emit(context.Background(), audit.Event{
		Subject: subject,
		Action:  audit.ActionStaffRegistered,
		Actor:   "system",
	}))

	router := NewRouter(&stubStaffService{}, &stubBatchService{}, trail, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/"+subject, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var events []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionStaffRegistered, events[0]["action"])
	assert.Equal(t, subject, events[0]["subject"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/"+strings.Repeat("ff", 32), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}
