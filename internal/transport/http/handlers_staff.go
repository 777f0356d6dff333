package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"payguard/internal/ledger"
	"payguard/internal/registry"
	regmodels "payguard/internal/registry/models"
)

// StaffService is the registry surface the transport layer needs.
type StaffService interface {
	Register(ctx context.Context, req registry.RegisterRequest) (*regmodels.StaffIdentity, error)
	FindByIdentityHash(ctx context.Context, hash string) (*regmodels.StaffIdentity, error)
	Deactivate(ctx context.Context, identityHash string) error
}

type staffHandler struct {
	staff StaffService
	log   *zap.Logger
}

type registerStaffRequest struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth"`
	NationalID1 string `json:"national_id_1"`
	NationalID2 string `json:"national_id_2"`
	PayGrade    string `json:"pay_grade"`
}

// staffResponse deliberately omits sealed fields; raw or recoverable PII never
// crosses the transport boundary.
type staffResponse struct {
	IdentityHash string            `json:"identity_hash"`
	PayGrade     string            `json:"pay_grade"`
	Verified     bool              `json:"verified"`
	Active       bool              `json:"active"`
	RegisteredAt time.Time         `json:"registered_at"`
	Receipts     []receiptResponse `json:"receipts,omitempty"`
}

type receiptResponse struct {
	TxHash    string `json:"tx_hash"`
	LedgerSeq uint32 `json:"ledger_seq,omitempty"`
	Status    string `json:"status"`
}

func (h *staffHandler) register(r chi.Router) {
	r.Post("/v1/staff", h.handleRegister)
	r.Get("/v1/staff/{hash}", h.handleGet)
	r.Delete("/v1/staff/{hash}", h.handleDeactivate)
}

func (h *staffHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	identity, err := h.staff.Register(r.Context(), registry.RegisterRequest{
		Name:        req.Name,
		DateOfBirth: req.DateOfBirth,
		NationalID1: req.NationalID1,
		NationalID2: req.NationalID2,
		PayGrade:    req.PayGrade,
	})
	if err != nil {
		h.log.Warn("staff registration failed", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStaffResponse(identity))
}

func (h *staffHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	identity, err := h.staff.FindByIdentityHash(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(identity))
}

func (h *staffHandler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.staff.Deactivate(r.Context(), chi.URLParam(r, "hash")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toStaffResponse(identity *regmodels.StaffIdentity) staffResponse {
	return staffResponse{
		IdentityHash: identity.IdentityHash,
		PayGrade:     identity.PayGrade,
		Verified:     identity.Verified,
		Active:       identity.Active,
		RegisteredAt: identity.RegisteredAt,
		Receipts:     toReceiptResponses(identity.Receipts),
	}
}

func toReceiptResponses(receipts []ledger.Receipt) []receiptResponse {
	if len(receipts) == 0 {
		return nil
	}
	out := make([]receiptResponse, len(receipts))
	for i, rcpt := range receipts {
		out[i] = receiptResponse{
			TxHash:    rcpt.TxHash,
			LedgerSeq: rcpt.LedgerSeq,
			Status:    string(rcpt.Status),
		}
	}
	return out
}
