package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	batchmodels "payguard/internal/batch/models"
	detmodels "payguard/internal/detector/models"
)

// maxBatchBytes bounds a raw submission body. Payroll files beyond this are
// misuse, not data.
const maxBatchBytes = 32 << 20

// BatchService is the batch surface the transport layer needs.
type BatchService interface {
	Process(ctx context.Context, raw []byte) (*batchmodels.PayrollBatch, error)
	FindByHash(ctx context.Context, batchHash string) (*batchmodels.PayrollBatch, error)
	Flags(ctx context.Context, batchHash string) ([]detmodels.Flag, error)
	ReviewFlag(ctx context.Context, id uuid.UUID, review detmodels.Review) (*detmodels.Flag, error)
}

type batchHandler struct {
	batches BatchService
	log     *zap.Logger
}

type batchResponse struct {
	BatchHash    string           `json:"batch_hash"`
	TotalAmount  string           `json:"total_amount"`
	RecordCount  int              `json:"record_count"`
	FlaggedCount int              `json:"flagged_count"`
	Status       string           `json:"status"`
	Receipt      *receiptResponse `json:"receipt,omitempty"`
	Records      []recordResponse `json:"records"`
	CreatedAt    time.Time        `json:"created_at"`
}

type recordResponse struct {
	IdentityHash string   `json:"identity_hash"`
	Amount       string   `json:"amount"`
	Status       string   `json:"status"`
	FlagIDs      []string `json:"flag_ids,omitempty"`
}

type flagResponse struct {
	ID           string            `json:"id"`
	BatchHash    string            `json:"batch_hash"`
	IdentityHash string            `json:"identity_hash"`
	Type         string            `json:"type"`
	Score        float64           `json:"score"`
	Reason       string            `json:"reason"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Resolution   string            `json:"resolution"`
	Reviewer     string            `json:"reviewer,omitempty"`
	ReviewedAt   *time.Time        `json:"reviewed_at,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

type reviewRequest struct {
	Resolution string `json:"resolution"`
	Reviewer   string `json:"reviewer"`
	Notes      string `json:"notes"`
}

func (h *batchHandler) register(r chi.Router) {
	r.Post("/v1/batches", h.handleSubmit)
	r.Get("/v1/batches/{hash}", h.handleGet)
	r.Get("/v1/batches/{hash}/flags", h.handleFlags)
	r.Post("/v1/flags/{id}/review", h.handleReview)
}

// handleSubmit accepts a raw payroll file and runs the full processing cycle
// synchronously. The response carries the screened batch, flags included by
// reference.
func (h *batchHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBytes))
	if err != nil {
		badRequest(w, "unreadable request body")
		return
	}
	if len(raw) == 0 {
		badRequest(w, "empty submission")
		return
	}
	batch, err := h.batches.Process(r.Context(), raw)
	if err != nil {
		h.log.Warn("batch processing failed", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchResponse(batch))
}

func (h *batchHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	batch, err := h.batches.FindByHash(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(batch))
}

func (h *batchHandler) handleFlags(w http.ResponseWriter, r *http.Request) {
	flags, err := h.batches.Flags(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]flagResponse, len(flags))
	for i, f := range flags {
		out[i] = toFlagResponse(&f)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *batchHandler) handleReview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid flag id")
		return
	}
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	resolution := detmodels.Resolution(req.Resolution)
	if resolution != detmodels.ResolutionConfirmed && resolution != detmodels.ResolutionFalsePositive {
		badRequest(w, "resolution must be confirmed or false_positive")
		return
	}
	flag, err := h.batches.ReviewFlag(r.Context(), id, detmodels.Review{
		Resolution: resolution,
		Reviewer:   req.Reviewer,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFlagResponse(flag))
}

func toBatchResponse(batch *batchmodels.PayrollBatch) batchResponse {
	records := make([]recordResponse, len(batch.Records))
	for i, rec := range batch.Records {
		var ids []string
		for _, id := range rec.FlagIDs {
			ids = append(ids, id.String())
		}
		records[i] = recordResponse{
			IdentityHash: rec.IdentityHash,
			Amount:       rec.Amount.String(),
			Status:       string(rec.Status),
			FlagIDs:      ids,
		}
	}
	resp := batchResponse{
		BatchHash:    batch.BatchHash,
		TotalAmount:  batch.TotalAmount.String(),
		RecordCount:  batch.RecordCount,
		FlaggedCount: batch.FlaggedCount,
		Status:       string(batch.Status),
		Records:      records,
		CreatedAt:    batch.CreatedAt,
	}
	if batch.Receipt != nil {
		resp.Receipt = &receiptResponse{
			TxHash:    batch.Receipt.TxHash,
			LedgerSeq: batch.Receipt.LedgerSeq,
			Status:    string(batch.Receipt.Status),
		}
	}
	return resp
}

func toFlagResponse(f *detmodels.Flag) flagResponse {
	return flagResponse{
		ID:           f.ID.String(),
		BatchHash:    f.BatchID,
		IdentityHash: f.IdentityHash,
		Type:         string(f.Type),
		Score:        f.Score,
		Reason:       f.Reason,
		Metadata:     f.Metadata,
		Resolution:   string(f.Review.Resolution),
		Reviewer:     f.Review.Reviewer,
		ReviewedAt:   f.Review.ReviewedAt,
		Notes:        f.Review.Notes,
		CreatedAt:    f.CreatedAt,
	}
}
