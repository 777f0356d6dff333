package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"payguard/pkg/platform/sentinel"
)

type errorEnvelope struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError translates sentinel errors into HTTP responses. Internal detail
// never leaks: unknown errors collapse to a generic 500 envelope.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorEnvelope{Error: "not found"})
	case errors.Is(err, sentinel.ErrConflict),
		errors.Is(err, sentinel.ErrAlreadyRegistered),
		errors.Is(err, sentinel.ErrAlreadyRecorded):
		writeJSON(w, http.StatusConflict, errorEnvelope{Error: "conflict"})
	case errors.Is(err, sentinel.ErrInvalidState):
		writeJSON(w, http.StatusUnprocessableEntity, errorEnvelope{Error: err.Error()})
	case errors.Is(err, sentinel.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorEnvelope{Error: "dependency unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: "internal error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: msg})
}
