// ABOUTME: JSON request/response helpers and the store-error → HTTP status mapping.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fixbay/workshop-ops/internal/store"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

// readJSON decodes the request body into dst, rejecting unknown fields.
// Returns false after writing a 400 when the body is malformed.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// storeError maps store-layer failures to HTTP responses. Anything not in the
// known taxonomy is an opaque 500; the detail goes to the log, never the
// client.
func storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, r, http.StatusConflict, "already exists")
	case errors.Is(err, store.ErrPoolExhausted):
		w.Header().Set("Retry-After", "1")
		writeError(w, r, http.StatusServiceUnavailable, "server busy, please retry")
	default:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
