package handler

// RESPONSE ENVELOPE:
// Every API response has the same outer shape so the SPA can branch on one
// field:
//
//	success: {"ok": true, "project": {...}}
//	failure: {"ok": false, "error": "Forbidden"}
//
// Handlers build the payload with an envelope and call writeOK; errors from
// the service layer go through writeError, the one place that maps domain
// errors to HTTP status codes.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/unityboard/internal/apperror"
)

// envelope is the payload of a successful response. writeOK adds "ok".
type envelope map[string]any

// errorResponse is the failure body.
type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// serverErrorMessage is the only text a client sees for an unexpected error.
const serverErrorMessage = "Server error"

// writeJSON sends data with the given status code. Headers must be set
// before WriteHeader; anything set afterwards is silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already on the wire, so logging is all we can do.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeOK sends {"ok": true, ...payload}.
func writeOK(w http.ResponseWriter, status int, payload envelope) {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["ok"] = true
	writeJSON(w, status, body)
}

// statusOf maps a domain error kind to its HTTP status. Unknown errors are 500.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrLocked):
		return http.StatusLocked
	}
	return http.StatusInternalServerError
}

// writeError maps err to a status code and sends {"ok": false, "error": msg}.
//
// errors.As walks the wrap chain, so a service may return
// fmt.Errorf("...: %w", apperror.Forbidden(...)) and still produce a 403.
// Anything that is not an *AppError is a 500 with a fixed message: raw
// errors can carry SQL or file paths and are only logged.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	status := statusOf(err)
	if !errors.As(err, &appErr) || status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: serverErrorMessage})
		return
	}
	if appErr.Detail != "" {
		logger.DebugContext(r.Context(), "request rejected",
			slog.Int("status", status), slog.String("detail", appErr.Detail))
	}
	resp := errorResponse{Error: appErr.Message}
	if status == http.StatusBadRequest {
		resp.Field = appErr.Field
	}
	writeJSON(w, status, resp)
}
