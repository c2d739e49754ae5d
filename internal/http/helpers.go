package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"loantrack/internal/core"
	"loantrack/internal/session"
)

type errorResponse struct {
	Error string `json:"error"`
}

// readJSON decodes the request body into dst, writing a 400 on failure.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		slog.WarnContext(r.Context(), "Request body decode failed", "error", err, "url", r.URL.Path)
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "Response encode failed", "error", err, "url", r.URL.Path)
	}
}

func writeErrorMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, session.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, session.ErrLoanNotFound),
		errors.Is(err, session.ErrUserNotFound),
		errors.Is(err, core.ErrInstallmentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrNotFirstRun),
		errors.Is(err, session.ErrUserExists),
		errors.Is(err, session.ErrSelfDelete),
		errors.Is(err, session.ErrSyncInProgress):
		status = http.StatusConflict
	case errors.Is(err, core.ErrInvalidPrincipal),
		errors.Is(err, core.ErrInvalidTerm),
		errors.Is(err, core.ErrEmptyUserName),
		errors.Is(err, core.ErrInvalidPIN),
		errors.Is(err, core.ErrInvalidRole):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNoRemote):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
		writeJSON(w, r, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, r, status, errorResponse{Error: err.Error()})
}
