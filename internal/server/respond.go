package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wsio/wsio/internal/errs"
	"github.com/wsio/wsio/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the unified error kinds onto HTTP statuses. Backend
// and exchange failures surface as bad gateway: the request was valid,
// the storage side was not.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var e *errs.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case errs.ErrKindInvalidInput:
			status = http.StatusBadRequest
		case errs.ErrKindPermissionDenied:
			status = http.StatusForbidden
		case errs.ErrKindNotFound, errs.ErrKindNoMatchingRoot:
			status = http.StatusNotFound
		case errs.ErrKindDuplicate, errs.ErrKindConflict:
			status = http.StatusConflict
		case errs.ErrKindConnectionFailed, errs.ErrKindCredentialExchange:
			status = http.StatusBadGateway
		case errs.ErrKindTimeout:
			status = http.StatusGatewayTimeout
		}
	}

	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).With().
			Str("path", r.URL.Path).
			Err(err).
			Logger().
			Error("request failed")
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "malformed request body", err)
	}
	return nil
}
