package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/medifit/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, kind apperr.Kind, details string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Kind:    string(kind),
		Details: details,
	})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure answers with the error's kind and code. Anything that is not a
// domain error is logged in full and answered generically.
func writeFailure(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	if e, ok := apperr.As(err); ok && e.Kind != apperr.KindInternal {
		writeError(w, statusFor(e.Kind), e.Code, e.Kind, e.Message)
		return
	}

	log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal_error", apperr.KindInternal, "internal server error")
}

var errInvalidBody = apperr.Validation("invalid_request_body", "could not parse JSON")

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidBody
	}
	return nil
}
