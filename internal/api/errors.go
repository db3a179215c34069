package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleServiceError maps engine error kinds to HTTP statuses. Unclassified errors are
// logged and reported as internal errors without their text.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var e *appointment.Error
	if !errors.As(err, &e) {
		logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeError(w, statusForKind(e.Kind), e.Kind.String(), e.Msg)
}

func statusForKind(k appointment.Kind) int {
	switch k {
	case appointment.KindNotFound:
		return http.StatusNotFound
	case appointment.KindUnauthorized:
		return http.StatusForbidden
	case appointment.KindValidation:
		return http.StatusBadRequest
	case appointment.KindConflict:
		return http.StatusConflict
	case appointment.KindBusinessRule:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
