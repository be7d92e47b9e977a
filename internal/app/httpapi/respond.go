package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/pactpoint/backend/internal/errors"
	"github.com/pactpoint/backend/pkg/logger"
)

const maxBodyBytes = 1 << 20

func decodeJSON(body io.Reader, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

type errorBody struct {
	Code    apperrors.Code         `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeError maps a service error onto the wire; anything without a code is
// reported as an opaque internal error.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	if se := apperrors.GetServiceError(err); se != nil {
		if se.Code == apperrors.CodeInternal && log != nil {
			log.WithError(err).Error("internal error")
		}
		writeJSON(w, se.HTTPStatus, map[string]errorBody{"error": {
			Code:    se.Code,
			Message: se.Message,
			Details: se.Details,
		}})
		return
	}
	if log != nil {
		log.WithError(err).Error("unhandled error")
	}
	writeJSON(w, http.StatusInternalServerError, map[string]errorBody{"error": {
		Code:    apperrors.CodeInternal,
		Message: "internal server error",
	}})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {
		Code:    apperrors.CodeValidationRejected,
		Message: message,
	}})
}
