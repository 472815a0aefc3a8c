package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apperrors "carpool-backend/pkg/errors"
)

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	respondJSON(w, logger, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}

// respondAppError maps a service error to its HTTP status. Unknown error
// values are reported as opaque internal failures.
func respondAppError(w http.ResponseWriter, logger *zap.Logger, err error) {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		respondError(w, logger, appErr.HTTPStatus, appErr.Message)
		return
	}
	logger.Error("unhandled error", zap.Error(err))
	respondError(w, logger, http.StatusInternalServerError, "Internal server error")
}
