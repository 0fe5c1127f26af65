package handlers

import (
	"net/http"

	"github.com/upb/dino-games/backend/services"
	"github.com/upb/dino-games/backend/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Only the domain
// message reaches the client; wrapped causes are logged.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		details = nil
	}

	var writeErr error
	switch {
	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, services.GetErrorMessage(err, "Resource not found"))

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, services.GetErrorMessage(err, "Invalid request"), details)

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, services.GetErrorMessage(err, "Unauthorized"))

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, services.GetErrorMessage(err, "Forbidden"))

	case services.IsInternalError(err):
		// Log internal errors but return only the domain message
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, services.GetErrorMessage(err, "An internal error occurred"))

	default:
		logger.Error("unhandled error type", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles errors from request decoding and validation
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var writeErr error
	if utils.IsValidationError(err) {
		writeErr = utils.WriteBadRequest(w, "Validation failed", utils.FieldDetails(err))
	} else {
		writeErr = utils.WriteBadRequest(w, "Invalid request body", nil)
	}
	if writeErr != nil {
		logger.Error("failed to write validation error response", zap.Error(writeErr))
	}
}
