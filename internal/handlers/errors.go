package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/integrity-service/internal/services"
)

func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		details := "must be a positive integer"
		if err != nil {
			details = err.Error()
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: details,
			Code:    "invalid_id",
		})
		return 0
	}
	return uint(id)
}

// handleServiceError maps service errors onto HTTP statuses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, "validation_failed", "Validation failed", err, validationErrors)
		return
	}

	switch {
	case services.IsValidation(err):
		h.RespondWithError(c, http.StatusBadRequest, "validation_failed", "Validation failed", err, err.Error())
	case errors.Is(err, services.ErrVerdictNotFound):
		h.RespondWithError(c, http.StatusNotFound, "verdict_not_found", "Attempt has not been evaluated", err)
	case services.IsNotFound(err):
		h.RespondWithError(c, http.StatusNotFound, "attempt_not_found", "Attempt not found", err)
	case services.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, "training_in_progress", "A retrain is already running", err)
	case services.IsInsufficientData(err):
		h.RespondWithError(c, http.StatusUnprocessableEntity, "insufficient_data", "Not enough labeled attempts to retrain", err, err.Error())
	case services.IsConfiguration(err):
		h.RespondWithError(c, http.StatusServiceUnavailable, "model_unavailable", "Classifier model is not available", err)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "internal_error", "Internal server error", err)
	}
}
