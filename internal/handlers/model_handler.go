package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/integrity-service/internal/services"
	"github.com/SAP-F-2025/integrity-service/internal/trainer"
	"github.com/SAP-F-2025/integrity-service/internal/utils"
)

type RetrainService interface {
	Retrain(ctx context.Context, trigger string) (*trainer.Result, error)
	ModelInfo() *services.ModelInfo
}

type ModelHandler struct {
	BaseHandler
	retrain RetrainService
}

func NewModelHandler(retrain RetrainService, logger utils.Logger) *ModelHandler {
	return &ModelHandler{
		BaseHandler: NewBaseHandler(logger),
		retrain:     retrain,
	}
}

// GetModel describes the classifier currently serving predictions
// @Router /model [get]
func (h *ModelHandler) GetModel(c *gin.Context) {
	c.JSON(http.StatusOK, h.retrain.ModelInfo())
}

// Retrain fits a new classifier from every labeled attempt and swaps it in
// @Router /model/retrain [post]
func (h *ModelHandler) Retrain(c *gin.Context) {
	h.LogRequest(c, "Retraining classifier")

	result, err := h.retrain.Retrain(c.Request.Context(), services.TriggerManual)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
