package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/integrity-service/internal/utils"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
	modelHandler   *ModelHandler
}

func NewHandlerManager(
	evaluation EvaluationService,
	review ReviewService,
	retrain RetrainService,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler: NewAttemptHandler(evaluation, review, logger),
		modelHandler:   NewModelHandler(retrain, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/:id/events", hm.attemptHandler.IngestEvents)
			attempts.POST("/:id/evaluate", hm.attemptHandler.Evaluate)
			attempts.GET("/:id/verdict", hm.attemptHandler.GetVerdict)
			attempts.GET("/:id/features", hm.attemptHandler.GetFeatures)
			attempts.POST("/:id/review", hm.attemptHandler.Review)
		}

		verdicts := v1.Group("/verdicts")
		{
			verdicts.GET("", hm.attemptHandler.ListVerdicts)
			verdicts.GET("/stats", hm.attemptHandler.Stats)
		}

		model := v1.Group("/model")
		{
			model.GET("", hm.modelHandler.GetModel)
			model.POST("/retrain", hm.modelHandler.Retrain)
		}
	}
}

// HealthCheck reports liveness and whether a model is loaded. A missing
// model does not make the service unhealthy: rule and clean-session
// verdicts still work.
func (hm *HandlerManager) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"service":      "integrity-service",
		"model_loaded": hm.modelHandler.retrain.ModelInfo().Loaded,
	})
}
