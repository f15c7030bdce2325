package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/integrity-service/internal/repositories"
	"github.com/SAP-F-2025/integrity-service/internal/services"
	"github.com/SAP-F-2025/integrity-service/internal/utils"
)

// EvaluationService is what the attempt routes need from the service layer.
type EvaluationService interface {
	Evaluate(ctx context.Context, attemptID uint) (*services.VerdictResponse, error)
	GetVerdict(ctx context.Context, attemptID uint) (*services.VerdictResponse, error)
	ListVerdicts(ctx context.Context, filters repositories.VerdictFilters) ([]*services.VerdictResponse, int64, error)
	Stats(ctx context.Context) (*repositories.VerdictStats, error)
	Features(ctx context.Context, attemptID uint) (*services.FeaturesResponse, error)
	IngestEvents(ctx context.Context, attemptID uint, req *services.IngestEventsRequest) (*services.IngestResponse, error)
}

type ReviewService interface {
	ApplyReview(ctx context.Context, attemptID uint, req *services.ReviewRequest) (*services.VerdictResponse, error)
}

type AttemptHandler struct {
	BaseHandler
	evaluation EvaluationService
	review     ReviewService
}

func NewAttemptHandler(evaluation EvaluationService, review ReviewService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler: NewBaseHandler(logger),
		evaluation:  evaluation,
		review:      review,
	}
}

// Evaluate computes and stores the verdict of an attempt
// @Router /attempts/{id}/evaluate [post]
func (h *AttemptHandler) Evaluate(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Evaluating attempt", "attempt_id", attemptID)

	result, err := h.evaluation.Evaluate(c.Request.Context(), attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetVerdict returns the stored verdict of an attempt
// @Router /attempts/{id}/verdict [get]
func (h *AttemptHandler) GetVerdict(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	result, err := h.evaluation.GetVerdict(c.Request.Context(), attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetFeatures returns the feature vectors of an attempt
// @Router /attempts/{id}/features [get]
func (h *AttemptHandler) GetFeatures(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	result, err := h.evaluation.Features(c.Request.Context(), attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// IngestEvents appends collector events to an attempt
// @Router /attempts/{id}/events [post]
func (h *AttemptHandler) IngestEvents(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req services.IngestEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
			Code:    "invalid_payload",
		})
		return
	}

	h.LogRequest(c, "Ingesting events", "attempt_id", attemptID, "count", len(req.Events))

	result, err := h.evaluation.IngestEvents(c.Request.Context(), attemptID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Review records a professor's final decision
// @Router /attempts/{id}/review [post]
func (h *AttemptHandler) Review(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req services.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
			Code:    "invalid_payload",
		})
		return
	}

	h.LogRequest(c, "Reviewing attempt", "attempt_id", attemptID, "reviewer_id", req.ReviewerID)

	result, err := h.review.ApplyReview(c.Request.Context(), attemptID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type listVerdictsQuery struct {
	Cheating      *bool `form:"cheating"`
	RuleTriggered *bool `form:"rule_triggered"`
	Reviewed      *bool `form:"reviewed"`
	Limit         int   `form:"limit"`
	Offset        int   `form:"offset"`
}

// ListVerdicts pages through stored verdicts
// @Router /verdicts [get]
func (h *AttemptHandler) ListVerdicts(c *gin.Context) {
	var q listVerdictsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
			Code:    "invalid_query",
		})
		return
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}

	items, total, err := h.evaluation.ListVerdicts(c.Request.Context(), repositories.VerdictFilters{
		Cheating:      q.Cheating,
		RuleTriggered: q.RuleTriggered,
		Reviewed:      q.Reviewed,
		Limit:         q.Limit,
		Offset:        q.Offset,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Data: items, Total: total, Limit: q.Limit, Offset: q.Offset})
}

// Stats summarises stored verdicts
// @Router /verdicts/stats [get]
func (h *AttemptHandler) Stats(c *gin.Context) {
	stats, err := h.evaluation.Stats(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
