package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/integrity-service/internal/cache"
	"github.com/SAP-F-2025/integrity-service/internal/events"
	"github.com/SAP-F-2025/integrity-service/internal/repositories"
	"github.com/SAP-F-2025/integrity-service/internal/validator"
)

// ReviewService records professor decisions on evaluated attempts.
type ReviewService struct {
	repo      repositories.Repository
	cache     cache.CacheService
	publisher events.EventPublisher
	validator *validator.Validator
	logger    *slog.Logger
	ops       *ServiceLogger
	now       func() time.Time
}

func NewReviewService(
	repo repositories.Repository,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	validator *validator.Validator,
	logger *slog.Logger,
) *ReviewService {
	if cacheService == nil {
		cacheService = cache.NoopCache{}
	}
	return &ReviewService{
		repo:      repo,
		cache:     cacheService,
		publisher: publisher,
		validator: validator,
		logger:    logger,
		ops:       NewServiceLogger(logger, LogConfig{Service: "integrity", Component: "review"}),
		now:       time.Now,
	}
}

// ApplyReview stores the reviewer's final verdict. When the reviewer overturns
// a model verdict the attempt becomes a training example and a
// label.corrected command is published; retraining is left to its consumer.
// Rule verdicts are never relabeled: the rules, not the model, decided them.
func (s *ReviewService) ApplyReview(ctx context.Context, attemptID uint, req *ReviewRequest) (resp *VerdictResponse, err error) {
	start := time.Now()
	defer func() { s.ops.LogOperation(ctx, "apply_review", attemptID, time.Since(start), err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	current, err := s.repo.Verdict().GetByAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrVerdictNotFound
		}
		return nil, fmt.Errorf("failed to get verdict: %w", err)
	}

	final := *req.FinalVerdict
	overturned := !current.RuleTriggered && final != current.Cheating

	update := repositories.ReviewUpdate{
		FinalVerdict: final,
		ReviewerID:   req.ReviewerID,
		Comment:      req.Comment,
		ReviewedAt:   s.now().UTC(),
	}
	if overturned {
		update.Label = &final
	}

	updated, err := s.repo.Verdict().ApplyReview(ctx, attemptID, update)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrVerdictNotFound
		}
		return nil, fmt.Errorf("failed to apply review: %w", err)
	}

	if err := s.cache.Delete(ctx, cache.VerdictKey(attemptID)); err != nil {
		s.logger.Warn("Failed to evict cached verdict", "attempt_id", attemptID, "error", err)
	}

	publishEvent(ctx, s.publisher, s.logger, events.VerdictReviewed, events.VerdictReviewedData{
		AttemptID:    attemptID,
		ReviewerID:   req.ReviewerID,
		FinalVerdict: final,
		Overturned:   overturned,
		Comment:      req.Comment,
	})
	if overturned {
		s.logger.Info("Reviewer overturned model verdict",
			"attempt_id", attemptID,
			"model_cheating", current.Cheating,
			"final_verdict", final)
		publishEvent(ctx, s.publisher, s.logger, events.LabelCorrected, events.LabelCorrectedData{
			AttemptID:  attemptID,
			ReviewerID: req.ReviewerID,
			Label:      final,
		})
	}

	return toVerdictResponse(updated), nil
}
