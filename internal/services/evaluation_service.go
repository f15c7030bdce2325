package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/integrity-service/internal/cache"
	"github.com/SAP-F-2025/integrity-service/internal/events"
	"github.com/SAP-F-2025/integrity-service/internal/features"
	"github.com/SAP-F-2025/integrity-service/internal/models"
	"github.com/SAP-F-2025/integrity-service/internal/repositories"
	"github.com/SAP-F-2025/integrity-service/internal/validator"
	"github.com/SAP-F-2025/integrity-service/internal/verdict"
)

const DefaultVerdictTTL = 24 * time.Hour

// EvaluationService turns an attempt's stored telemetry into a persisted verdict.
type EvaluationService struct {
	repo      repositories.Repository
	composer  *verdict.Composer
	cache     cache.CacheService
	ttl       time.Duration
	publisher events.EventPublisher
	validator *validator.Validator
	logger    *slog.Logger
	ops       *ServiceLogger
	now       func() time.Time
}

func NewEvaluationService(
	repo repositories.Repository,
	composer *verdict.Composer,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	validator *validator.Validator,
	logger *slog.Logger,
) *EvaluationService {
	if cacheService == nil {
		cacheService = cache.NoopCache{}
	}
	return &EvaluationService{
		repo:      repo,
		composer:  composer,
		cache:     cacheService,
		ttl:       DefaultVerdictTTL,
		publisher: publisher,
		validator: validator,
		logger:    logger,
		ops:       NewServiceLogger(logger, LogConfig{Service: "integrity", Component: "evaluation"}),
		now:       time.Now,
	}
}

// attemptData is everything read for one attempt.
type attemptData struct {
	attempt *models.Attempt
	events  []models.ActivityEvent
	input   features.Input
}

// load reads the attempt, refreshes its aggregates from the raw events and
// builds the extractor input. Failing to store the aggregates is logged only;
// they are recomputed on every evaluation anyway.
func (s *EvaluationService) load(ctx context.Context, attemptID uint) (*attemptData, error) {
	attempt, err := s.repo.Attempt().GetWithDetails(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	evs, err := s.repo.Event().ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	activity, audio, input := analyze(attempt, evs)
	if err := s.repo.Analysis().UpsertActivity(ctx, &activity); err != nil {
		s.logger.Warn("Failed to store activity analysis", "attempt_id", attemptID, "error", err)
	}
	if err := s.repo.Analysis().UpsertAudio(ctx, &audio); err != nil {
		s.logger.Warn("Failed to store audio analysis", "attempt_id", attemptID, "error", err)
	}
	return &attemptData{attempt: attempt, events: evs, input: input}, nil
}

// analyze recomputes both aggregates and builds the extractor input. The
// audio aggregate is only trusted when the audio modality is on.
func analyze(attempt *models.Attempt, evs []models.ActivityEvent) (models.ActivityAnalysis, models.AudioAnalysis, features.Input) {
	activity := features.RecomputeActivity(attempt.ID, evs, attempt.Answers, attempt.Assessment.Modality.ProctoringEnabled)
	audio := features.RecomputeAudio(attempt.ID, evs, features.Duration(attempt, evs))

	var audioRow *models.AudioAnalysis
	if attempt.Assessment.Modality.AudioEnabled {
		audioRow = &audio
	}
	return activity, audio, features.NewInput(attempt, evs, &activity, audioRow)
}

// Evaluate decides one attempt, stores the verdict and announces it.
// A missing model is returned as is so callers can tell it apart.
func (s *EvaluationService) Evaluate(ctx context.Context, attemptID uint) (resp *VerdictResponse, err error) {
	start := time.Now()
	defer func() { s.ops.LogOperation(ctx, "evaluate", attemptID, time.Since(start), err) }()

	data, err := s.load(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	extraction := features.Extract(data.input)
	v, err := s.composer.Compose(data.input.Modality, extraction.Flatten(), data.events)
	if err != nil {
		return nil, err
	}

	factors, err := json.Marshal(v.TopFactors)
	if err != nil {
		return nil, fmt.Errorf("failed to encode top factors: %w", err)
	}
	rec := &models.VerdictRecord{
		AttemptID:     attemptID,
		Cheating:      v.Cheating,
		Probability:   v.Probability,
		Certainty:     string(v.Certainty),
		RuleTriggered: v.RuleTriggered,
		Reason:        v.Reason,
		TopFactors:    factors,
		ModelVersion:  v.ModelVersion,
		EvaluatedAt:   s.now().UTC(),
	}
	if err := s.repo.Verdict().Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save verdict: %w", err)
	}

	// Re-read so review and label columns of an earlier verdict come along.
	stored, err := s.repo.Verdict().GetByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload verdict: %w", err)
	}
	resp = toVerdictResponse(stored)

	if err := s.cache.Set(ctx, cache.VerdictKey(attemptID), resp, s.ttl); err != nil {
		s.logger.Warn("Failed to cache verdict", "attempt_id", attemptID, "error", err)
	}
	s.publish(ctx, events.VerdictIssued, events.VerdictIssuedData{
		AttemptID:     attemptID,
		Cheating:      v.Cheating,
		Probability:   v.Probability,
		Certainty:     string(v.Certainty),
		RuleTriggered: v.RuleTriggered,
		Reason:        v.Reason,
		ModelVersion:  v.ModelVersion,
	})
	return resp, nil
}

// GetVerdict returns the stored verdict, from cache when possible.
func (s *EvaluationService) GetVerdict(ctx context.Context, attemptID uint) (*VerdictResponse, error) {
	var cached VerdictResponse
	err := s.cache.Get(ctx, cache.VerdictKey(attemptID), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Verdict cache unavailable", "attempt_id", attemptID, "error", err)
	}

	rec, err := s.repo.Verdict().GetByAttempt(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrVerdictNotFound
		}
		return nil, fmt.Errorf("failed to get verdict: %w", err)
	}
	resp := toVerdictResponse(rec)
	if err := s.cache.Set(ctx, cache.VerdictKey(attemptID), resp, s.ttl); err != nil {
		s.logger.Warn("Failed to cache verdict", "attempt_id", attemptID, "error", err)
	}
	return resp, nil
}

// ListVerdicts pages through stored verdicts.
func (s *EvaluationService) ListVerdicts(ctx context.Context, filters repositories.VerdictFilters) ([]*VerdictResponse, int64, error) {
	recs, total, err := s.repo.Verdict().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list verdicts: %w", err)
	}
	out := make([]*VerdictResponse, len(recs))
	for i, rec := range recs {
		out[i] = toVerdictResponse(rec)
	}
	return out, total, nil
}

func (s *EvaluationService) Stats(ctx context.Context) (*repositories.VerdictStats, error) {
	return s.repo.Verdict().Stats(ctx)
}

// Features shows reviewers what the engine saw for an attempt.
func (s *EvaluationService) Features(ctx context.Context, attemptID uint) (*FeaturesResponse, error) {
	data, err := s.load(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	extraction := features.Extract(data.input)
	return &FeaturesResponse{
		AttemptID: attemptID,
		Duration:  features.Duration(data.attempt, data.events),
		Features:  extraction.Features,
		Raw:       extraction.Raw,
		Model:     features.AddDerived(extraction.Flatten()),
	}, nil
}

// IngestEvents appends collector events to an attempt. Any stored verdict is
// evicted from the cache since it no longer reflects the stream.
func (s *EvaluationService) IngestEvents(ctx context.Context, attemptID uint, req *IngestEventsRequest) (resp *IngestResponse, err error) {
	start := time.Now()
	defer func() { s.ops.LogOperation(ctx, "ingest_events", attemptID, time.Since(start), err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	rows := make([]*models.ActivityEvent, len(req.Events))
	for i, in := range req.Events {
		rows[i] = &models.ActivityEvent{
			AttemptID:    attemptID,
			Type:         in.Type,
			Timestamp:    in.Timestamp.UTC(),
			PressedKey:   in.PressedKey,
			KeyDelay:     in.KeyDelay,
			Message:      in.Message,
			AnomalyScore: in.AnomalyScore,
			Value:        in.Value,
			QuestionID:   in.QuestionID,
			Metadata:     []byte(in.Metadata),
		}
	}
	if errs := s.validator.Events().ValidateBatch(attempt, rows); len(errs) > 0 {
		return nil, errs
	}

	if err := s.repo.Event().CreateBatch(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to store events: %w", err)
	}
	if err := s.cache.Delete(ctx, cache.VerdictKey(attemptID)); err != nil {
		s.logger.Warn("Failed to evict cached verdict", "attempt_id", attemptID, "error", err)
	}

	total, err := s.repo.Event().CountByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	return &IngestResponse{AttemptID: attemptID, Accepted: len(rows), Total: total}, nil
}

// publish is fire-and-forget: a broker outage never fails an evaluation.
func (s *EvaluationService) publish(ctx context.Context, eventType events.EventType, data interface{}) {
	publishEvent(ctx, s.publisher, s.logger, eventType, data)
}

func publishEvent(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, eventType events.EventType, data interface{}) {
	if publisher == nil {
		return
	}
	event, err := events.NewEvent(eventType, data)
	if err != nil {
		logger.Error("Failed to build event", "event_type", eventType, "error", err)
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish event", "event_type", eventType, "error", err)
	}
}
