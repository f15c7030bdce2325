package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/integrity-service/internal/classifier"
	"github.com/SAP-F-2025/integrity-service/internal/events"
	"github.com/SAP-F-2025/integrity-service/internal/repositories"
	"github.com/SAP-F-2025/integrity-service/internal/trainer"
)

// Retrain triggers, recorded on model.retrained events.
const (
	TriggerManual         = "manual"
	TriggerSchedule       = "schedule"
	TriggerLabelCorrected = "label_corrected"
)

// RetrainService feeds labeled attempts to the trainer and announces new models.
type RetrainService struct {
	repo      repositories.Repository
	handle    *classifier.Handle
	trainer   *trainer.Trainer
	publisher events.EventPublisher
	logger    *slog.Logger
	ops       *ServiceLogger
}

func NewRetrainService(
	repo repositories.Repository,
	handle *classifier.Handle,
	locker trainer.Locker,
	cfg trainer.Config,
	publisher events.EventPublisher,
	logger *slog.Logger,
) *RetrainService {
	s := &RetrainService{
		repo:      repo,
		handle:    handle,
		publisher: publisher,
		logger:    logger,
		ops:       NewServiceLogger(logger, LogConfig{Service: "integrity", Component: "retrain"}),
	}
	s.trainer = trainer.New(s, handle, locker, cfg, logger)
	return s
}

// LabeledExamples rebuilds the extractor input of every labeled attempt from
// its raw events, the same way an evaluation does.
func (s *RetrainService) LabeledExamples(ctx context.Context) ([]trainer.Example, error) {
	labeled, err := s.repo.Verdict().ListLabeled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list labeled verdicts: %w", err)
	}
	if len(labeled) == 0 {
		return nil, nil
	}

	ids := make([]uint, len(labeled))
	for i, rec := range labeled {
		ids[i] = rec.AttemptID
	}
	attempts, err := s.repo.Attempt().GetManyWithDetails(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load labeled attempts: %w", err)
	}
	byID := make(map[uint]int, len(attempts))
	for i, a := range attempts {
		byID[a.ID] = i
	}

	examples := make([]trainer.Example, 0, len(labeled))
	for _, rec := range labeled {
		i, ok := byID[rec.AttemptID]
		if !ok || rec.Label == nil {
			continue
		}
		attempt := attempts[i]
		evs, err := s.repo.Event().ListByAttempt(ctx, attempt.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list events of attempt %d: %w", attempt.ID, err)
		}
		_, _, input := analyze(attempt, evs)
		examples = append(examples, trainer.Example{AttemptID: attempt.ID, Input: input, Cheating: *rec.Label})
	}
	return examples, nil
}

// Retrain fits and publishes a new model. The current model stays loaded
// when training is refused or fails.
func (s *RetrainService) Retrain(ctx context.Context, trigger string) (res *trainer.Result, err error) {
	start := time.Now()
	defer func() { s.ops.LogOperation(ctx, "retrain", 0, time.Since(start), err) }()

	res, err = s.trainer.Train(ctx)
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.publisher, s.logger, events.ModelRetrained, events.ModelRetrainedData{
		RunID:    res.RunID,
		Version:  res.Version,
		Trigger:  trigger,
		Samples:  res.Metrics.Samples,
		Accuracy: res.Metrics.Accuracy,
	})
	return res, nil
}

// HandleLabelCorrected is the label.corrected consumer. Refusals that a retry
// cannot fix are acknowledged; anything else is returned for redelivery.
func (s *RetrainService) HandleLabelCorrected(ctx context.Context, data events.LabelCorrectedData) error {
	_, err := s.Retrain(ctx, TriggerLabelCorrected)
	switch {
	case err == nil:
		return nil
	case IsInsufficientData(err), IsConflict(err):
		s.logger.Info("Retrain skipped", "attempt_id", data.AttemptID, "reason", err.Error())
		return nil
	default:
		return err
	}
}

// RunScheduled is the cron entry point.
func (s *RetrainService) RunScheduled() {
	ctx := context.Background()
	if _, err := s.Retrain(ctx, TriggerSchedule); err != nil && !IsInsufficientData(err) && !IsConflict(err) {
		s.logger.Error("Scheduled retrain failed", "error", err)
	}
}

// ModelInfo describes the model currently serving predictions.
func (s *RetrainService) ModelInfo() *ModelInfo {
	m, err := s.handle.Current()
	if err != nil {
		return &ModelInfo{Loaded: false}
	}
	info := &ModelInfo{
		Loaded:       true,
		Version:      m.Version,
		FeatureNames: m.FeatureNames,
		Trees:        len(m.Trees),
		Metrics:      m.Metrics,
	}
	if !m.TrainedAt.IsZero() {
		t := m.TrainedAt
		info.TrainedAt = &t
	}
	return info
}
