package repositories

import (
	"context"

	"github.com/SAP-F-2025/integrity-service/internal/models"
)

// AttemptRepository reads attempts together with the collections the
// extractor needs. It never writes attempts; they belong to the exam service.
type AttemptRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Attempt, error)
	// GetWithDetails preloads the assessment with its questions and the answers.
	GetWithDetails(ctx context.Context, id uint) (*models.Attempt, error)
	GetManyWithDetails(ctx context.Context, ids []uint) ([]*models.Attempt, error)
	List(ctx context.Context, filters AttemptFilters) ([]*models.Attempt, int64, error)
}

// EventRepository stores the immutable activity event stream.
type EventRepository interface {
	CreateBatch(ctx context.Context, events []*models.ActivityEvent) error
	// ListByAttempt returns events ordered by timestamp, then id.
	ListByAttempt(ctx context.Context, attemptID uint) ([]models.ActivityEvent, error)
	CountByAttempt(ctx context.Context, attemptID uint) (int64, error)
}

// AnalysisRepository caches the recomputable per-attempt aggregates.
// Getters return (nil, nil) when no row exists yet.
type AnalysisRepository interface {
	GetActivity(ctx context.Context, attemptID uint) (*models.ActivityAnalysis, error)
	UpsertActivity(ctx context.Context, a *models.ActivityAnalysis) error
	GetAudio(ctx context.Context, attemptID uint) (*models.AudioAnalysis, error)
	UpsertAudio(ctx context.Context, a *models.AudioAnalysis) error
}
