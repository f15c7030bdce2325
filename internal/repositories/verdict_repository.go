package repositories

import (
	"context"

	"github.com/SAP-F-2025/integrity-service/internal/models"
)

// VerdictRepository persists evaluation outcomes and professor reviews.
type VerdictRepository interface {
	// Save upserts the evaluation columns by attempt; review and label columns
	// of an existing row are left untouched.
	Save(ctx context.Context, v *models.VerdictRecord) error
	GetByAttempt(ctx context.Context, attemptID uint) (*models.VerdictRecord, error)
	List(ctx context.Context, filters VerdictFilters) ([]*models.VerdictRecord, int64, error)
	ApplyReview(ctx context.Context, attemptID uint, review ReviewUpdate) (*models.VerdictRecord, error)
	SetLabel(ctx context.Context, attemptID uint, label bool, source models.LabelSource) error
	// ListLabeled returns every record carrying a training label.
	ListLabeled(ctx context.Context) ([]*models.VerdictRecord, error)
	Stats(ctx context.Context) (*VerdictStats, error)
}
