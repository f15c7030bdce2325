package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/integrity-service/internal/models"
	"github.com/SAP-F-2025/integrity-service/internal/repositories"
)

type AnalysisPostgreSQL struct {
	db *gorm.DB
}

func NewAnalysisPostgreSQL(db *gorm.DB) repositories.AnalysisRepository {
	return &AnalysisPostgreSQL{db: db}
}

func (a *AnalysisPostgreSQL) GetActivity(ctx context.Context, attemptID uint) (*models.ActivityAnalysis, error) {
	var row models.ActivityAnalysis
	err := a.db.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (a *AnalysisPostgreSQL) UpsertActivity(ctx context.Context, row *models.ActivityAnalysis) error {
	return a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "attempt_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"esc_pressed", "second_screen", "tab_switches", "window_blurs", "copy_paste_events",
			"total_key_presses", "average_key_delay", "total_chars", "total_focus_lost",
			"is_suspicious", "updated_at",
		}),
	}).Create(row).Error
}

func (a *AnalysisPostgreSQL) GetAudio(ctx context.Context, attemptID uint) (*models.AudioAnalysis, error) {
	var row models.AudioAnalysis
	err := a.db.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (a *AnalysisPostgreSQL) UpsertAudio(ctx context.Context, row *models.AudioAnalysis) error {
	return a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "attempt_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"voiced_seconds", "voiced_ratio", "voice_no_mouth_count", "too_much_talking", "updated_at",
		}),
	}).Create(row).Error
}
