package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/integrity-service/internal/models"
	"github.com/SAP-F-2025/integrity-service/internal/repositories"
)

const eventBatchSize = 200

type EventPostgreSQL struct {
	db *gorm.DB
}

func NewEventPostgreSQL(db *gorm.DB) repositories.EventRepository {
	return &EventPostgreSQL{db: db}
}

func (e *EventPostgreSQL) CreateBatch(ctx context.Context, events []*models.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}
	return e.db.WithContext(ctx).CreateInBatches(events, eventBatchSize).Error
}

func (e *EventPostgreSQL) ListByAttempt(ctx context.Context, attemptID uint) ([]models.ActivityEvent, error) {
	var events []models.ActivityEvent
	if err := e.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("timestamp ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (e *EventPostgreSQL) CountByAttempt(ctx context.Context, attemptID uint) (int64, error) {
	var n int64
	err := e.db.WithContext(ctx).Model(&models.ActivityEvent{}).Where("attempt_id = ?", attemptID).Count(&n).Error
	return n, err
}
