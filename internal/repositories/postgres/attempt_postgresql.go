package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/integrity-service/internal/models"
	"github.com/SAP-F-2025/integrity-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetWithDetails(ctx context.Context, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.detailed(ctx).First(&attempt, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetManyWithDetails(ctx context.Context, ids []uint) ([]*models.Attempt, error) {
	var attempts []*models.Attempt
	if len(ids) == 0 {
		return attempts, nil
	}
	if err := a.detailed(ctx).Where("id IN ?", ids).Order("id").Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	var attempts []*models.Attempt
	var total int64

	// apply filter first
	query := a.db.WithContext(ctx).Model(&models.Attempt{})
	query = a.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset,
		"created_at", "started_at", "finished_at")

	if err := query.Preload("Assessment").Find(&attempts).Error; err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

func (a *AttemptPostgreSQL) detailed(ctx context.Context) *gorm.DB {
	return a.db.WithContext(ctx).
		Preload("Assessment").
		Preload("Assessment.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("\"order\" ASC, id ASC")
		}).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		})
}
