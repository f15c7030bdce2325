package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/integrity-service/internal/models"
	"github.com/SAP-F-2025/integrity-service/internal/repositories"
)

type VerdictPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewVerdictPostgreSQL(db *gorm.DB) repositories.VerdictRepository {
	return &VerdictPostgreSQL{db: db, helpers: NewSharedHelpers(db)}
}

var evaluationColumns = []string{
	"cheating", "probability", "certainty", "rule_triggered", "reason",
	"top_factors", "model_version", "evaluated_at", "updated_at",
}

func (r *VerdictPostgreSQL) Save(ctx context.Context, v *models.VerdictRecord) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}},
		DoUpdates: clause.AssignmentColumns(evaluationColumns),
	}).Create(v).Error
}

func (r *VerdictPostgreSQL) GetByAttempt(ctx context.Context, attemptID uint) (*models.VerdictRecord, error) {
	var v models.VerdictRecord
	if err := r.db.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&v).Error; err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (r *VerdictPostgreSQL) List(ctx context.Context, filters repositories.VerdictFilters) ([]*models.VerdictRecord, int64, error) {
	var out []*models.VerdictRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.VerdictRecord{})
	if filters.Cheating != nil {
		query = query.Where("cheating = ?", *filters.Cheating)
	}
	if filters.RuleTriggered != nil {
		query = query.Where("rule_triggered = ?", *filters.RuleTriggered)
	}
	if filters.Reviewed != nil {
		if *filters.Reviewed {
			query = query.Where("reviewed_at IS NOT NULL")
		} else {
			query = query.Where("reviewed_at IS NULL")
		}
	}
	if filters.LabelSource != nil {
		query = query.Where("label_source = ?", *filters.LabelSource)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = r.helpers.ApplyPaginationAndSort(query, "evaluated_at", "desc", filters.Limit, filters.Offset, "evaluated_at")
	if err := query.Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *VerdictPostgreSQL) ApplyReview(ctx context.Context, attemptID uint, review repositories.ReviewUpdate) (*models.VerdictRecord, error) {
	var out models.VerdictRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("attempt_id = ?", attemptID).First(&out).Error; err != nil {
			return notFound(err)
		}
		updates := map[string]interface{}{
			"final_verdict":  review.FinalVerdict,
			"reviewed_by":    review.ReviewerID,
			"reviewed_at":    review.ReviewedAt,
			"review_comment": review.Comment,
		}
		if review.Label != nil {
			updates["label"] = *review.Label
			updates["label_source"] = models.LabelProfessor
		}
		if err := tx.Model(&out).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&out, out.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *VerdictPostgreSQL) SetLabel(ctx context.Context, attemptID uint, label bool, source models.LabelSource) error {
	res := r.db.WithContext(ctx).Model(&models.VerdictRecord{}).
		Where("attempt_id = ?", attemptID).
		Updates(map[string]interface{}{"label": label, "label_source": source})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *VerdictPostgreSQL) ListLabeled(ctx context.Context) ([]*models.VerdictRecord, error) {
	var out []*models.VerdictRecord
	if err := r.db.WithContext(ctx).Where("label IS NOT NULL").Order("attempt_id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *VerdictPostgreSQL) Stats(ctx context.Context) (*repositories.VerdictStats, error) {
	var s repositories.VerdictStats
	counts := []struct {
		dst   *int64
		query string
		args  []interface{}
	}{
		{&s.Total, "1 = 1", nil},
		{&s.Cheating, "cheating = ?", []interface{}{true}},
		{&s.RuleTriggered, "rule_triggered = ?", []interface{}{true}},
		{&s.Reviewed, "reviewed_at IS NOT NULL", nil},
		{&s.Labeled, "label IS NOT NULL", nil},
	}
	for _, c := range counts {
		if err := r.db.WithContext(ctx).Model(&models.VerdictRecord{}).
			Where(c.query, c.args...).Count(c.dst).Error; err != nil {
			return nil, err
		}
	}
	return &s, nil
}
