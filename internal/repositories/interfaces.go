package repositories

import (
	"errors"
	"time"

	"github.com/SAP-F-2025/integrity-service/internal/models"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

// ===== SHARED FILTER STRUCTS =====

type AttemptFilters struct {
	AssessmentID *uint      `json:"assessment_id"`
	StudentID    *uint      `json:"student_id"`
	FinishedOnly bool       `json:"finished_only"`
	DateFrom     *time.Time `json:"date_from"`
	DateTo       *time.Time `json:"date_to"`
	Limit        int        `json:"limit"`
	Offset       int        `json:"offset"`
	SortBy       string     `json:"sort_by"`    // "created_at", "started_at", "finished_at"
	SortOrder    string     `json:"sort_order"` // "asc", "desc"
}

type VerdictFilters struct {
	Cheating      *bool               `json:"cheating"`
	RuleTriggered *bool               `json:"rule_triggered"`
	Reviewed      *bool               `json:"reviewed"`
	LabelSource   *models.LabelSource `json:"label_source"`
	Limit         int                 `json:"limit"`
	Offset        int                 `json:"offset"`
}

// ===== SHARED HELPER STRUCTS =====

// ReviewUpdate is a professor's decision on an evaluated attempt.
type ReviewUpdate struct {
	FinalVerdict bool
	ReviewerID   uint
	Comment      string
	ReviewedAt   time.Time
	// Label, when set, becomes the attempt's training label.
	Label *bool
}

// ===== SHARED STATISTICS STRUCTS =====

type VerdictStats struct {
	Total         int64 `json:"total"`
	Cheating      int64 `json:"cheating"`
	RuleTriggered int64 `json:"rule_triggered"`
	Reviewed      int64 `json:"reviewed"`
	Labeled       int64 `json:"labeled"`
}

// Repository groups every store the services use.
type Repository interface {
	Attempt() AttemptRepository
	Event() EventRepository
	Analysis() AnalysisRepository
	Verdict() VerdictRepository
}
