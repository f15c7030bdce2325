package models

import (
	"time"

	"gorm.io/datatypes"
)

type LabelSource string

const (
	LabelProfessor LabelSource = "professor"
	LabelBootstrap LabelSource = "bootstrap"
)

// VerdictRecord is the persisted outcome of an evaluation plus any human review.
type VerdictRecord struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	AttemptID     uint           `json:"attempt_id" gorm:"uniqueIndex;not null"`
	Cheating      bool           `json:"cheating"`
	Probability   *float64       `json:"probability"`
	Certainty     string         `json:"certainty" gorm:"size:16"`
	RuleTriggered bool           `json:"rule_triggered"`
	Reason        string         `json:"reason" gorm:"type:text"`
	TopFactors    datatypes.JSON `json:"top_factors"`
	ModelVersion  string         `json:"model_version" gorm:"size:64"`
	EvaluatedAt   time.Time      `json:"evaluated_at"`

	// Review
	FinalVerdict  *bool      `json:"final_verdict"`
	ReviewedBy    *uint      `json:"reviewed_by"`
	ReviewedAt    *time.Time `json:"reviewed_at"`
	ReviewComment string     `json:"review_comment" gorm:"type:text"`

	// Ground truth for training; true means cheating.
	Label       *bool       `json:"label" gorm:"index"`
	LabelSource LabelSource `json:"label_source" gorm:"size:16"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Attempt Attempt `json:"-" gorm:"foreignKey:AttemptID"`
}

func (VerdictRecord) TableName() string {
	return "verdicts"
}

// AllModels lists every table owned by the service, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Assessment{},
		&Question{},
		&Attempt{},
		&ActivityEvent{},
		&Answer{},
		&ActivityAnalysis{},
		&AudioAnalysis{},
		&VerdictRecord{},
	}
}
