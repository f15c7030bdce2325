package models

import "time"

// Attempt is one student's run of one assessment.
type Attempt struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	AssessmentID uint       `json:"assessment_id" gorm:"not null;index"`
	StudentID    uint       `json:"student_id" gorm:"not null;index"`
	AttemptNo    int        `json:"attempt_no" gorm:"default:1"`
	StartedAt    *time.Time `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Assessment Assessment      `json:"assessment" gorm:"foreignKey:AssessmentID"`
	Events     []ActivityEvent `json:"events,omitempty" gorm:"foreignKey:AttemptID"`
	Answers    []Answer        `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// IsClosed reports whether the attempt was submitted.
func (a *Attempt) IsClosed() bool {
	return a.FinishedAt != nil
}
