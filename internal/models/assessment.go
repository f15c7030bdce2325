package models

import (
	"time"

	"gorm.io/gorm"
)

type AssessmentType string

const (
	AssessmentExam     AssessmentType = "exam"
	AssessmentSeminar  AssessmentType = "seminar"
	AssessmentTraining AssessmentType = "training"
)

// ModalityFlags are the sensing channels enabled for a test. A signal collected
// while its channel is off is treated as if it never happened.
type ModalityFlags struct {
	CameraEnabled     bool `json:"camera_enabled" gorm:"default:false"`     // webcam face/gaze/phone detection
	AudioEnabled      bool `json:"audio_enabled" gorm:"default:false"`      // voice activity analysis
	ProctoringEnabled bool `json:"proctoring_enabled" gorm:"default:false"` // keyboard/focus lockdown telemetry
}

// Any reports whether at least one modality is on.
func (m ModalityFlags) Any() bool {
	return m.CameraEnabled || m.AudioEnabled || m.ProctoringEnabled
}

type Assessment struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	Title           string         `json:"title" gorm:"not null;size:200;index"`
	Type            AssessmentType `json:"type" gorm:"size:20;default:exam"`
	DurationMinutes int            `json:"duration_minutes" gorm:"default:30"`
	AllowCopyPaste  bool           `json:"allow_copy_paste" gorm:"default:false"`

	Modality ModalityFlags `json:"modality" gorm:"embedded"`

	CreatedBy uint           `json:"created_by" gorm:"index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question `json:"questions" gorm:"foreignKey:AssessmentID"`
	Attempts  []Attempt  `json:"attempts,omitempty" gorm:"foreignKey:AssessmentID"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// RequiresWriting is true when at least one question expects free text or code.
func (a *Assessment) RequiresWriting() bool {
	for _, q := range a.Questions {
		if q.Type.IsWriting() {
			return true
		}
	}
	return false
}
