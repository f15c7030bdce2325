package models

import (
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
)

type Answer struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	AttemptID       uint           `json:"attempt_id" gorm:"not null;index"`
	QuestionID      uint           `json:"question_id" gorm:"not null;index"`
	Text            *string        `json:"text" gorm:"type:text"`
	SelectedOptions datatypes.JSON `json:"selected_options"`
	TimeSpent       int            `json:"time_spent"` // seconds

	CreatedAt time.Time `json:"created_at"`
}

func (Answer) TableName() string {
	return "answers"
}

// CharCount counts characters (not bytes) of the free-text part.
func (a *Answer) CharCount() int {
	if a.Text == nil {
		return 0
	}
	return utf8.RuneCountInString(*a.Text)
}
