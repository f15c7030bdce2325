package models

type QuestionType string

const (
	QuestionOpen     QuestionType = "open"
	QuestionCode     QuestionType = "code"
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
)

// IsWriting reports whether answering the question means typing text.
func (t QuestionType) IsWriting() bool {
	return t == QuestionOpen || t == QuestionCode
}

type Question struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	AssessmentID uint         `json:"assessment_id" gorm:"not null;index"`
	Type         QuestionType `json:"type" gorm:"size:20;not null"`
	Text         string       `json:"text" gorm:"type:text"`
	Order        int          `json:"order" gorm:"default:0"`
}

func (Question) TableName() string {
	return "questions"
}
