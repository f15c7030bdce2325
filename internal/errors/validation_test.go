package errors

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("reviewer_id", "is required", 0)

	assert.Equal(t, "reviewer_id", err.Field)
	assert.Equal(t, "is required", err.Message)
	assert.Equal(t, 0, err.Value)
	assert.Equal(t, "validation error on field 'reviewer_id': is required", err.Error())
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.Equal(t, "validation failed", errs.Error())

	errs = append(errs, *NewValidationError("field1", "message1", nil))
	assert.Equal(t, "validation failed: field1 message1", errs.Error())

	errs = append(errs, *NewValidationError("field2", "message2", nil))
	assert.Equal(t, "validation failed: 2 field errors", errs.Error())
}

func TestNewValidationErrorWithRule(t *testing.T) {
	err := NewValidationErrorWithRule("events", "must be at least 1", "min", nil)
	assert.Equal(t, "min", err.Rule)
	assert.Equal(t, "events", err.Field)
}

func TestToValidationErrors(t *testing.T) {
	type request struct {
		ReviewerID uint   `validate:"required"`
		Comment    string `validate:"max=5"`
	}
	err := validator.New().Struct(request{Comment: "far too long"})
	require.Error(t, err)

	errs := ToValidationErrors(err)
	require.Len(t, errs, 2)
	assert.Equal(t, "ReviewerID", errs[0].Field)
	assert.Equal(t, "is required", errs[0].Message)
	assert.Equal(t, "required", errs[0].Rule)
	assert.Equal(t, "must be at most 5", errs[1].Message)

	assert.Nil(t, ToValidationErrors(assert.AnError))
}
