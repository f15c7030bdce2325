package services

import (
	"errors"

	"github.com/SAP-F-2025/integrity-service/internal/classifier"
	apperrors "github.com/SAP-F-2025/integrity-service/internal/errors"
	"github.com/SAP-F-2025/integrity-service/internal/repositories"
	"github.com/SAP-F-2025/integrity-service/internal/trainer"
)

// ===== COMMON SERVICE ERRORS =====

var (
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")

	ErrAttemptNotFound = errors.New("attempt not found")
	ErrVerdictNotFound = errors.New("attempt has not been evaluated")
)

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// ===== ERROR HELPERS =====

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrVerdictNotFound) ||
		errors.Is(err, repositories.ErrNotFound)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve ValidationErrors
	return errors.As(err, &ve)
}

// IsConfiguration reports a missing or unreadable model artifact. Such errors
// must reach the caller; there is no fallback verdict.
func IsConfiguration(err error) bool {
	return errors.Is(err, classifier.ErrModelNotLoaded) ||
		errors.Is(err, classifier.ErrArtifactInvalid)
}

// IsConflict reports an operation refused because another one is running.
func IsConflict(err error) bool {
	return errors.Is(err, trainer.ErrTrainingInProgress)
}

// IsInsufficientData reports a retrain refused for lack of usable labels.
func IsInsufficientData(err error) bool {
	return errors.Is(err, trainer.ErrInsufficientData) ||
		errors.Is(err, trainer.ErrSingleClass)
}
