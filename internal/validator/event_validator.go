package validator

import (
	"fmt"
	"time"

	apperrors "github.com/SAP-F-2025/integrity-service/internal/errors"
	"github.com/SAP-F-2025/integrity-service/internal/models"
)

// clockSkew tolerates collector clocks slightly off the server's.
const clockSkew = 2 * time.Minute

// EventValidator checks incoming events against the attempt they belong to.
type EventValidator struct {
	skew time.Duration
}

func NewEventValidator() *EventValidator {
	return &EventValidator{skew: clockSkew}
}

// ValidateBatch returns every problem found in events, or nil.
func (v *EventValidator) ValidateBatch(attempt *models.Attempt, events []*models.ActivityEvent) ValidationErrors {
	var errs ValidationErrors
	for i, e := range events {
		field := func(name string) string { return fmt.Sprintf("events[%d].%s", i, name) }

		if !e.Type.IsKnown() {
			errs = append(errs, *apperrors.NewValidationErrorWithRule(field("event_type"), "must be a known activity event type", "event_type", e.Type))
		}
		if e.Timestamp.IsZero() {
			errs = append(errs, *apperrors.NewValidationErrorWithRule(field("timestamp"), "is required", "required", nil))
			continue
		}
		if attempt.StartedAt != nil && e.Timestamp.Before(attempt.StartedAt.Add(-v.skew)) {
			errs = append(errs, *apperrors.NewValidationErrorWithRule(field("timestamp"), "is before the attempt started", "attempt_window", e.Timestamp))
		}
		if attempt.FinishedAt != nil && e.Timestamp.After(attempt.FinishedAt.Add(v.skew)) {
			errs = append(errs, *apperrors.NewValidationErrorWithRule(field("timestamp"), "is after the attempt finished", "attempt_window", e.Timestamp))
		}
		if e.Value != nil && *e.Value < 0 {
			errs = append(errs, *apperrors.NewValidationErrorWithRule(field("value"), "must be at least 0", "gte", *e.Value))
		}
		if e.KeyDelay != nil && *e.KeyDelay < 0 {
			errs = append(errs, *apperrors.NewValidationErrorWithRule(field("key_delay"), "must be at least 0", "gte", *e.KeyDelay))
		}
	}
	return errs
}
