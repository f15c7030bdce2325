package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	apperrors "github.com/SAP-F-2025/integrity-service/internal/errors"
	"github.com/SAP-F-2025/integrity-service/internal/models"
)

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// Validator combines struct tag validation with event stream checks.
type Validator struct {
	structValidator *validator.Validate
	eventValidator  *EventValidator
}

func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
		eventValidator:  NewEventValidator(),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate checks struct tags and reports failures as ValidationErrors.
func (v *Validator) Validate(s interface{}) error {
	err := v.ValidateStruct(s)
	if err == nil {
		return nil
	}
	if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
		return errs
	}
	return err
}

func (v *Validator) Events() *EventValidator {
	return v.eventValidator
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("event_type", validateEventType)
	validate.RegisterValidation("probability", validateProbability)
	validate.RegisterValidation("cron", validateCron)

	// Report json names in errors
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		}
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateEventType(fl validator.FieldLevel) bool {
	return models.ActivityEventType(fl.Field().String()).IsKnown()
}

func validateProbability(fl validator.FieldLevel) bool {
	p := fl.Field().Float()
	return p >= 0 && p <= 1
}

func validateCron(fl validator.FieldLevel) bool {
	spec := fl.Field().String()
	if spec == "" {
		return true
	}
	_, err := cron.ParseStandard(spec)
	return err == nil
}
