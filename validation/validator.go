package validation

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kbukum/sdkcore/errors"
)

// Validator collects validation errors.
type Validator struct {
	errors []FieldError
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{
		errors: make([]FieldError, 0),
	}
}

// AddError adds a field error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{
		Field:   field,
		Message: message,
	})
}

// Merge folds the field errors of err into v. Errors that did not come from
// this package are recorded under field.
func (v *Validator) Merge(field string, err error) *Validator {
	if err == nil {
		return v
	}
	if fields, ok := Fields(err); ok {
		for _, f := range fields {
			if field != "" {
				f.Field = field + "." + f.Field
			}
			v.errors = append(v.errors, f)
		}
		return v
	}
	v.AddError(field, err.Error())
	return v
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Err returns a CONFIGURATION error listing every field error, or nil.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return newError(v.errors)
}

// Required checks if a string is non-empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// URL checks that a non-empty value is an absolute http or https URL.
func (v *Validator) URL(field, value string) *Validator {
	if value == "" {
		return v
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		v.AddError(field, "must be an absolute http or https URL")
	}
	return v
}

// NonNegative checks that a duration is zero or positive.
func (v *Validator) NonNegative(field string, d time.Duration) *Validator {
	if d < 0 {
		v.AddError(field, "must not be negative")
	}
	return v
}

// Range checks if a number is within a range.
func (v *Validator) Range(field string, value, minVal, maxVal int) *Validator {
	if value < minVal || value > maxVal {
		v.AddError(field, fmt.Sprintf("must be between %d and %d", minVal, maxVal))
	}
	return v
}

// Min checks if a number meets minimum value.
func (v *Validator) Min(field string, value, minVal int) *Validator {
	if value < minVal {
		v.AddError(field, fmt.Sprintf("must be at least %d", minVal))
	}
	return v
}

// OneOf checks if a value is one of the allowed values.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v
	}
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// Custom applies a custom validation condition.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	if !condition {
		v.AddError(field, message)
	}
	return v
}

// Fields returns the field errors carried by a validation error.
func Fields(err error) ([]FieldError, bool) {
	sdkErr, ok := errors.AsSdkError(err)
	if !ok || sdkErr.Kind != errors.KindConfiguration {
		return nil, false
	}
	fields, ok := sdkErr.Details["fields"].([]FieldError)
	return fields, ok
}

func newError(fields []FieldError) error {
	messages := make([]string, len(fields))
	for i, e := range fields {
		messages[i] = e.Field + ": " + e.Message
	}
	return errors.Configuration("invalid configuration: "+strings.Join(messages, "; ")).
		WithDetail("fields", fields)
}
