package pages

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"pagegen/app/internal/registry"
)

var (
	// ErrUnknownTemplate is returned when the requested template type is not registered.
	ErrUnknownTemplate = registry.ErrUnknownTemplate
	// ErrOwnerNotFound is returned when the owner cannot be resolved in the profile directory.
	ErrOwnerNotFound = eris.New("owner not found in profile directory")
	// ErrMissingPartner is returned when a co-brand partner is required but absent, or supplied where forbidden.
	ErrMissingPartner = eris.New("co-brand partner missing or invalid")
	// ErrMissingPropertyData is returned when an open house page has no property address.
	ErrMissingPropertyData = eris.New("property data missing")
	// ErrMissingCompanyName is returned when a partner portal has no company name.
	ErrMissingCompanyName = eris.New("company name missing")
	// ErrInvalidBranding is returned when branding overrides fail validation.
	ErrInvalidBranding = eris.New("invalid branding overrides")
	// ErrEmptyAssignment is returned when a portal would be left without loan officers.
	ErrEmptyAssignment = eris.New("at least one loan officer is required")
	// ErrDuplicatePage is returned when a live page already exists for the owner and template or the slug is taken.
	ErrDuplicatePage = eris.New("duplicate page")
	// ErrNotFound is returned when a page does not exist.
	ErrNotFound = eris.New("page not found")
	// ErrForbidden is returned when the viewer may not see or change a page.
	ErrForbidden = eris.New("access forbidden")
)

var validationErrors = []error{
	ErrUnknownTemplate,
	ErrOwnerNotFound,
	ErrMissingPartner,
	ErrMissingPropertyData,
	ErrMissingCompanyName,
	ErrInvalidBranding,
	ErrEmptyAssignment,
}

// FieldError ties a validation failure to the input field that caused it.
type FieldError struct {
	Field  string
	Detail string
	Err    error
}

// NewFieldError builds a validation error for the given field.
func NewFieldError(field string, err error, detail string) *FieldError {
	return &FieldError{Field: field, Err: err, Detail: detail}
}

func (e *FieldError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Field, e.Err, e.Detail)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is an input validation failure rather than a system failure.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range validationErrors {
		if eris.Is(err, target) {
			return true
		}
	}
	return false
}

// ValidationReason returns the message of the validation sentinel behind err, or "".
func ValidationReason(err error) string {
	if err == nil {
		return ""
	}
	for _, target := range validationErrors {
		if eris.Is(err, target) {
			return target.Error()
		}
	}
	return ""
}

// FieldOf returns the failing field of a validation error, if any.
func FieldOf(err error) string {
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		return fieldErr.Field
	}
	return ""
}
