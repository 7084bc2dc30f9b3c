package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeParameter covers malformed calendars, conflicting options,
	// unparsable times and unknown timezone names.
	ErrTypeParameter ErrorType = "PARAMETER"
	// ErrTypeMissingReference means reference data (timezones) is absent for some entities.
	ErrTypeMissingReference ErrorType = "MISSING_REFERENCE_DATA"
	// ErrTypeAmbiguousTimezone means entities disagree on their timezone.
	ErrTypeAmbiguousTimezone ErrorType = "AMBIGUOUS_TIMEZONE"
	// ErrTypeNoFactData is the fact source's "nothing matched" signal.
	ErrTypeNoFactData ErrorType = "NO_FACT_DATA"
	ErrTypeParsing    ErrorType = "PARSING"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeInternal   ErrorType = "INTERNAL"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewParameterError creates an error for invalid caller input.
func NewParameterError(format string, args ...interface{}) *AppError {
	return NewAppError(ErrTypeParameter, fmt.Sprintf(format, args...), nil)
}

// NewMissingTimezoneError lists the entities that have no reference timezone.
func NewMissingTimezoneError(message string, entities []string) *AppError {
	sorted := sortedCopy(entities)
	return NewAppError(ErrTypeMissingReference,
		fmt.Sprintf("%s (sids missing timezone: %s)", message, strings.Join(sorted, ", ")), nil).
		WithContext("entities", sorted)
}

// NewAmbiguousTimezoneError lists the distinct timezones found.
func NewAmbiguousTimezoneError(timezones []string) *AppError {
	sorted := sortedCopy(timezones)
	return NewAppError(ErrTypeAmbiguousTimezone,
		fmt.Sprintf("no timezone specified and cannot infer because multiple timezones are present in data, please specify timezone (timezones in data: %s)",
			strings.Join(sorted, ", ")), nil).
		WithContext("timezones", sorted)
}

// NewNoFactDataError is returned by fact sources when a query matches nothing.
func NewNoFactDataError(message string) *AppError {
	return NewAppError(ErrTypeNoFactData, message, nil)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewConfigError creates a configuration-related error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *AppError {
	return NewAppError(ErrTypeInternal, message, cause)
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsParameterError reports whether err is a parameter error
func IsParameterError(err error) bool {
	return TypeOf(err) == ErrTypeParameter
}

// IsMissingReference reports whether err signals missing reference data
func IsMissingReference(err error) bool {
	return TypeOf(err) == ErrTypeMissingReference
}

// IsAmbiguousTimezone reports whether err signals disagreeing timezones
func IsAmbiguousTimezone(err error) bool {
	return TypeOf(err) == ErrTypeAmbiguousTimezone
}

// IsNoFactData reports whether err is the fact source's no-data signal
func IsNoFactData(err error) bool {
	return TypeOf(err) == ErrTypeNoFactData
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
