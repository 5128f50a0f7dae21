package model

import (
	"errors"
	"strings"
)

var (
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFieldTooLong    = errors.New("field too long")
)

// Field error codes.
const (
	CodeRequired        = "required"
	CodeInvalidFileType = "invalid_file_type"
	CodeTooLong         = "too_long"
	CodeInconsistent    = "inconsistent"
	CodeOutOfRange      = "out_of_range"
)

// FieldError describes a single failing field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError aggregates every failing field of a record.
type ValidationError struct {
	Fields []FieldError
}

// MissingField builds a ValidationError for one required field.
func MissingField(field string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Code: CodeRequired, Message: "this field is required"}}}
}

// InvalidFileType builds a ValidationError for an unsupported extension.
func InvalidFileType(field string, cause error) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Code: CodeInvalidFileType, Message: cause.Error()}}}
}

func (e *ValidationError) Add(field, code, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: message})
}

// Merge appends the fields of other.
func (e *ValidationError) Merge(other *ValidationError) {
	if other != nil {
		e.Fields = append(e.Fields, other.Fields...)
	}
}

// Err returns e when it holds at least one field, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is matches the sentinel corresponding to any contained field code.
func (e *ValidationError) Is(target error) bool {
	for _, f := range e.Fields {
		switch {
		case target == ErrMissingField && f.Code == CodeRequired,
			target == ErrInvalidFileType && f.Code == CodeInvalidFileType,
			target == ErrFieldTooLong && f.Code == CodeTooLong:
			return true
		}
	}
	return false
}
