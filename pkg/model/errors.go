package model

import (
	"errors"
	"fmt"
)

const (
	ErrorShape          = "shape"
	ErrorMissingField   = "missing_field"
	ErrorInvariant      = "invariant"
	ErrorDuplicateType  = "duplicate_type"
	ErrorUnknownType    = "unknown_type"
	ErrorUnknownField   = "unknown_field"
	ErrorAmbiguousImage = "ambiguous_image"
	ErrorResolution     = "resolution"
	ErrorUsage          = "usage"
)

// Error is a categorized parse, resolution or usage failure.
type Error struct {
	Category string
	Path     string
	Detail   string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	msg := e.Category
	if e.Path != "" {
		msg = fmt.Sprintf("%s at %s", msg, e.Path)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}

	return msg
}

// NewError creates a categorized model error.
func NewError(category string, path string, detail string) error {
	return &Error{Category: category, Path: path, Detail: detail}
}

// UsageError reports programmer misuse of an API surface.
func UsageError(detail string) error {
	return &Error{Category: ErrorUsage, Detail: detail}
}

// CategoryFromError returns the category of a model error, or "" for other errors.
func CategoryFromError(err error) string {
	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}

	return ""
}

// IsValidation reports whether err was raised while validating a wire payload.
func IsValidation(err error) bool {
	switch CategoryFromError(err) {
	case "", ErrorResolution, ErrorUsage:
		return false
	default:
		return true
	}
}
