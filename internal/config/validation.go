// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"cmp"
	"fmt"
	"strings"
)

// Path represents a path to a config field for error reporting.
// It builds paths like "ratelimit.defaults.requests_per_minute" for clear
// error messages.
type Path struct {
	segments []string
}

// NewPath creates a new path with a root segment.
func NewPath(root string) *Path {
	return &Path{segments: []string{root}}
}

// Child returns a new path with the child segment appended.
func (p *Path) Child(name string) *Path {
	segments := make([]string, len(p.segments)+1)
	copy(segments, p.segments)
	segments[len(p.segments)] = name
	return &Path{segments: segments}
}

// String returns the dot-separated path string.
func (p *Path) String() string {
	return strings.Join(p.segments, ".")
}

// FieldError represents a validation error for a specific config field.
type FieldError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []*FieldError

// Error implements the error interface, formatting all errors.
func (ve ValidationErrors) Error() string {
	var b strings.Builder
	for i, e := range ve {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(e.Error())
	}
	return b.String()
}

// OrNil returns nil if there are no errors, otherwise the ValidationErrors.
func (ve ValidationErrors) OrNil() error {
	if len(ve) == 0 {
		return nil
	}
	return ve
}

// Append adds err to the collection when it is non-nil.
func (ve ValidationErrors) Append(err *FieldError) ValidationErrors {
	if err == nil {
		return ve
	}
	return append(ve, err)
}

// Required returns an error indicating a field is required.
func Required(path *Path) *FieldError {
	return &FieldError{Field: path.String(), Message: "is required"}
}

// Invalid returns a generic validation error with a custom message.
func Invalid(path *Path, msg string) *FieldError {
	return &FieldError{Field: path.String(), Message: msg}
}

// MustBePositive returns an error if value is not greater than zero.
func MustBePositive[T cmp.Ordered](path *Path, value T) *FieldError {
	var zero T
	if value <= zero {
		return Invalid(path, "must be greater than 0")
	}
	return nil
}

// MustBeNonNegative returns an error if value is negative.
func MustBeNonNegative[T cmp.Ordered](path *Path, value T) *FieldError {
	var zero T
	if value < zero {
		return Invalid(path, "must be non-negative")
	}
	return nil
}

// MustBeInRange returns an error if value is not within [lo, hi].
func MustBeInRange[T cmp.Ordered](path *Path, value, lo, hi T) *FieldError {
	if value < lo || value > hi {
		return Invalid(path, fmt.Sprintf("must be between %v and %v", lo, hi))
	}
	return nil
}

// MustBeOneOf returns an error if value is not among the allowed values.
func MustBeOneOf[T comparable](path *Path, value T, allowed ...T) *FieldError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return Invalid(path, fmt.Sprintf("must be one of %v", allowed))
}
