// Unified error handling for the power spectrum pipeline
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigField      ErrorCode = "CONFIG_FIELD"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrConfigLoad       ErrorCode = "CONFIG_LOAD"

	// Spectrum computation errors
	ErrInsufficientBins ErrorCode = "INSUFFICIENT_BINS"
	ErrBinOverflow      ErrorCode = "BIN_OVERFLOW"
	ErrGeometryMismatch ErrorCode = "GEOMETRY_MISMATCH"

	// Collective communication errors
	ErrCollective ErrorCode = "COLLECTIVE"

	// Runtime errors
	ErrRuntime ErrorCode = "RUNTIME"
)

// SpectrumError is the unified error type for the pipeline
type SpectrumError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Field is the name of the field being processed (if any)
	Field string

	// Err wraps the underlying error
	Err error

	// Context provides additional context
	Context map[string]interface{}
}

// Error implements the error interface
func (e *SpectrumError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Field, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying error
func (e *SpectrumError) Unwrap() error {
	return e.Err
}

// SetField sets the field the error occurred in
func (e *SpectrumError) SetField(field string) *SpectrumError {
	e.Field = field
	return e
}

// SetContext adds additional context
func (e *SpectrumError) SetContext(key string, value interface{}) *SpectrumError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *SpectrumError {
	return &SpectrumError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// New creates a new SpectrumError
func New(code ErrorCode, message string) *SpectrumError {
	return &SpectrumError{
		Code:    code,
		Message: message,
	}
}

// Config errors

// UnknownFieldError reports a selected field that no component provides
func UnknownFieldError(name string) *SpectrumError {
	return New(ErrConfigField, fmt.Sprintf("power spectrum requested for unknown field '%s'", name)).
		SetField(name)
}

// ConfigValidationError creates an error for an invalid parameter
func ConfigValidationError(option string, reason string) *SpectrumError {
	return New(ErrConfigValidation, fmt.Sprintf("parameter '%s': %s", option, reason)).
		SetContext("option", option)
}

// ConfigLoadError wraps a failure to read a parameter file
func ConfigLoadError(path string, err error) *SpectrumError {
	return Wrap(err, ErrConfigLoad, fmt.Sprintf("unable to load parameter file %s", path)).
		SetContext("path", path)
}

// Spectrum errors

// InsufficientBinsError reports too few populated bins for the top-hat integral
func InsufficientBinsError(valid int) *SpectrumError {
	return New(ErrInsufficientBins, fmt.Sprintf("insufficient data for top-hat integration: %d valid bins, need at least 3", valid)).
		SetContext("valid_bins", valid)
}

// BinOverflowError reports a k² outside the allocated bin range
func BinOverflowError(k2, k2Max int) *SpectrumError {
	return New(ErrBinOverflow, fmt.Sprintf("k² = %d exceeds allocated bin range [0, %d]", k2, k2Max)).
		SetContext("k2", k2).
		SetContext("k2_max", k2Max)
}

// IndexOverflowError reports a slab index outside the grid
func IndexOverflowError(axis string, index, limit int) *SpectrumError {
	return New(ErrBinOverflow, fmt.Sprintf("%s index %d outside [0, %d)", axis, index, limit)).
		SetContext("axis", axis)
}

// GeometryMismatchError reports a populated-bin set that differs from the run mask
func GeometryMismatchError(k2 int) *SpectrumError {
	return New(ErrGeometryMismatch, fmt.Sprintf("populated bins differ from the run mask at k² = %d", k2)).
		SetContext("k2", k2)
}

// CollectiveError wraps a failure of the distributed reduction
func CollectiveError(operation string, err error) *SpectrumError {
	return Wrap(err, ErrCollective, fmt.Sprintf("collective %s failed", operation))
}

// RuntimeError creates a general runtime error
func RuntimeError(message string) *SpectrumError {
	return New(ErrRuntime, message)
}

// Is checks if error (or any error it wraps) matches given error code
func Is(err error, code ErrorCode) bool {
	var se *SpectrumError
	for err != nil {
		if !stderrors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Err
	}
	return false
}

// IsConfig checks if error is a configuration error
func IsConfig(err error) bool {
	return Is(err, ErrConfigField) ||
		Is(err, ErrConfigValidation) ||
		Is(err, ErrConfigLoad) ||
		Is(err, ErrInsufficientBins)
}

// IsFatal reports whether the error must abort the whole run.
// Every SpectrumError is fatal; numeric guards never produce one.
func IsFatal(err error) bool {
	var se *SpectrumError
	return stderrors.As(err, &se)
}
