// Package errors defines the coded application error shared by the data,
// service and HTTP layers.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable category carried in API error bodies.
type ErrorCode string

const (
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeConflict   ErrorCode = "conflict"
	ErrCodeValidation ErrorCode = "validation"
	ErrCodeForeignKey ErrorCode = "foreign_key"
	ErrCodeInternal   ErrorCode = "internal"
	ErrCodeTimeout    ErrorCode = "timeout"
	ErrCodeCanceled   ErrorCode = "canceled"
)

// AppError pairs a code with a message that is safe to show an admin.
// Field names the offending input for validation failures.
type AppError struct {
	Code    ErrorCode
	Message string
	Field   string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// NotFound reports a missing notice or profile.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// Validation reports input rejected before it reached the database.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// ValidationField is Validation tied to one form field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Code returns err's ErrorCode, or "" when err carries none.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsNotFound(err error) bool   { return Code(err) == ErrCodeNotFound }
func IsConflict(err error) bool   { return Code(err) == ErrCodeConflict }
func IsValidation(err error) bool { return Code(err) == ErrCodeValidation }
func IsForeignKey(err error) bool { return Code(err) == ErrCodeForeignKey }
func IsTimeout(err error) bool    { return Code(err) == ErrCodeTimeout }
func IsCanceled(err error) bool   { return Code(err) == ErrCodeCanceled }

// GetField returns the offending field of a validation error, if any.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
