package utils

import (
	"errors"
	"fmt"
)

// AppError represents an application error with a stable code
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAppError creates a new application error
func NewAppError(code, message string, details ...string) *AppError {
	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = details[0]
	}

	return err
}

// IsCode reports whether err is an AppError carrying the given code
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Common error codes
const (
	ErrCodeConnection    = "CONNECTION_ERROR"
	ErrCodeDatabase      = "DATABASE_ERROR"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeBlockchain    = "BLOCKCHAIN_ERROR"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeSubmission    = "SUBMISSION_ERROR"
	ErrCodeTimeout       = "TIMEOUT_ERROR"
	ErrCodeExternal      = "EXTERNAL_ERROR"
)
