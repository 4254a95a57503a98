// Package lib provides shared utilities like error handling, logging,
// validation and durable file writes.
package lib

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// AppError represents an application error with context.
type AppError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"cause,omitempty"`
	Component string                 `json:"component"`
	Function  string                 `json:"function"`
	File      string                 `json:"file"`
	Line      int                    `json:"line"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for Go 1.13+ error handling.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewError creates a new AppError with caller information.
func NewError(code, message string) *AppError {
	return newErrorAt(2, code, message, nil)
}

// WrapError wraps an existing error with additional context.
func WrapError(err error, code, message string) *AppError {
	if err == nil {
		return nil
	}
	return newErrorAt(2, code, message, err)
}

func newErrorAt(skip int, code, message string, cause error) *AppError {
	pc, file, line, _ := runtime.Caller(skip)
	function := ""
	if fn := runtime.FuncForPC(pc); fn != nil {
		function = fn.Name()
	}

	return &AppError{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Component: extractComponent(file),
		Function:  function,
		File:      file,
		Line:      line,
	}
}

// WithContext adds context information to an error.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithContextMap adds multiple context fields to an error.
func (e *AppError) WithContextMap(context map[string]interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	for k, v := range context {
		e.Context[k] = v
	}
	return e
}

// extractComponent extracts component name from file path.
func extractComponent(file string) string {
	// Paths look like /path/to/rei-os/src/services/sync_service.go
	parts := strings.Split(file, "/")
	for i, part := range parts {
		if part == "src" && i+1 < len(parts)-1 {
			return parts[i+1]
		}
	}
	return "unknown"
}

// Common error codes.
const (
	ErrCodeConfig     = "CONFIG_ERROR"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeStorage    = "STORAGE_ERROR"
	ErrCodeSync       = "SYNC_ERROR"
	ErrCodeUsageAPI   = "USAGE_API_ERROR"
	ErrCodeAlert      = "ALERT_ERROR"
	ErrCodeLock       = "LOCK_ERROR"
	ErrCodeNotify     = "NOTIFY_ERROR"
	ErrCodeSystem     = "SYSTEM_ERROR"
	ErrCodeTemplate   = "TEMPLATE_ERROR"
)

// Convenience functions for common error types

// ValidationError creates a validation-related error.
func ValidationError(message string) *AppError {
	return newErrorAt(2, ErrCodeValidation, message, nil)
}

// SyncError creates a sync-related error.
func SyncError(message string) *AppError {
	return newErrorAt(2, ErrCodeSync, message, nil)
}

// UsageAPIError creates a usage API error.
func UsageAPIError(message string) *AppError {
	return newErrorAt(2, ErrCodeUsageAPI, message, nil)
}

// LockError creates a lock-related error.
func LockError(message string) *AppError {
	return newErrorAt(2, ErrCodeLock, message, nil)
}

// TemplateError creates a template-related error.
func TemplateError(message string) *AppError {
	return newErrorAt(2, ErrCodeTemplate, message, nil)
}

// IsErrorCode checks if an error has a specific error code.
func IsErrorCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an AppError, or empty string for other errors.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
