// Package errors defines the structured error types used across the
// workspace: typed errors with codes, the not-found error returned by
// template lookups, and lifecycle errors annotated with the manager and
// phase that produced them.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeRender     ErrorType = "render"
)

// Error codes.
const (
	ErrCodeTemplateNotFound = "ERR_TEMPLATE_NOT_FOUND"
	ErrCodeInvalidOptions   = "ERR_INVALID_OPTIONS"
	ErrCodeFileOperation    = "ERR_FILE_OPERATION"
	ErrCodeRenderFailed     = "ERR_RENDER_FAILED"
	ErrCodeBundleFailed     = "ERR_BUNDLE_FAILED"
	ErrCodeInternalError    = "ERR_INTERNAL"
)

// ManuscriptError is a structured error type with context.
type ManuscriptError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Context  map[string]interface{}
	FilePath string
}

// Error implements the error interface.
func (e *ManuscriptError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ManuscriptError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison by type and code.
func (e *ManuscriptError) Is(target error) bool {
	var t *ManuscriptError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ManuscriptError) WithContext(key string, value interface{}) *ManuscriptError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithFile adds file location information.
func (e *ManuscriptError) WithFile(filePath string) *ManuscriptError {
	e.FilePath = filePath

	return e
}

// ErrTemplateNotFound matches any template-not-found error via errors.Is.
var ErrTemplateNotFound = &ManuscriptError{Type: ErrorTypeNotFound, Code: ErrCodeTemplateNotFound}

// NewTemplateNotFoundError reports a template reference that resolved to no file.
func NewTemplateNotFoundError(reference string) *ManuscriptError {
	return &ManuscriptError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeTemplateNotFound,
		Message: fmt.Sprintf("template not found: %s", reference),
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *ManuscriptError {
	return &ManuscriptError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *ManuscriptError {
	return &ManuscriptError{
		Type:    ErrorTypeBuild,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewRenderError creates a render error.
func NewRenderError(message string, cause error) *ManuscriptError {
	return &ManuscriptError{
		Type:    ErrorTypeRender,
		Code:    ErrCodeRenderFailed,
		Message: message,
		Cause:   cause,
	}
}

// IsNotFound reports whether err is a template not-found error.
func IsNotFound(err error) bool {
	var me *ManuscriptError
	if errors.As(err, &me) {
		return me.Type == ErrorTypeNotFound
	}

	return false
}

// Phase names a manager lifecycle phase.
type Phase string

const (
	PhaseInit  Phase = "init"
	PhaseBuild Phase = "build"
	PhaseWatch Phase = "watch"
)

// ManagerError annotates a lifecycle failure with the manager and phase.
type ManagerError struct {
	Manager string
	Phase   Phase
	Err     error
}

// Error implements the error interface.
func (e *ManagerError) Error() string {
	return fmt.Sprintf("%s manager %s: %v", e.Manager, e.Phase, e.Err)
}

// Unwrap returns the manager's own error.
func (e *ManagerError) Unwrap() error {
	return e.Err
}
