package errors

import (
	"errors"
	"fmt"
	"io/fs"
)

// Wrap wraps an error with additional context, creating a ManuscriptError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *ManuscriptError {
	if err == nil {
		return nil
	}

	var me *ManuscriptError
	if errors.As(err, &me) {
		return &ManuscriptError{
			Type:     errType,
			Code:     code,
			Message:  message,
			Cause:    me,
			Context:  me.Context,
			FilePath: me.FilePath,
		}
	}

	return &ManuscriptError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *ManuscriptError {
	return Wrap(err, ErrorTypeIO, code, message)
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *ManuscriptError {
	return Wrap(err, ErrorTypeConfig, code, message)
}

// FileOperationError creates file operation errors
func FileOperationError(operation, filePath string, cause error) *ManuscriptError {
	e := WrapIO(cause, ErrCodeFileOperation, fmt.Sprintf("%s failed", operation))
	if e == nil {
		return nil
	}
	return e.WithFile(filePath).WithContext("operation", operation)
}

// IsNotExist reports whether err means "file does not exist". It is the only
// filesystem failure the resolution and loading paths treat as expected.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// FormatError formats an error for user display on the terminal.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	return "Error: " + err.Error()
}
