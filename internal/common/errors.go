package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors.
// Cause carries one of the sentinel errors below so callers can branch with errors.Is.
type AppError struct {
	Code        string
	Message     string
	Cause       error
	Details     string // underlying provider or database message, safe to surface
	RawResponse string // truncated model output, set only for parse failures
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("conflict")
	ErrMissingCredentials = errors.New("missing provider credentials")
	ErrProvider           = errors.New("extraction service error")
	ErrParse              = errors.New("response not parseable")
	ErrInternal           = errors.New("internal error")
	ErrDatabase           = errors.New("database error")
)

// Error codes surfaced in HTTP error bodies.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeWorkOrderNotFound  = "WORK_ORDER_NOT_FOUND"
	CodeFilesNotFound      = "FILES_NOT_FOUND"
	CodeNoSupportedFiles   = "NO_SUPPORTED_FILES"
	CodeDownloadFailed     = "DOWNLOAD_FAILED"
	CodeAlreadyProcessing  = "ALREADY_PROCESSING"
	CodeMissingCredentials = "MISSING_CREDENTIALS"
	CodeProviderError      = "PROVIDER_ERROR"
	CodeParseError         = "PARSE_ERROR"
	CodeDatabaseError      = "DATABASE_ERROR"
	CodeConfigError        = "CONFIG_ERROR"
	CodeInternal           = "INTERNAL"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithDetails attaches a caller-visible detail string and returns the same error.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithRawResponse attaches truncated model output and returns the same error.
func (e *AppError) WithRawResponse(raw string) *AppError {
	e.RawResponse = raw
	return e
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// AsAppError unwraps err to an *AppError if there is one in the chain.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func InvalidInputError(message string) *AppError {
	return NewAppError(CodeInvalidInput, message, ErrInvalidInput)
}

func NotFoundError(code, message string) *AppError {
	return NewAppError(code, message, ErrNotFound)
}

// DatabaseError wraps a storage failure so both errors.Is(ErrDatabase) and the driver error survive.
func DatabaseError(message string, err error) *AppError {
	ae := NewAppError(CodeDatabaseError, message, errors.Join(ErrDatabase, err))
	if err != nil {
		ae.Details = err.Error()
	}
	return ae
}
