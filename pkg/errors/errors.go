package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrCanceled     ErrorCode = "CANCELED"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"
	ErrConfigValid ErrorCode = "CONFIG_INVALID"

	// Remote lookups
	ErrLookupFailed ErrorCode = "LOOKUP_FAILED"
	ErrDecodeFailed ErrorCode = "DECODE_FAILED"

	// Subprocess and privileged execution
	ErrCommandFailed ErrorCode = "COMMAND_FAILED"

	// Update application
	ErrUnsupportedSource ErrorCode = "UNSUPPORTED_SOURCE"
	ErrAlreadyQueued     ErrorCode = "ALREADY_QUEUED"
	ErrUpdateFailed      ErrorCode = "UPDATE_FAILED"
	ErrNoCandidate       ErrorCode = "NO_CANDIDATE"

	// Sideload installation
	ErrMetadataMissing ErrorCode = "METADATA_MISSING"
	ErrPlistInvalid    ErrorCode = "PLIST_INVALID"
	ErrPlistEncode     ErrorCode = "PLIST_ENCODE"
	ErrExtractFailed   ErrorCode = "EXTRACT_FAILED"
	ErrSwapFailed      ErrorCode = "SWAP_FAILED"
	ErrRollbackFailed  ErrorCode = "ROLLBACK_FAILED"

	// History store
	ErrStoreOpen    ErrorCode = "STORE_OPEN"
	ErrStoreMigrate ErrorCode = "STORE_MIGRATE"
	ErrStoreQuery   ErrorCode = "STORE_QUERY"

	// Scheduled runs
	ErrScheduleInvalid ErrorCode = "SCHEDULE_INVALID"
	ErrRegisterFailed  ErrorCode = "REGISTER_FAILED"

	// FileSystem errors
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrFileAccess   ErrorCode = "FILE_ACCESS"
	ErrFileWrite    ErrorCode = "FILE_WRITE"
	ErrDirCreate    ErrorCode = "DIR_CREATE"
)

// AppError represents a structured error with code and details
type AppError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *AppError) Is(target error) bool {
	var targetErr *AppError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new AppError with the given code and message
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new AppError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// IsErrorCode checks if an error has a specific error code anywhere in its chain
func IsErrorCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Wrapped
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not an AppError
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not an AppError
func GetErrorDetails(err error) map[string]interface{} {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}
