// Package errors provides structured error types for the explorer.
// All errors include a category, code, message, and retryable flag so the
// query client, export engine and API layers classify failures the same way.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by failure class.
type ErrorCategory string

const (
	ErrCategoryNotFound   ErrorCategory = "NOT_FOUND"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryTransport  ErrorCategory = "TRANSPORT"
	ErrCategoryCodec      ErrorCategory = "CODEC"
	ErrCategoryExport     ErrorCategory = "EXPORT"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// NotFound codes
	CodeCollectionNotFound = "COLLECTION_NOT_FOUND"
	CodeItemNotFound       = "ITEM_NOT_FOUND"
	CodeObjectNotFound     = "OBJECT_NOT_FOUND"

	// Validation codes
	CodeValidationRejected = "VALIDATION_REJECTED"
	CodeInvalidRequest     = "INVALID_REQUEST"

	// Transport codes
	CodeRequestFailed  = "REQUEST_FAILED"
	CodeBadStatus      = "BAD_STATUS"
	CodeDecodeFailed   = "DECODE_FAILED"
	CodeRequestTimeout = "REQUEST_TIMEOUT"

	// Codec codes
	CodeUnknownCodec = "UNKNOWN_CODEC"

	// Export codes
	CodeExportCancelled = "CANCELLED"
	CodeExportRunning   = "ALREADY_RUNNING"
	CodeExportFailed    = "EXPORT_FAILED"
	CodeUnknownFormat   = "UNKNOWN_FORMAT"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// MDHError is the structured error type used throughout the system.
type MDHError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *MDHError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *MDHError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *MDHError) Is(target error) bool {
	var t *MDHError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new MDHError.
func New(category ErrorCategory, code, message string) *MDHError {
	return &MDHError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new MDHError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *MDHError {
	return &MDHError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *MDHError) WithDetails(details map[string]interface{}) *MDHError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
// Nothing in the explorer retries automatically; callers use this to decide
// whether a later state change may succeed.
func IsRetryable(err error) bool {
	var me *MDHError
	if errors.As(err, &me) {
		return me.Retryable
	}
	return false
}

// IsNotFound reports whether err is a not-found condition of any kind.
func IsNotFound(err error) bool {
	return GetCategory(err) == ErrCategoryNotFound
}

// IsCancelled reports whether err is a user-requested export cancellation.
func IsCancelled(err error) bool {
	return GetCategory(err) == ErrCategoryExport && GetCode(err) == CodeExportCancelled
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an MDHError.
func GetCategory(err error) ErrorCategory {
	var me *MDHError
	if errors.As(err, &me) {
		return me.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an MDHError.
func GetCode(err error) string {
	var me *MDHError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryTransport && code == CodeRequestFailed:
		return true
	case category == ErrCategoryTransport && code == CodeRequestTimeout:
		return true
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewNotFoundError(code, message string) *MDHError {
	return New(ErrCategoryNotFound, code, message)
}

func NewValidationError(code, message string) *MDHError {
	return New(ErrCategoryValidation, code, message)
}

func NewTransportError(code, message string, cause error) *MDHError {
	return Wrap(ErrCategoryTransport, code, message, cause)
}

func NewCodecError(code, message string) *MDHError {
	return New(ErrCategoryCodec, code, message)
}

func NewExportError(code, message string, cause error) *MDHError {
	return Wrap(ErrCategoryExport, code, message, cause)
}

func NewStorageError(code, message string, cause error) *MDHError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *MDHError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
