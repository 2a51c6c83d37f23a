package common

import (
	"errors"
	"net/http"
)

// ErrorResponse is the API error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// CustomError is an error with an HTTP status and a stable code.
type CustomError struct {
	Code    string
	Message string
	Err     error
	Status  int
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewError creates a new custom error.
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// ValidationError marks client input that was rejected before any external
// call was made.
type ValidationError struct {
	message string
}

func (e *ValidationError) Error() string {
	return e.message
}

// NewValidationError creates a new validation error.
func NewValidationError(message string) error {
	return &ValidationError{
		message: message,
	}
}

// IsValidationError reports whether err is a validation error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Predefined error codes for the HTTP surface.
const (
	// Client errors (4xx)
	ErrCodeInvalidRequest  = "INVALID_REQUEST"   // 400
	ErrCodeUnauthorized    = "UNAUTHORIZED"      // 401
	ErrCodeForbidden       = "FORBIDDEN"         // 403
	ErrCodeNotFound        = "NOT_FOUND"         // 404
	ErrCodeRequestTimeout  = "REQUEST_TIMEOUT"   // 408
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS" // 429

	// Server errors (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"      // 500
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503
)

// Predefined errors.
var (
	ErrInvalidRequest  = NewError(ErrCodeInvalidRequest, "invalid request", http.StatusBadRequest, nil)
	ErrUnauthorized    = NewError(ErrCodeUnauthorized, "unauthorized", http.StatusUnauthorized, nil)
	ErrForbidden       = NewError(ErrCodeForbidden, "forbidden", http.StatusForbidden, nil)
	ErrNotFound        = NewError(ErrCodeNotFound, "resource not found", http.StatusNotFound, nil)
	ErrRequestTimeout  = NewError(ErrCodeRequestTimeout, "request timeout", http.StatusRequestTimeout, nil)
	ErrTooManyRequests = NewError(ErrCodeTooManyRequests, "too many requests", http.StatusTooManyRequests, nil)

	ErrInternalError      = NewError(ErrCodeInternalError, "internal server error", http.StatusInternalServerError, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "service temporarily unavailable", http.StatusServiceUnavailable, nil)

	ErrInvalidImageFormat = NewError("INVALID_IMAGE_FORMAT", "invalid image format", http.StatusBadRequest, nil)
	ErrInvalidImageSize   = NewError("INVALID_IMAGE_SIZE", "image size exceeds limit", http.StatusBadRequest, nil)
	ErrAIServiceError     = NewError("AI_SERVICE_ERROR", "AI service error", http.StatusServiceUnavailable, nil)
)

// Import failure codes. These are stable identifiers rendered by the client;
// never substitute a different code for the same failure class.
const (
	ImportCodeWebpageNotFound   = "webpage_not_found"
	ImportCodeURLFailed         = "url_import_failed"
	ImportCodeImageFailed       = "image_import_failed"
	ImportCodeNoMainImage       = "no_main_image"
	ImportCodeTooAmbiguous      = "manual_too_ambiguous"
	ImportCodeManualFailed      = "manual_import_failed"
	ImportCodeMixedFailed       = "mixed_import_failed"
	ImportCodeNoExtractableText = "no_extractable_text"
	ImportCodeGeneric           = "import_failed"
)

// ImportError carries a stable failure code through an ingestion flow so the
// job runner can attach it to the job record.
type ImportError struct {
	Code    string
	Message string
	Err     error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// NewImportError creates a new import error.
func NewImportError(code, message string, err error) *ImportError {
	return &ImportError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ImportCodeOf resolves any flow error to a (code, message) pair. Errors that
// do not carry an ImportError fall back to the generic code so nothing is
// lost on the way to the job record.
func ImportCodeOf(err error) (string, string) {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Code, ie.Message
	}
	return ImportCodeGeneric, "Import failed. Please try again."
}
