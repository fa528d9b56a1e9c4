package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeLogin        = "LOGIN_FAILED"
	ErrCodeCaptcha      = "CAPTCHA_UNRESOLVED"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeStaleScope   = "STALE_FRAME_SCOPE"
	ErrCodeExtraction   = "EXTRACTION_FAILED"
	ErrCodeTransport    = "TRANSPORT_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PortalError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type PortalError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *PortalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PortalError) Unwrap() error {
	return e.Err
}

// NewPortalError creates a new PortalError.
func NewPortalError(code, message string, err error) *PortalError {
	return &PortalError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *PortalError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
