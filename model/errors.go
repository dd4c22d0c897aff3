package model

import "fmt"

// Standard error codes, one per failure class the engine distinguishes.
const (
	ErrMalformedResponse = "MALFORMED_RESPONSE"
	ErrBusinessError     = "BUSINESS_ERROR"
	ErrTransportError    = "TRANSPORT_ERROR"
	ErrTokenError        = "TOKEN_ERROR"
	ErrValidationError   = "VALIDATION_ERROR"
)

// Gateway-level error codes.
const (
	ErrBadRequest         = "BAD_REQUEST"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrNotFound           = "NOT_FOUND"
	ErrInternalError      = "INTERNAL_ERROR"
	ErrBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrBackendTimeout     = "BACKEND_TIMEOUT"
)

// ErrorEnvelope is the standard error payload surfaced to callers.
// It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	// Status carries the HTTP status of the failing backend call for
	// transport errors, zero otherwise.
	Status int `json:"status,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation or business error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// NewMalformedResponseError returns a MALFORMED_RESPONSE error for a reply
// whose outer markup could not be parsed at all.
func NewMalformedResponseError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrMalformedResponse, Message: msg}
}

// NewBusinessError returns a BUSINESS_ERROR for a well-formed reply whose
// error indicators are set.
func NewBusinessError(msg string, details ...FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBusinessError, Message: msg, Details: details}
}

// NewTransportError returns a TRANSPORT_ERROR carrying the backend HTTP status.
func NewTransportError(status int, msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrTransportError, Message: msg, Status: status}
}

// NewTokenError returns a TOKEN_ERROR for a CSRF or OAuth token that could
// not be obtained.
func NewTokenError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrTokenError, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
// Validation errors are returned synchronously, before any request is issued.
func NewValidationError(details ...FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewBackendUnavailableError returns a BACKEND_UNAVAILABLE error.
func NewBackendUnavailableError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBackendUnavailable,
		Message: "The application server is temporarily unavailable",
	}
}

// NewBackendTimeoutError returns a BACKEND_TIMEOUT error.
func NewBackendTimeoutError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBackendTimeout,
		Message: "The application server did not respond in time",
	}
}
