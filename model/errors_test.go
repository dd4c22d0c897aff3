package model

import (
	"errors"
	"testing"
)

func TestErrorEnvelope_Error(t *testing.T) {
	err := NewBusinessError("Item does not exist")
	if got := err.Error(); got != "BUSINESS_ERROR: Item does not exist" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *ErrorEnvelope
		code string
	}{
		{"malformed", NewMalformedResponseError("bad xml"), ErrMalformedResponse},
		{"business", NewBusinessError("no"), ErrBusinessError},
		{"transport", NewTransportError(502, "bad gateway"), ErrTransportError},
		{"token", NewTokenError("fetch failed"), ErrTokenError},
		{"validation", NewValidationError(FieldError{Field: "program"}), ErrValidationError},
		{"bad request", NewBadRequestError("nope"), ErrBadRequest},
		{"unauthorized", NewUnauthorizedError("who"), ErrUnauthorized},
		{"not found", NewNotFoundError("gone"), ErrNotFound},
		{"internal", NewInternalError(), ErrInternalError},
		{"unavailable", NewBackendUnavailableError(), ErrBackendUnavailable},
		{"timeout", NewBackendTimeoutError(), ErrBackendTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Error() == "" {
				t.Error("Error() should not be empty")
			}
		})
	}
}

func TestErrorEnvelope_asError(t *testing.T) {
	var err error = NewTokenError("x")
	var ee *ErrorEnvelope
	if !errors.As(err, &ee) {
		t.Fatal("errors.As should unwrap the envelope")
	}
	if ee.Code != ErrTokenError {
		t.Errorf("Code = %q", ee.Code)
	}
}

func TestTransportErrorCarriesStatus(t *testing.T) {
	err := NewTransportError(503, "backend says no")
	if err.Status != 503 {
		t.Errorf("Status = %d, want 503", err.Status)
	}
	if err.Message != "backend says no" {
		t.Errorf("Message = %q", err.Message)
	}
}
