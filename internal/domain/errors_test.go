package domain

import (
	"errors"
	"testing"
	"time"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Validation error",
			code:      ErrValidation,
			message:   "Patient name missing",
			details:   "patient_name was blank",
			requestID: "req-123",
		},
		{
			name:      "Backend error",
			code:      ErrExternalAPI,
			message:   "Prediction service unavailable",
			details:   "connection refused",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAppError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}
			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("age", "must be between 20 and 100", 12.0)

	if err.Code != ErrValidation {
		t.Errorf("Expected code %s, got %s", ErrValidation, err.Code)
	}
	expected := "validation error for field 'age': must be between 20 and 100"
	if err.Error() != expected {
		t.Errorf("Expected error string %s, got %s", expected, err.Error())
	}
}

func TestInvalidInputError(t *testing.T) {
	err := NewInvalidInputError("chol", "Sky High")

	if err.Code != ErrInvalidInput {
		t.Errorf("Expected code %s, got %s", ErrInvalidInput, err.Code)
	}
	if err.Field != "chol" {
		t.Errorf("Expected field chol, got %s", err.Field)
	}
	if err.Message != `unrecognized value "Sky High"` {
		t.Errorf("Unexpected message %s", err.Message)
	}
}

func TestBackendError(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		err      *BackendError
		expected string
	}{
		{"status and message", &BackendError{StatusCode: 400, Message: "Missing required field: bmi"}, "backend returned status 400: Missing required field: bmi"},
		{"status only", &BackendError{StatusCode: 503}, "backend returned status 503"},
		{"transport failure", &BackendError{Err: cause}, "backend request failed: connection refused"},
		{"empty", &BackendError{}, "backend request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, tt.err.Error())
			}
		})
	}

	wrapped := &BackendError{Err: cause}
	if !errors.Is(wrapped, cause) {
		t.Error("BackendError should unwrap to its cause")
	}
}

func TestReportError(t *testing.T) {
	cause := errors.New("font not found")
	err := &ReportError{Err: cause}

	if !errors.Is(err, cause) {
		t.Error("ReportError should unwrap to its cause")
	}
	if err.Error() != "REPORT_GENERATION_ERROR: font not found" {
		t.Errorf("Unexpected error string %s", err.Error())
	}
}
