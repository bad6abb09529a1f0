package domain

import (
	"errors"
	"fmt"
	"time"
)

// AppError represents a standardized error response
type AppError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput     = "INVALID_INPUT"
	ErrValidation       = "VALIDATION_ERROR"
	ErrExternalAPI      = "EXTERNAL_API_ERROR"
	ErrStorage          = "STORAGE_ERROR"
	ErrReportGeneration = "REPORT_GENERATION_ERROR"
	ErrNotFound         = "NOT_FOUND"
	ErrInternalServer   = "INTERNAL_SERVER_ERROR"
)

// Messages shown to the user.
const (
	MsgPatientNameRequired = "Patient name is required for generating the assessment report."
	MsgSubmissionFailed    = "An error occurred. Please try again."
	MsgReportFailed        = "Error generating PDF report. Please try again."
)

// ErrResultNotFound is returned when no assessment has been stored for a scope.
var ErrResultNotFound = errors.New("assessment result not found")

// ValidationError represents input validation errors
type ValidationError struct {
	Code    string      `json:"code"`
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// BackendError is a failed call to the prediction backend. StatusCode is zero
// when no response was received.
type BackendError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *BackendError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("backend request failed: %v", e.Err)
	default:
		return "backend request failed"
	}
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// UserMessage returns the message carried in the backend error body, if any.
func (e *BackendError) UserMessage() string {
	return e.Message
}

// ReportError wraps a failure while rendering the PDF report.
type ReportError struct {
	Err error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("%s: %v", ErrReportGeneration, e.Err)
}

func (e *ReportError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError with timestamp
func NewAppError(code, message, details, requestID string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Code:    ErrValidation,
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NewInvalidInputError creates a ValidationError for a value outside a fixed mapping table.
func NewInvalidInputError(field string, value interface{}) *ValidationError {
	return &ValidationError{
		Code:    ErrInvalidInput,
		Field:   field,
		Message: fmt.Sprintf("unrecognized value %q", fmt.Sprint(value)),
		Value:   value,
	}
}
