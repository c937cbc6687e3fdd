package analysis

import (
	"errors"
	"fmt"
)

// ValidationError rejects a submission before any network call.
// No record is created when one of these is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NewValidationError formats a validation failure.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// BackendError carries the analyzer backend's own error message, or a
// generic fallback when none was supplied.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string { return e.Message }

var (
	// ErrRecordNotFound indicates the registry has no record for the id.
	ErrRecordNotFound = errors.New("scan record not found")

	// ErrStatusRegression indicates an update tried to move a status
	// backwards or past a terminal state.
	ErrStatusRegression = errors.New("status regression rejected")

	// ErrAnalysisIDRebind indicates an update tried to change an already
	// assigned analysis id.
	ErrAnalysisIDRebind = errors.New("analysis id is immutable once set")

	// ErrDuplicateRecord indicates a Create for an id that already exists.
	ErrDuplicateRecord = errors.New("scan record already exists")

	// ErrNotCompleted indicates a chat was requested against a record whose
	// primary analysis has not completed.
	ErrNotCompleted = errors.New("analysis is not completed")

	// ErrEmptyQuestion indicates a blank chat question; nothing is appended.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrSessionBusy indicates an exchange is already in flight on the session.
	ErrSessionBusy = errors.New("chat session is busy")
)
