package shared

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("not found")

// ValidationError reports every rule a candidate input violated, so callers
// can render the full list at once. Warnings never make the input invalid.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// NewValidationError builds a ValidationError from one or more reasons.
func NewValidationError(reasons ...string) *ValidationError {
	return &ValidationError{Errors: reasons}
}

// DependencyError indicates an operation blocked by hierarchy or history
// constraints, e.g. deleting an account that has posted transactions.
type DependencyError struct {
	Reason string
}

func (e *DependencyError) Error() string {
	return "dependency: " + e.Reason
}

// CycleError indicates a hierarchy mutation that would create a loop.
type CycleError struct {
	AccountID string
	ParentID  string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle: account %s cannot have parent %s", e.AccountID, e.ParentID)
}

// StateError indicates an operation invalid for the current lifecycle state,
// e.g. reversing an already-reversed transaction.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return "state: " + e.Reason
}

// RemoteError wraps a failed document store call. Only the sync protocol
// retries these; the posting engine surfaces them unchanged.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRemote reports whether err originated in the document store.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
