package procurement

import (
	"errors"
	"fmt"

	"github.com/odyssey-erp/kitchen/internal/shared"
)

var (
	// ErrNotFound indicates the purchase order does not exist.
	ErrNotFound = fmt.Errorf("procurement: order %w", shared.ErrNotFound)
	// ErrValidation is the sentinel wrapped by ValidationError.
	ErrValidation = errors.New("procurement: validation failed")
	// ErrInvalidState is the sentinel wrapped by InvalidStateError.
	ErrInvalidState = errors.New("procurement: operation not allowed in current state")
	// ErrInvalidTransition is the sentinel wrapped by InvalidTransitionError.
	ErrInvalidTransition = errors.New("procurement: invalid state transition")
	// ErrTransactionFailure indicates the atomic commit could not complete. No partial
	// effect is visible and the caller may retry.
	ErrTransactionFailure = fmt.Errorf("procurement: transaction failure: %w", shared.ErrRetryable)
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("procurement: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, shared.ErrValidation}
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidStateError reports an operation attempted in a status that forbids it.
type InvalidStateError struct {
	Status    Status
	Operation string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("procurement: cannot %s order in status %s", e.Operation, e.Status)
}

func (e *InvalidStateError) Unwrap() []error {
	return []error{ErrInvalidState, shared.ErrConflict}
}

// InvalidTransitionError reports a status change absent from the transition table,
// or one attempted from a status other than the caller expected.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("procurement: cannot transition order from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() []error {
	return []error{ErrInvalidTransition, shared.ErrConflict}
}
