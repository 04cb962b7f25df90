package shared

import "errors"

// Error classes shared by every module. Domain packages wrap these so the
// transport layer can map failures without knowing each module's sentinels.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the resource is in a state that forbids the operation.
	ErrConflict = errors.New("conflict")
	// ErrDuplicate indicates a request that was already processed.
	ErrDuplicate = errors.New("duplicate request")
	// ErrForbidden indicates the actor lacks authority for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated indicates no actor accompanied the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrRetryable indicates a transient failure; the caller may retry unchanged.
	ErrRetryable = errors.New("retryable failure")
)
