package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the application reacts to.
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

var (
	// ErrSerialization marks a transaction aborted by a concurrent writer. Retrying is safe.
	ErrSerialization = errors.New("platform/db: serialization failure")
	// ErrUniqueViolation marks an insert that collided with an existing key.
	ErrUniqueViolation = errors.New("platform/db: unique violation")
)

// Classify wraps driver errors with the package sentinels so callers can use errors.Is.
// Errors that are already classified, or that carry no SQLSTATE, are returned untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSerialization) || errors.Is(err, ErrUniqueViolation) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case CodeSerializationFailure, CodeDeadlockDetected:
		return fmt.Errorf("%w: %s", ErrSerialization, pgErr.Message)
	case CodeUniqueViolation:
		return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.ConstraintName)
	}
	return err
}

// IsRetryable reports whether err is a transient transaction conflict.
func IsRetryable(err error) bool {
	return errors.Is(Classify(err), ErrSerialization)
}
