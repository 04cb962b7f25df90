package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySerializationCodes(t *testing.T) {
	for _, code := range []string{CodeSerializationFailure, CodeDeadlockDetected} {
		err := Classify(fmt.Errorf("exec: %w", &pgconn.PgError{Code: code, Message: "conflict"}))
		require.ErrorIs(t, err, ErrSerialization, code)
		assert.True(t, IsRetryable(err))
	}
}

func TestClassifyUniqueViolation(t *testing.T) {
	err := Classify(&pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "idempotency_keys_pkey"})
	require.ErrorIs(t, err, ErrUniqueViolation)
	assert.False(t, IsRetryable(err))
}

func TestClassifyPassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, Classify(plain))
	assert.Nil(t, Classify(nil))

	fk := &pgconn.PgError{Code: CodeForeignKeyViolation}
	assert.Equal(t, error(fk), Classify(fk))
}
