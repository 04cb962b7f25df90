package procurement

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/kitchen/internal/shared"
)

var allStatuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusOrdered, StatusDelivered, StatusCancelled}

func TestTransitionTable(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusApproved}:    true,
		{StatusPending, StatusRejected}:    true,
		{StatusApproved, StatusOrdered}:    true,
		{StatusApproved, StatusCancelled}:  true,
		{StatusOrdered, StatusDelivered}:   true,
		{StatusOrdered, StatusCancelled}:   true,
		{StatusRejected, StatusPending}:    true,
		{StatusCancelled, StatusPending}:   true,
		{StatusDelivered, StatusDelivered}: true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			assert.Equal(t, allowed[[2]Status{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, Status("draft").Valid())
	assert.False(t, Status("draft").CanTransitionTo(StatusPending))
}

func TestHasApprover(t *testing.T) {
	for _, s := range allStatuses {
		want := s == StatusApproved || s == StatusOrdered || s == StatusDelivered
		assert.Equal(t, want, s.HasApprover(), s)
	}
}

func TestErrorClasses(t *testing.T) {
	var err error = &InvalidTransitionError{From: StatusDelivered, To: StatusPending}
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Contains(t, err.Error(), "delivered")
	assert.Contains(t, err.Error(), "pending")

	err = &InvalidStateError{Status: StatusApproved, Operation: "delete"}
	require.ErrorIs(t, err, ErrInvalidState)
	assert.False(t, errors.Is(err, ErrInvalidTransition))

	err = invalidField("items[0].quantity", "must be greater than zero")
	require.ErrorIs(t, err, shared.ErrValidation)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "items[0].quantity", vErr.Field)

	require.ErrorIs(t, ErrTransactionFailure, shared.ErrRetryable)
}
