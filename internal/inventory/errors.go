package inventory

import (
	"fmt"

	"github.com/odyssey-erp/kitchen/internal/shared"
)

var (
	// ErrIngredientNotFound indicates the ingredient does not exist.
	ErrIngredientNotFound = fmt.Errorf("inventory: ingredient %w", shared.ErrNotFound)
	// ErrNegativeStock triggered when movement would result negative qty.
	ErrNegativeStock = fmt.Errorf("inventory: negative stock not allowed: %w", shared.ErrConflict)
	// ErrInvalidQuantity indicates a quantity whose sign or magnitude does not fit the movement.
	ErrInvalidQuantity = fmt.Errorf("inventory: invalid quantity: %w", shared.ErrValidation)
	// ErrInvalidUnitPrice indicates invalid price value.
	ErrInvalidUnitPrice = fmt.Errorf("inventory: unit price must be >= 0: %w", shared.ErrValidation)
	// ErrInvalidType indicates an unknown or disallowed movement type.
	ErrInvalidType = fmt.Errorf("inventory: invalid transaction type: %w", shared.ErrValidation)
	// ErrInvalidReference indicates a malformed ledger reference.
	ErrInvalidReference = fmt.Errorf("inventory: invalid reference: %w", shared.ErrValidation)
)
