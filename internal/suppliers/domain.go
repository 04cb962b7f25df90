// Package suppliers is a read-only view of the supplier directory used to
// validate purchase orders.
package suppliers

import (
	"fmt"

	"github.com/odyssey-erp/kitchen/internal/shared"
)

// Supplier represents a supplier entity.
type Supplier struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	IsActive bool   `json:"is_active"`
}

// ErrNotFound indicates the supplier does not exist.
var ErrNotFound = fmt.Errorf("suppliers: supplier %w", shared.ErrNotFound)
