// Package kitchenperm holds the registry of delegated auto-approval authority
// granted to kitchen staff.
package kitchenperm

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/kitchen/internal/shared"
)

// Permission grants a user the right to have their own purchase orders approved on submission.
type Permission struct {
	ID             int64            `json:"id"`
	UserID         int64            `json:"user_id"`
	GrantedByID    int64            `json:"granted_by_id"`
	CanAutoApprove bool             `json:"can_auto_approve"`
	MaxOrderValue  *decimal.Decimal `json:"max_order_value,omitempty"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	IsActive       bool             `json:"is_active"`
	Notes          string           `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Active reports whether the record is in force at now.
func (p Permission) Active(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	return p.ExpiresAt == nil || now.Before(*p.ExpiresAt)
}

// Covers reports whether the record's value cap admits total. A nil cap is unlimited.
func (p Permission) Covers(total decimal.Decimal) bool {
	return p.MaxOrderValue == nil || total.LessThanOrEqual(*p.MaxOrderValue)
}

// Resolution is the outcome of an auto-approval lookup.
type Resolution struct {
	Approved      bool
	PermissionID  int64
	MaxOrderValue *decimal.Decimal
}

// GrantInput creates a permission.
type GrantInput struct {
	UserID         int64
	CanAutoApprove bool
	MaxOrderValue  *decimal.Decimal
	ExpiresAt      *time.Time
	Notes          string
}

// UpdateInput patches a permission. Nil fields are left unchanged.
type UpdateInput struct {
	CanAutoApprove *bool
	MaxOrderValue  *decimal.Decimal
	ClearMaxValue  bool
	ExpiresAt      *time.Time
	ClearExpiry    bool
	IsActive       *bool
	Notes          *string
}

var (
	// ErrNotFound indicates the permission record does not exist.
	ErrNotFound = fmt.Errorf("kitchenperm: permission %w", shared.ErrNotFound)
	// ErrValidation indicates invalid grant input.
	ErrValidation = fmt.Errorf("kitchenperm: %w", shared.ErrValidation)
)
