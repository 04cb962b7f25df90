package kitchenperm

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/kitchen/internal/shared"
)

// RepositoryPort is the storage used by Registry.
type RepositoryPort interface {
	ListForUser(ctx context.Context, userID int64) ([]Permission, error)
	Get(ctx context.Context, id int64) (Permission, error)
	Insert(ctx context.Context, p Permission) (Permission, error)
	Update(ctx context.Context, p Permission) (Permission, error)
}

// AuditPort records registry changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Registry resolves and manages delegated approval authority.
type Registry struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry constructs Registry.
func NewRegistry(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// ResolveAutoApprove decides whether userID may self-approve an order worth orderTotal.
// The first active, unexpired record with auto-approval enabled decides; later records
// are not consulted. The lookup carries no notion of roles.
func (r *Registry) ResolveAutoApprove(ctx context.Context, userID int64, orderTotal decimal.Decimal) (Resolution, error) {
	if userID <= 0 {
		return Resolution{}, nil
	}
	perms, err := r.repo.ListForUser(ctx, userID)
	if err != nil {
		return Resolution{}, fmt.Errorf("kitchenperm: list for user: %w", err)
	}
	now := r.now()
	for _, p := range perms {
		if !p.Active(now) || !p.CanAutoApprove {
			continue
		}
		return Resolution{Approved: p.Covers(orderTotal), PermissionID: p.ID, MaxOrderValue: p.MaxOrderValue}, nil
	}
	return Resolution{}, nil
}

func requireAdmin(actor shared.Actor) error {
	if !shared.IsAdmin(actor) {
		return fmt.Errorf("kitchenperm: admin required: %w", shared.ErrForbidden)
	}
	return nil
}

// Grant creates a permission on behalf of an administrator.
func (r *Registry) Grant(ctx context.Context, actor shared.Actor, input GrantInput) (Permission, error) {
	if err := requireAdmin(actor); err != nil {
		return Permission{}, err
	}
	if input.UserID <= 0 {
		return Permission{}, fmt.Errorf("%w: user_id required", ErrValidation)
	}
	if input.MaxOrderValue != nil && input.MaxOrderValue.IsNegative() {
		return Permission{}, fmt.Errorf("%w: max_order_value must be >= 0", ErrValidation)
	}
	created, err := r.repo.Insert(ctx, Permission{
		UserID:         input.UserID,
		GrantedByID:    actor.ID,
		CanAutoApprove: input.CanAutoApprove,
		MaxOrderValue:  input.MaxOrderValue,
		ExpiresAt:      input.ExpiresAt,
		IsActive:       true,
		Notes:          input.Notes,
		CreatedAt:      r.now().UTC(),
	})
	if err != nil {
		return Permission{}, err
	}
	r.recordAudit(ctx, actor, "KITCHEN_PERMISSION_GRANT", created)
	return created, nil
}

// Update patches a permission.
func (r *Registry) Update(ctx context.Context, actor shared.Actor, id int64, input UpdateInput) (Permission, error) {
	if err := requireAdmin(actor); err != nil {
		return Permission{}, err
	}
	current, err := r.repo.Get(ctx, id)
	if err != nil {
		return Permission{}, err
	}
	if input.CanAutoApprove != nil {
		current.CanAutoApprove = *input.CanAutoApprove
	}
	switch {
	case input.ClearMaxValue:
		current.MaxOrderValue = nil
	case input.MaxOrderValue != nil:
		if input.MaxOrderValue.IsNegative() {
			return Permission{}, fmt.Errorf("%w: max_order_value must be >= 0", ErrValidation)
		}
		current.MaxOrderValue = input.MaxOrderValue
	}
	switch {
	case input.ClearExpiry:
		current.ExpiresAt = nil
	case input.ExpiresAt != nil:
		current.ExpiresAt = input.ExpiresAt
	}
	if input.IsActive != nil {
		current.IsActive = *input.IsActive
	}
	if input.Notes != nil {
		current.Notes = *input.Notes
	}
	updated, err := r.repo.Update(ctx, current)
	if err != nil {
		return Permission{}, err
	}
	r.recordAudit(ctx, actor, "KITCHEN_PERMISSION_UPDATE", updated)
	return updated, nil
}

// Revoke deactivates a permission. The record is kept for history.
func (r *Registry) Revoke(ctx context.Context, actor shared.Actor, id int64) (Permission, error) {
	inactive := false
	return r.Update(ctx, actor, id, UpdateInput{IsActive: &inactive})
}

// ListForUser returns a user's permissions.
func (r *Registry) ListForUser(ctx context.Context, actor shared.Actor, userID int64) ([]Permission, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user_id required", ErrValidation)
	}
	return r.repo.ListForUser(ctx, userID)
}

// Get returns a permission by id.
func (r *Registry) Get(ctx context.Context, actor shared.Actor, id int64) (Permission, error) {
	if err := requireAdmin(actor); err != nil {
		return Permission{}, err
	}
	return r.repo.Get(ctx, id)
}

func (r *Registry) recordAudit(ctx context.Context, actor shared.Actor, action string, p Permission) {
	if r.audit == nil {
		return
	}
	meta := map[string]any{
		"user_id":          p.UserID,
		"can_auto_approve": p.CanAutoApprove,
		"is_active":        p.IsActive,
	}
	if p.MaxOrderValue != nil {
		meta["max_order_value"] = p.MaxOrderValue.String()
	}
	err := r.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "kitchen_permission",
		EntityID: strconv.FormatInt(p.ID, 10),
		Meta:     meta,
	})
	if err != nil {
		r.logger.Warn("kitchen permission audit", slog.Int64("permission_id", p.ID), slog.Any("error", err))
	}
}
