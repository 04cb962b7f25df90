package procurement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/kitchen/internal/shared"
)

type approvalDecision struct {
	approved bool
	source   string
}

// applyTo stamps the decision onto an order awaiting approval.
func (d approvalDecision) applyTo(order *PurchaseOrder, requesterID int64) {
	if d.approved {
		approver := requesterID
		order.Status = StatusApproved
		order.ApproverID = &approver
		order.AutoApproved = true
		return
	}
	order.Status = StatusPending
	order.ApproverID = nil
	order.AutoApproved = false
}

// evaluateApproval applies the administrator predicate first and only then consults
// the permission registry, which has no notion of roles.
func (s *Service) evaluateApproval(ctx context.Context, requester shared.Actor, total decimal.Decimal) (approvalDecision, error) {
	if shared.IsAdmin(requester) {
		return approvalDecision{approved: true, source: "admin"}, nil
	}
	if s.registry == nil {
		return approvalDecision{}, nil
	}
	res, err := s.registry.ResolveAutoApprove(ctx, requester.ID, total)
	if err != nil {
		return approvalDecision{}, fmt.Errorf("procurement: resolve approval authority: %w", err)
	}
	if !res.Approved {
		return approvalDecision{}, nil
	}
	return approvalDecision{approved: true, source: fmt.Sprintf("kitchen_permission:%d", res.PermissionID)}, nil
}

// requesterOf returns the identity whose authority governs re-evaluation. The
// requester's role is only known when they are the acting user; otherwise only
// the registry is consulted.
func requesterOf(order PurchaseOrder, actor shared.Actor) shared.Actor {
	if actor.ID == order.RequesterID {
		return actor
	}
	return shared.Actor{ID: order.RequesterID, Role: shared.RoleOther}
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("procurement: %s: %w", fmt.Sprintf(format, args...), shared.ErrForbidden)
}

// authorizeEdit admits the requester and kitchen or admin staff.
func authorizeEdit(actor shared.Actor, order PurchaseOrder) error {
	if actor.ID == order.RequesterID || shared.HasRole(actor, shared.RoleAdmin, shared.RoleKitchen) {
		return nil
	}
	return forbidden("actor %d may not modify order %d", actor.ID, order.ID)
}

// authorizeTransition checks the actor's authority for moving order to target.
// Approval decisions need administrator rights or delegated authority covering the
// order total, and never come from the requester themselves.
func (s *Service) authorizeTransition(ctx context.Context, actor shared.Actor, order PurchaseOrder, target Status) error {
	switch target {
	case StatusApproved, StatusRejected:
		if shared.IsAdmin(actor) {
			return nil
		}
		if actor.ID == order.RequesterID {
			return forbidden("requester cannot decide on their own order %d", order.ID)
		}
		decision, err := s.evaluateApproval(ctx, actor, order.TotalAmount)
		if err != nil {
			return err
		}
		if !decision.approved {
			return forbidden("actor %d lacks approval authority for %s", actor.ID, order.TotalAmount)
		}
		return nil
	case StatusPending:
		return authorizeEdit(actor, order)
	default:
		if shared.HasRole(actor, shared.RoleAdmin, shared.RoleKitchen) {
			return nil
		}
		return forbidden("role %s may not move orders to %s", actor.Role, target)
	}
}
