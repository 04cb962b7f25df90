package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/odyssey-erp/kitchen/internal/inventory"
	"github.com/odyssey-erp/kitchen/internal/shared"
)

// Transition moves an order along the status table. The order row is locked for the
// duration so concurrent callers observe each other's writes; a caller whose
// ExpectedStatus no longer matches gets an InvalidTransitionError.
func (s *Service) Transition(ctx context.Context, actor shared.Actor, input TransitionInput) (result TransitionResult, err error) {
	ctx, span := s.startSpan(ctx, "procurement.Transition",
		attribute.Int64("order.id", input.OrderID),
		attribute.String("order.target_status", string(input.Target)))
	defer func() { endSpan(span, err) }()

	if !actor.Valid() {
		return TransitionResult{}, shared.ErrUnauthenticated
	}
	if input.OrderID <= 0 {
		return TransitionResult{}, invalidField("id", "must be positive")
	}
	if !input.Target.Valid() {
		return TransitionResult{}, invalidField("status", fmt.Sprintf("unknown status %q", input.Target))
	}
	if input.ExpectedStatus != "" && !input.ExpectedStatus.Valid() {
		return TransitionResult{}, invalidField("expected_status", fmt.Sprintf("unknown status %q", input.ExpectedStatus))
	}

	release, err := s.lockOrder(ctx, input.OrderID)
	if err != nil {
		return TransitionResult{}, err
	}
	defer release()

	var approval approvalDecision
	err = s.runTx(ctx, "transition", func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		result = TransitionResult{From: order.Status}
		if input.ExpectedStatus != "" && input.ExpectedStatus != order.Status {
			return &InvalidTransitionError{From: order.Status, To: input.Target}
		}
		if !order.Status.CanTransitionTo(input.Target) {
			return &InvalidTransitionError{From: order.Status, To: input.Target}
		}
		if err := s.authorizeTransition(ctx, actor, order, input.Target); err != nil {
			return err
		}
		if order.Status == StatusDelivered {
			result.Order = order
			result.NoOp = true
			return nil
		}

		now := s.now()
		switch input.Target {
		case StatusApproved:
			approver := actor.ID
			order.Status = StatusApproved
			order.ApproverID = &approver
			order.RejectReason = nil
		case StatusRejected:
			order.Status = StatusRejected
			order.ApproverID = nil
			if input.RejectReason != "" {
				reason := input.RejectReason
				order.RejectReason = &reason
			}
		case StatusCancelled:
			order.Status = StatusCancelled
			order.ApproverID = nil
		case StatusOrdered:
			order.Status = StatusOrdered
		case StatusPending:
			order.RejectReason = nil
			approval, err = s.evaluateApproval(ctx, requesterOf(order, actor), order.TotalAmount)
			if err != nil {
				return err
			}
			approval.applyTo(&order, order.RequesterID)
		case StatusDelivered:
			outcomes, err := s.commitDelivery(ctx, tx, actor, &order, now)
			if err != nil {
				return err
			}
			order.Status = StatusDelivered
			result.Delivery = &DeliveryResult{Outcomes: outcomes}
		}
		if input.Notes != "" {
			order.Notes = input.Notes
		}
		order.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		result.Order = order
		return nil
	})
	if err != nil {
		var transitionErr *InvalidTransitionError
		switch {
		case errors.As(err, &transitionErr):
			s.metrics.TransitionRejected("invalid_transition")
		case errors.Is(err, shared.ErrForbidden):
			s.metrics.TransitionRejected("forbidden")
		}
		return TransitionResult{}, err
	}
	if result.NoOp {
		return result, nil
	}
	if result.Delivery != nil {
		result.Delivery.Order = result.Order
	}
	s.afterTransition(ctx, actor, input, result, approval)
	return result, nil
}

// Deliver transitions an ordered order to delivered and returns the per-item outcomes.
func (s *Service) Deliver(ctx context.Context, actor shared.Actor, orderID int64) (DeliveryResult, error) {
	result, err := s.Transition(ctx, actor, TransitionInput{OrderID: orderID, Target: StatusDelivered})
	if err != nil {
		return DeliveryResult{}, err
	}
	if result.Delivery == nil {
		return DeliveryResult{Order: result.Order}, nil
	}
	return *result.Delivery, nil
}

// commitDelivery books every item into stock within tx. Items whose ingredient no
// longer exists are skipped and reported rather than failing the delivery.
func (s *Service) commitDelivery(ctx context.Context, tx TxRepository, actor shared.Actor, order *PurchaseOrder, now time.Time) ([]ItemOutcome, error) {
	invTx := tx.Inventory()
	outcomes := make([]ItemOutcome, 0, len(order.Items))
	for i := range order.Items {
		it := &order.Items[i]
		entry, err := s.inventory.Receive(ctx, invTx, inventory.ReceiveInput{
			IngredientID: it.IngredientID,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			OrderID:      order.ID,
			ActorID:      actor.ID,
		})
		if err != nil {
			if errors.Is(err, inventory.ErrIngredientNotFound) {
				outcomes = append(outcomes, ItemOutcome{ItemID: it.ID, IngredientID: it.IngredientID, Outcome: OutcomeSkippedMissingIngredient})
				continue
			}
			return nil, fmt.Errorf("procurement: receive item %d: %w", it.ID, err)
		}
		it.Status = ItemComplete
		it.ReceivedQuantity = it.Quantity
		if err := tx.UpdateItemReceipt(ctx, *it); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, ItemOutcome{
			ItemID:        it.ID,
			IngredientID:  it.IngredientID,
			Outcome:       OutcomeApplied,
			TransactionID: entry.ID,
			NewStock:      entry.NewQuantity,
		})
	}
	delivered := now
	order.ActualDeliveryDate = &delivered
	return outcomes, nil
}

func (s *Service) afterTransition(ctx context.Context, actor shared.Actor, input TransitionInput, result TransitionResult, approval approvalDecision) {
	order := result.Order
	s.metrics.OrderTransitioned(string(result.From), string(order.Status))

	switch input.Target {
	case StatusApproved:
		s.recordApproval(ctx, order.ID, actor.ID, shared.ApprovalApprove, input.Notes)
	case StatusRejected:
		s.recordApproval(ctx, order.ID, actor.ID, shared.ApprovalReject, input.RejectReason)
	case StatusPending:
		s.recordApproval(ctx, order.ID, actor.ID, shared.ApprovalSubmit, input.Notes)
		if order.AutoApproved {
			s.recordApproval(ctx, order.ID, order.RequesterID, shared.ApprovalAutoApprove, approval.source)
		}
	}

	meta := map[string]any{"from": string(result.From), "to": string(order.Status)}
	if result.Delivery != nil {
		var ingredientIDs []int64
		for _, o := range result.Delivery.Outcomes {
			if o.Outcome == OutcomeApplied {
				ingredientIDs = append(ingredientIDs, o.IngredientID)
				continue
			}
			s.metrics.DeliveryItemSkipped()
			s.logger.Warn("delivery skipped item with missing ingredient",
				slog.Int64("order_id", order.ID),
				slog.Int64("item_id", o.ItemID),
				slog.Int64("ingredient_id", o.IngredientID))
		}
		meta["applied_items"] = len(ingredientIDs)
		meta["skipped_items"] = len(result.Delivery.Skipped())
		if s.events != nil && len(ingredientIDs) > 0 {
			evt := OrderDeliveredEvent{OrderID: order.ID, IngredientIDs: ingredientIDs, DeliveredAt: *order.ActualDeliveryDate}
			if err := s.events.PublishOrderDelivered(ctx, evt); err != nil {
				s.logger.Warn("publish order delivered", slog.Int64("order_id", order.ID), slog.Any("error", err))
			}
		}
	}
	s.recordAudit(ctx, actor.ID, "ORDER_TRANSITION", order.ID, meta)
	s.logger.Info("purchase order transitioned",
		slog.Int64("order_id", order.ID),
		slog.Int64("actor_id", actor.ID),
		slog.String("from", string(result.From)),
		slog.String("to", string(order.Status)))
}
