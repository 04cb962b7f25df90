package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/odyssey-erp/kitchen/internal/inventory"
	"github.com/odyssey-erp/kitchen/internal/kitchenperm"
	"github.com/odyssey-erp/kitchen/internal/platform/db"
	"github.com/odyssey-erp/kitchen/internal/platform/lock"
	"github.com/odyssey-erp/kitchen/internal/shared"
	"github.com/odyssey-erp/kitchen/internal/suppliers"
)

const (
	moduleName  = "procurement.order"
	auditEntity = "purchase_order"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListOrders(ctx context.Context, filters ListFilters) ([]PurchaseOrder, int, error)
}

// InventoryPort applies received stock inside the caller's transaction.
type InventoryPort interface {
	Receive(ctx context.Context, tx inventory.TxRepository, input inventory.ReceiveInput) (inventory.Transaction, error)
}

// RegistryPort resolves delegated approval authority.
type RegistryPort interface {
	ResolveAutoApprove(ctx context.Context, userID int64, orderTotal decimal.Decimal) (kitchenperm.Resolution, error)
}

// SupplierPort resolves suppliers referenced by orders.
type SupplierPort interface {
	Get(ctx context.Context, id int64) (suppliers.Supplier, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalPort records the approval trail.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// IdempotencyPort claims client supplied request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// LockerPort serialises work on one order across processes.
type LockerPort interface {
	Obtain(ctx context.Context, key string) (lock.Handle, error)
}

// MetricsPort receives workflow counters.
type MetricsPort interface {
	OrderCreated(status string, autoApproved bool)
	OrderTransitioned(from, to string)
	TransitionRejected(reason string)
	DeliveryItemSkipped()
	TransactionRetried(operation string)
}

// Dependencies groups the collaborators of Service. Repo, Inventory and Registry are required.
type Dependencies struct {
	Repo        RepositoryPort
	Inventory   InventoryPort
	Registry    RegistryPort
	Suppliers   SupplierPort
	Approvals   ApprovalPort
	Audit       AuditPort
	Idempotency IdempotencyPort
	Locker      LockerPort
	Events      EventPublisher
	Metrics     MetricsPort
	Logger      *slog.Logger
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// TxRetries is how many times a serialization conflict is retried before
	// ErrTransactionFailure is returned.
	TxRetries int
	// RetryBackoff is the pause between retries.
	RetryBackoff time.Duration
}

// Service orchestrates the purchase order workflow.
type Service struct {
	repo        RepositoryPort
	inventory   InventoryPort
	registry    RegistryPort
	suppliers   SupplierPort
	approvals   ApprovalPort
	audit       AuditPort
	idempotency IdempotencyPort
	locker      LockerPort
	events      EventPublisher
	metrics     MetricsPort
	logger      *slog.Logger
	tracer      trace.Tracer
	cfg         ServiceConfig
	now         func() time.Time
}

// NewService constructs procurement service.
func NewService(deps Dependencies, cfg ServiceConfig) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if cfg.TxRetries < 0 {
		cfg.TxRetries = 0
	}
	return &Service{
		repo:        deps.Repo,
		inventory:   deps.Inventory,
		registry:    deps.Registry,
		suppliers:   deps.Suppliers,
		approvals:   deps.Approvals,
		audit:       deps.Audit,
		idempotency: deps.Idempotency,
		locker:      deps.Locker,
		events:      deps.Events,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		tracer:      otel.Tracer("github.com/odyssey-erp/kitchen/internal/procurement"),
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder validates and persists a new order. The requester's approval authority
// decides whether it starts approved or pending.
func (s *Service) CreateOrder(ctx context.Context, actor shared.Actor, input CreateOrderInput) (order PurchaseOrder, err error) {
	ctx, span := s.startSpan(ctx, "procurement.CreateOrder", attribute.Int64("actor.id", actor.ID))
	defer func() { endSpan(span, err) }()

	if !actor.Valid() {
		return PurchaseOrder{}, shared.ErrUnauthenticated
	}
	if err := s.validateSupplier(ctx, input.SupplierID); err != nil {
		return PurchaseOrder{}, err
	}
	items, err := buildItems(input.Items)
	if err != nil {
		return PurchaseOrder{}, err
	}
	total := sumItems(items)

	approval, err := s.evaluateApproval(ctx, actor, total)
	if err != nil {
		return PurchaseOrder{}, err
	}

	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, moduleName); err != nil {
			return PurchaseOrder{}, err
		}
		defer func() {
			if err != nil {
				if delErr := s.idempotency.Delete(context.WithoutCancel(ctx), input.IdempotencyKey, moduleName); delErr != nil {
					s.logger.Warn("release idempotency key", slog.String("key", input.IdempotencyKey), slog.Any("error", delErr))
				}
			}
		}()
	}

	now := s.now()
	draft := PurchaseOrder{
		SupplierID:           input.SupplierID,
		RequesterID:          actor.ID,
		OrderDate:            now,
		ExpectedDeliveryDate: input.ExpectedDeliveryDate,
		TotalAmount:          total,
		Notes:                input.Notes,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	approval.applyTo(&draft, actor.ID)

	err = s.runTx(ctx, "create", func(ctx context.Context, tx TxRepository) error {
		order = draft
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		order.Items = make([]Item, 0, len(items))
		for _, it := range items {
			it.PurchaseOrderID = id
			itemID, err := tx.InsertItem(ctx, it)
			if err != nil {
				return err
			}
			it.ID = itemID
			order.Items = append(order.Items, it)
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	s.metrics.OrderCreated(string(order.Status), order.AutoApproved)
	s.recordApproval(ctx, order.ID, actor.ID, shared.ApprovalSubmit, order.Notes)
	if order.AutoApproved {
		s.recordApproval(ctx, order.ID, actor.ID, shared.ApprovalAutoApprove, approval.source)
	}
	s.recordAudit(ctx, actor.ID, "ORDER_CREATE", order.ID, map[string]any{
		"status":        string(order.Status),
		"total_amount":  order.TotalAmount.String(),
		"auto_approved": order.AutoApproved,
		"items":         len(order.Items),
	})
	s.logger.Info("purchase order created",
		slog.Int64("order_id", order.ID),
		slog.Int64("requester_id", actor.ID),
		slog.String("status", string(order.Status)),
		slog.String("total", order.TotalAmount.String()))
	return order, nil
}

// GetOrder returns an order with its items.
func (s *Service) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	if id <= 0 {
		return PurchaseOrder{}, invalidField("id", "must be positive")
	}
	return s.repo.GetOrder(ctx, id)
}

// ListOrders returns a page of orders matching filters and the total match count.
func (s *Service) ListOrders(ctx context.Context, filters ListFilters) ([]PurchaseOrder, int, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, invalidField("status", fmt.Sprintf("unknown status %q", filters.Status))
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.To.Before(filters.From) {
		return nil, 0, invalidField("to", "must not precede from")
	}
	filters.Limit = shared.ClampLimit(filters.Limit)
	if filters.Offset < 0 {
		filters.Offset = 0
	}
	return s.repo.ListOrders(ctx, filters)
}

// UpdateOrder edits a pending or approved order. Replacing the items recomputes the
// total and re-runs the requester's approval evaluation.
func (s *Service) UpdateOrder(ctx context.Context, actor shared.Actor, id int64, input UpdateOrderInput) (order PurchaseOrder, err error) {
	ctx, span := s.startSpan(ctx, "procurement.UpdateOrder", attribute.Int64("order.id", id))
	defer func() { endSpan(span, err) }()

	if !actor.Valid() {
		return PurchaseOrder{}, shared.ErrUnauthenticated
	}
	if input.SupplierID != nil {
		if err := s.validateSupplier(ctx, *input.SupplierID); err != nil {
			return PurchaseOrder{}, err
		}
	}
	var items []Item
	if input.Items != nil {
		if items, err = buildItems(*input.Items); err != nil {
			return PurchaseOrder{}, err
		}
	}

	release, err := s.lockOrder(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer release()

	var (
		approval   approvalDecision
		reapproved bool
	)
	err = s.runTx(ctx, "update", func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeEdit(actor, current); err != nil {
			return err
		}
		if !current.Status.CanEdit() {
			return &InvalidStateError{Status: current.Status, Operation: "update"}
		}
		order = current
		if input.SupplierID != nil {
			order.SupplierID = *input.SupplierID
		}
		if input.ExpectedDeliveryDate != nil {
			order.ExpectedDeliveryDate = input.ExpectedDeliveryDate
		}
		if input.Notes != nil {
			order.Notes = *input.Notes
		}
		if input.Items != nil {
			if err := tx.DeleteItems(ctx, id); err != nil {
				return err
			}
			order.Items = make([]Item, 0, len(items))
			for _, it := range items {
				it.PurchaseOrderID = id
				itemID, err := tx.InsertItem(ctx, it)
				if err != nil {
					return err
				}
				it.ID = itemID
				order.Items = append(order.Items, it)
			}
			order.TotalAmount = sumItems(order.Items)
			approval, err = s.evaluateApproval(ctx, requesterOf(order, actor), order.TotalAmount)
			if err != nil {
				return err
			}
			approval.applyTo(&order, order.RequesterID)
			reapproved = true
		}
		order.UpdatedAt = s.now()
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	meta := map[string]any{"status": string(order.Status), "total_amount": order.TotalAmount.String()}
	if reapproved {
		meta["items_replaced"] = len(order.Items)
		meta["auto_approved"] = order.AutoApproved
		if order.AutoApproved {
			s.recordApproval(ctx, order.ID, order.RequesterID, shared.ApprovalAutoApprove, approval.source)
		}
	}
	s.recordAudit(ctx, actor.ID, "ORDER_UPDATE", order.ID, meta)
	return order, nil
}

// DeleteOrder removes a pending order and its items.
func (s *Service) DeleteOrder(ctx context.Context, actor shared.Actor, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "procurement.DeleteOrder", attribute.Int64("order.id", id))
	defer func() { endSpan(span, err) }()

	if !actor.Valid() {
		return shared.ErrUnauthenticated
	}
	release, err := s.lockOrder(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	err = s.runTx(ctx, "delete", func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeEdit(actor, current); err != nil {
			return err
		}
		if !current.Status.CanDelete() {
			return &InvalidStateError{Status: current.Status, Operation: "delete"}
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "ORDER_DELETE", id, nil)
	return nil
}

func (s *Service) validateSupplier(ctx context.Context, supplierID int64) error {
	if supplierID <= 0 {
		return invalidField("supplier_id", "is required")
	}
	if s.suppliers == nil {
		return nil
	}
	sup, err := s.suppliers.Get(ctx, supplierID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return invalidField("supplier_id", fmt.Sprintf("supplier %d does not exist", supplierID))
		}
		return fmt.Errorf("procurement: resolve supplier: %w", err)
	}
	if !sup.IsActive {
		return invalidField("supplier_id", fmt.Sprintf("supplier %d is inactive", supplierID))
	}
	return nil
}

func buildItems(inputs []ItemInput) ([]Item, error) {
	if len(inputs) == 0 {
		return nil, invalidField("items", "at least one item is required")
	}
	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		if in.IngredientID <= 0 {
			return nil, invalidField(fmt.Sprintf("items[%d].ingredient_id", i), "is required")
		}
		if !in.Quantity.IsPositive() {
			return nil, invalidField(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero")
		}
		if !fitsScale(in.Quantity, QuantityScale) {
			return nil, invalidField(fmt.Sprintf("items[%d].quantity", i), fmt.Sprintf("must have at most %d decimal places", QuantityScale))
		}
		if in.UnitPrice.IsNegative() {
			return nil, invalidField(fmt.Sprintf("items[%d].unit_price", i), "must not be negative")
		}
		if !fitsScale(in.UnitPrice, MoneyScale) {
			return nil, invalidField(fmt.Sprintf("items[%d].unit_price", i), fmt.Sprintf("must have at most %d decimal places", MoneyScale))
		}
		items = append(items, Item{
			IngredientID:     in.IngredientID,
			Quantity:         in.Quantity,
			UnitPrice:        in.UnitPrice,
			TotalPrice:       lineTotal(in.Quantity, in.UnitPrice),
			ReceivedQuantity: decimal.Zero,
			Status:           ItemPending,
			Notes:            in.Notes,
		})
	}
	return items, nil
}

// runTx executes fn atomically, retrying serialization conflicts. Business-rule
// errors are returned on the first occurrence.
func (s *Service) runTx(ctx context.Context, operation string, fn func(context.Context, TxRepository) error) error {
	var err error
	for attempt := 0; attempt <= s.cfg.TxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.TransactionRetried(operation)
			s.logger.Warn("retrying procurement transaction", slog.String("operation", operation), slog.Int("attempt", attempt), slog.Any("error", err))
			if s.cfg.RetryBackoff > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.cfg.RetryBackoff * time.Duration(attempt)):
				}
			}
		}
		err = s.repo.WithTx(ctx, fn)
		if err == nil || !db.IsRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrTransactionFailure, operation, err)
}

func (s *Service) lockOrder(ctx context.Context, id int64) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	handle, err := s.locker.Obtain(ctx, shared.OrderLockKey(id))
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return nil, fmt.Errorf("%w: order %d is busy", ErrTransactionFailure, id)
		}
		return nil, err
	}
	return func() {
		if err := handle.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release order lock", slog.Int64("order_id", id), slog.Any("error", err))
		}
	}, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   auditEntity,
		EntityID: strconv.FormatInt(orderID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("procurement audit", slog.String("action", action), slog.Int64("order_id", orderID), slog.Any("error", err))
	}
}

func (s *Service) recordApproval(ctx context.Context, orderID, actorID int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	if err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  moduleName,
		RefID:   shared.ApprovalRef(moduleName, orderID),
		ActorID: actorID,
		Action:  action,
		Note:    note,
	}); err != nil {
		s.logger.Warn("procurement approval log", slog.String("action", string(action)), slog.Int64("order_id", orderID), slog.Any("error", err))
	}
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

type noopMetrics struct{}

func (noopMetrics) OrderCreated(string, bool)        {}
func (noopMetrics) OrderTransitioned(string, string) {}
func (noopMetrics) TransitionRejected(string)        {}
func (noopMetrics) DeliveryItemSkipped()             {}
func (noopMetrics) TransactionRetried(string)        {}
