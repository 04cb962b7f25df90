package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/kitchen/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetIngredient(ctx context.Context, id int64) (Ingredient, error)
	ListLowStock(ctx context.Context, ids []int64) ([]Ingredient, error)
	ListIngredientIDs(ctx context.Context) ([]int64, error)
	ListTransactions(ctx context.Context, ingredientID int64, limit int) ([]Transaction, error)
	LedgerSnapshot(ctx context.Context, ingredientID int64) (Ingredient, LedgerSummary, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory operations.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
	group  singleflight.Group
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Apply locks the ingredient row, moves its stock by m.Quantity and appends the
// matching ledger entry. It must run inside the caller's transaction so the stock
// update and the ledger append commit or roll back together.
func Apply(ctx context.Context, tx TxRepository, m Movement, at time.Time) (Transaction, error) {
	ing, err := tx.GetIngredientForUpdate(ctx, m.IngredientID)
	if err != nil {
		return Transaction{}, err
	}
	newQty := ing.CurrentStock.Add(m.Quantity)
	if newQty.IsNegative() {
		return Transaction{}, fmt.Errorf("%w: ingredient %d has %s, change %s", ErrNegativeStock, ing.ID, ing.CurrentStock, m.Quantity)
	}
	if err := tx.UpdateStock(ctx, ing.ID, newQty, at); err != nil {
		return Transaction{}, err
	}
	entry := Transaction{
		IngredientID:     ing.ID,
		Quantity:         m.Quantity,
		Type:             m.Type,
		Reference:        m.Reference,
		PreviousQuantity: ing.CurrentStock,
		NewQuantity:      newQty,
		UnitPrice:        m.UnitPrice,
		UserID:           m.ActorID,
		Notes:            m.Notes,
		TransactionDate:  at,
	}
	id, err := tx.AppendTransaction(ctx, entry)
	if err != nil {
		return Transaction{}, err
	}
	entry.ID = id
	return entry, nil
}

// Receive books delivered stock against a purchase order within tx.
func (s *Service) Receive(ctx context.Context, tx TxRepository, input ReceiveInput) (Transaction, error) {
	if input.IngredientID <= 0 {
		return Transaction{}, fmt.Errorf("%w: ingredient required", ErrInvalidReference)
	}
	if !input.Quantity.IsPositive() {
		return Transaction{}, ErrInvalidQuantity
	}
	if input.UnitPrice.IsNegative() {
		return Transaction{}, ErrInvalidUnitPrice
	}
	price := input.UnitPrice
	return Apply(ctx, tx, Movement{
		IngredientID: input.IngredientID,
		Quantity:     input.Quantity,
		Type:         TransactionPurchase,
		Reference:    PurchaseOrderRef(input.OrderID),
		UnitPrice:    &price,
		ActorID:      input.ActorID,
	}, s.now())
}

// RecordMovement books a usage, waste, adjustment or return reported by kitchen staff.
// Purchases are reserved for the delivery commit.
func (s *Service) RecordMovement(ctx context.Context, actor shared.Actor, input MovementInput) (Transaction, error) {
	if !shared.HasRole(actor, shared.RoleAdmin, shared.RoleKitchen) {
		return Transaction{}, fmt.Errorf("inventory: record movement: %w", shared.ErrForbidden)
	}
	if !input.Type.Valid() || input.Type == TransactionPurchase {
		return Transaction{}, ErrInvalidType
	}
	if !input.Type.acceptsDelta(input.Quantity) {
		return Transaction{}, fmt.Errorf("%w: %s of %s", ErrInvalidQuantity, input.Type, input.Quantity)
	}
	if input.UnitPrice != nil && input.UnitPrice.IsNegative() {
		return Transaction{}, ErrInvalidUnitPrice
	}
	if input.Reference.Kind == "" {
		input.Reference = Reference{Kind: RefManual}
	}
	if !input.Reference.Valid() || input.Reference.Kind == RefPurchaseOrder {
		return Transaction{}, ErrInvalidReference
	}

	var entry Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = Apply(ctx, tx, Movement{
			IngredientID: input.IngredientID,
			Quantity:     input.Quantity,
			Type:         input.Type,
			Reference:    input.Reference,
			UnitPrice:    input.UnitPrice,
			ActorID:      actor.ID,
			Notes:        input.Notes,
		}, s.now())
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   fmt.Sprintf("inventory:%s", entry.Type),
			Entity:   "inventory_transaction",
			EntityID: strconv.FormatInt(entry.ID, 10),
			Meta: map[string]any{
				"ingredient_id": entry.IngredientID,
				"quantity":      entry.Quantity.String(),
				"new_quantity":  entry.NewQuantity.String(),
			},
		}); err != nil {
			s.logger.Warn("inventory audit", slog.Int64("transaction_id", entry.ID), slog.Any("error", err))
		}
	}
	return entry, nil
}

// GetIngredient returns a single ingredient.
func (s *Service) GetIngredient(ctx context.Context, id int64) (Ingredient, error) {
	return s.repo.GetIngredient(ctx, id)
}

// ListTransactions returns recent ledger entries, newest first.
func (s *Service) ListTransactions(ctx context.Context, ingredientID int64, limit int) ([]Transaction, error) {
	if _, err := s.repo.GetIngredient(ctx, ingredientID); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, ingredientID, shared.ClampLimit(limit))
}

// ListLowStock returns ingredients at or below reorder level. An empty ids slice scans everything.
// Concurrent identical scans share one query.
func (s *Service) ListLowStock(ctx context.Context, ids []int64) ([]Ingredient, error) {
	key := lowStockKey(ids)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.repo.ListLowStock(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	items := v.([]Ingredient)
	return append([]Ingredient(nil), items...), nil
}

func lowStockKey(ids []int64) string {
	if len(ids) == 0 {
		return "low-stock:all"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "low-stock:" + strings.Join(parts, ",")
}

// ListIngredientIDs exposes every ingredient id for batch jobs.
func (s *Service) ListIngredientIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ListIngredientIDs(ctx)
}

// Reconcile checks that stored stock equals the opening stock plus the sum of ledger entries.
func (s *Service) Reconcile(ctx context.Context, ingredientID int64) (Reconciliation, error) {
	ing, summary, err := s.repo.LedgerSnapshot(ctx, ingredientID)
	if err != nil {
		if errors.Is(err, ErrIngredientNotFound) {
			return Reconciliation{}, err
		}
		return Reconciliation{}, fmt.Errorf("inventory: ledger snapshot: %w", err)
	}
	rec := Reconciliation{
		IngredientID: ing.ID,
		CurrentStock: ing.CurrentStock,
		LedgerSum:    summary.Sum,
		Entries:      summary.Entries,
	}
	if summary.Entries == 0 {
		rec.OpeningStock = ing.CurrentStock
		rec.Balanced = true
		return rec, nil
	}
	rec.OpeningStock = summary.OpeningStock
	rec.Balanced = ing.CurrentStock.Equal(summary.OpeningStock.Add(summary.Sum))
	if !rec.Balanced {
		s.logger.Warn("inventory ledger imbalance",
			slog.Int64("ingredient_id", ing.ID),
			slog.String("current_stock", ing.CurrentStock.String()),
			slog.String("expected_stock", summary.OpeningStock.Add(summary.Sum).String()))
	}
	return rec, nil
}

// IsNotFound reports whether err denotes a missing ingredient.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrIngredientNotFound)
}
