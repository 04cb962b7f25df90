package procurement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates purchase order states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusOrdered   Status = "ordered"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// allowedTransitions is the complete transition table. Pairs absent here are rejected.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected},
	StatusApproved:  {StatusOrdered, StatusCancelled},
	StatusOrdered:   {StatusDelivered, StatusCancelled},
	StatusRejected:  {StatusPending},
	StatusCancelled: {StatusPending},
	StatusDelivered: {StatusDelivered},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransitionTo reports whether the table admits s -> target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// HasApprover reports whether orders in this status must carry an approver.
func (s Status) HasApprover() bool {
	switch s {
	case StatusApproved, StatusOrdered, StatusDelivered:
		return true
	}
	return false
}

// CanEdit reports whether header fields and items may still change.
func (s Status) CanEdit() bool {
	return s == StatusPending || s == StatusApproved
}

// CanDelete reports whether the order may be destroyed.
func (s Status) CanDelete() bool {
	return s == StatusPending
}

// ItemStatus tracks receipt of a line item.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemPartial   ItemStatus = "partial"
	ItemComplete  ItemStatus = "complete"
	ItemCancelled ItemStatus = "cancelled"
)

// PurchaseOrder is the procurement aggregate root.
type PurchaseOrder struct {
	ID                   int64           `json:"id"`
	SupplierID           int64           `json:"supplier_id"`
	RequesterID          int64           `json:"requester_id"`
	ApproverID           *int64          `json:"approver_id"`
	OrderDate            time.Time       `json:"order_date"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date,omitempty"`
	ActualDeliveryDate   *time.Time      `json:"actual_delivery_date,omitempty"`
	Status               Status          `json:"status"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	Notes                string          `json:"notes,omitempty"`
	RejectReason         *string         `json:"reject_reason,omitempty"`
	AutoApproved         bool            `json:"auto_approved"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	Items                []Item          `json:"items"`
}

// Item is one ingredient line of a purchase order.
type Item struct {
	ID               int64           `json:"id"`
	PurchaseOrderID  int64           `json:"purchase_order_id"`
	IngredientID     int64           `json:"ingredient_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	Status           ItemStatus      `json:"status"`
	Notes            string          `json:"notes,omitempty"`
}

// ItemInput is a requested line item.
type ItemInput struct {
	IngredientID int64
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	Notes        string
}

// CreateOrderInput describes a new purchase order.
type CreateOrderInput struct {
	SupplierID           int64
	ExpectedDeliveryDate *time.Time
	Notes                string
	Items                []ItemInput
	IdempotencyKey       string
}

// UpdateOrderInput patches an editable order. Nil fields are left unchanged;
// a non-nil Items replaces the whole item set.
type UpdateOrderInput struct {
	SupplierID           *int64
	ExpectedDeliveryDate *time.Time
	Notes                *string
	Items                *[]ItemInput
}

// TransitionInput requests a status change.
type TransitionInput struct {
	OrderID        int64
	Target         Status
	Notes          string
	RejectReason   string
	ExpectedStatus Status
}

// ListFilters narrows order listings.
type ListFilters struct {
	Status      Status
	From        time.Time
	To          time.Time
	SupplierID  int64
	RequesterID int64
	Limit       int
	Offset      int
}

// ItemOutcomeKind classifies what the delivery commit did with one item.
type ItemOutcomeKind string

const (
	OutcomeApplied                  ItemOutcomeKind = "applied"
	OutcomeSkippedMissingIngredient ItemOutcomeKind = "skipped_missing_ingredient"
)

// ItemOutcome reports the delivery result of one item.
type ItemOutcome struct {
	ItemID        int64           `json:"item_id"`
	IngredientID  int64           `json:"ingredient_id"`
	Outcome       ItemOutcomeKind `json:"outcome"`
	TransactionID int64           `json:"transaction_id,omitempty"`
	NewStock      decimal.Decimal `json:"new_stock"`
}

// DeliveryResult is returned by a delivery commit.
type DeliveryResult struct {
	Order    PurchaseOrder `json:"order"`
	Outcomes []ItemOutcome `json:"outcomes"`
}

// Skipped returns the outcomes of items that were not applied to stock.
func (d DeliveryResult) Skipped() []ItemOutcome {
	var out []ItemOutcome
	for _, o := range d.Outcomes {
		if o.Outcome != OutcomeApplied {
			out = append(out, o)
		}
	}
	return out
}

// TransitionResult describes a completed status change.
type TransitionResult struct {
	Order    PurchaseOrder   `json:"order"`
	From     Status          `json:"from"`
	NoOp     bool            `json:"no_op"`
	Delivery *DeliveryResult `json:"delivery,omitempty"`
}

// Stored scales of purchase_order_items and purchase_orders. Inputs finer than
// these are rejected so persisted amounts match the computed ones.
const (
	QuantityScale int32 = 3
	MoneyScale    int32 = 2
)

// lineTotal prices one line at money scale.
func lineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(MoneyScale)
}

func fitsScale(d decimal.Decimal, scale int32) bool {
	return d.Equal(d.Truncate(scale))
}

func sumItems(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.TotalPrice)
	}
	return total
}
