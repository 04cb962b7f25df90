package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates supported inventory movements.
type TransactionType string

const (
	// TransactionPurchase is stock received against a delivered purchase order.
	TransactionPurchase TransactionType = "purchase"
	// TransactionUsage is stock consumed by the kitchen.
	TransactionUsage TransactionType = "usage"
	// TransactionAdjustment is a manual stock correction in either direction.
	TransactionAdjustment TransactionType = "adjustment"
	// TransactionWaste is stock discarded as spoiled or damaged.
	TransactionWaste TransactionType = "waste"
	// TransactionReturn is stock sent back to a supplier.
	TransactionReturn TransactionType = "return"
)

// Valid reports whether t is a known movement type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionPurchase, TransactionUsage, TransactionAdjustment, TransactionWaste, TransactionReturn:
		return true
	}
	return false
}

// acceptsDelta reports whether a signed quantity fits the movement type.
func (t TransactionType) acceptsDelta(qty decimal.Decimal) bool {
	switch t {
	case TransactionPurchase:
		return qty.IsPositive()
	case TransactionUsage, TransactionWaste, TransactionReturn:
		return qty.IsNegative()
	case TransactionAdjustment:
		return !qty.IsZero()
	}
	return false
}

// RefKind identifies what a ledger entry was caused by.
type RefKind string

const (
	RefPurchaseOrder RefKind = "PurchaseOrder"
	RefManual        RefKind = "Manual"
	RefRecipeUsage   RefKind = "RecipeUsage"
)

// Reference links a ledger entry to its originating document.
type Reference struct {
	Kind RefKind `json:"kind"`
	ID   int64   `json:"id,omitempty"`
}

// Valid reports whether the reference is well formed. Manual entries carry no document id.
func (r Reference) Valid() bool {
	switch r.Kind {
	case RefPurchaseOrder, RefRecipeUsage:
		return r.ID > 0
	case RefManual:
		return true
	}
	return false
}

// PurchaseOrderRef builds the reference used by the delivery commit.
func PurchaseOrderRef(orderID int64) Reference {
	return Reference{Kind: RefPurchaseOrder, ID: orderID}
}

// Ingredient is a stockable raw material.
type Ingredient struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	CurrentStock  decimal.Decimal `json:"current_stock"`
	MinStockLevel decimal.Decimal `json:"min_stock_level"`
	CostPerUnit   decimal.Decimal `json:"cost_per_unit"`
	Category      string          `json:"category,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BelowReorder reports whether stock has fallen to the reorder threshold.
func (i Ingredient) BelowReorder() bool {
	return i.CurrentStock.LessThanOrEqual(i.MinStockLevel)
}

// Transaction is an immutable ledger entry recording one stock change.
type Transaction struct {
	ID               int64            `json:"id"`
	IngredientID     int64            `json:"ingredient_id"`
	Quantity         decimal.Decimal  `json:"quantity"`
	Type             TransactionType  `json:"transaction_type"`
	Reference        Reference        `json:"reference"`
	PreviousQuantity decimal.Decimal  `json:"previous_quantity"`
	NewQuantity      decimal.Decimal  `json:"new_quantity"`
	UnitPrice        *decimal.Decimal `json:"unit_price,omitempty"`
	UserID           int64            `json:"user_id"`
	Notes            string           `json:"notes,omitempty"`
	TransactionDate  time.Time        `json:"transaction_date"`
}

// LedgerSummary aggregates an ingredient's ledger.
type LedgerSummary struct {
	Entries      int
	Sum          decimal.Decimal
	OpeningStock decimal.Decimal
}

// Reconciliation compares stored stock against the ledger.
type Reconciliation struct {
	IngredientID int64           `json:"ingredient_id"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	OpeningStock decimal.Decimal `json:"opening_stock"`
	LedgerSum    decimal.Decimal `json:"ledger_sum"`
	Entries      int             `json:"entries"`
	Balanced     bool            `json:"balanced"`
}

// Movement describes one stock change to apply inside a transaction.
type Movement struct {
	IngredientID int64
	Quantity     decimal.Decimal
	Type         TransactionType
	Reference    Reference
	UnitPrice    *decimal.Decimal
	ActorID      int64
	Notes        string
}

// ReceiveInput is stock arriving from a supplier.
type ReceiveInput struct {
	IngredientID int64
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	OrderID      int64
	ActorID      int64
}

// MovementInput is a collaborator-reported stock change other than a purchase.
type MovementInput struct {
	IngredientID int64
	Quantity     decimal.Decimal
	Type         TransactionType
	UnitPrice    *decimal.Decimal
	Reference    Reference
	Notes        string
}
