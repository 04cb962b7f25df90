package procurement

import (
	"time"

	"github.com/shopspring/decimal"
)

type itemRequest struct {
	IngredientID int64           `json:"ingredient_id" validate:"required,gt=0"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Notes        string          `json:"notes" validate:"max=500"`
}

type createOrderRequest struct {
	SupplierID           int64         `json:"supplier_id" validate:"required,gt=0"`
	ExpectedDeliveryDate *time.Time    `json:"expected_delivery_date"`
	Notes                string        `json:"notes" validate:"max=1000"`
	Items                []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type updateOrderRequest struct {
	SupplierID           *int64         `json:"supplier_id" validate:"omitempty,gt=0"`
	ExpectedDeliveryDate *time.Time     `json:"expected_delivery_date"`
	Notes                *string        `json:"notes" validate:"omitempty,max=1000"`
	Items                *[]itemRequest `json:"items" validate:"omitempty,min=1,dive"`
}

type transitionRequest struct {
	Status         string `json:"status" validate:"required,oneof=pending approved rejected ordered delivered cancelled"`
	ExpectedStatus string `json:"expected_status" validate:"omitempty,oneof=pending approved rejected ordered delivered cancelled"`
	Notes          string `json:"notes" validate:"max=1000"`
	RejectReason   string `json:"reject_reason" validate:"max=500"`
}

type listResponse struct {
	Orders []PurchaseOrder `json:"orders"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func toItemInputs(reqs []itemRequest) []ItemInput {
	items := make([]ItemInput, 0, len(reqs))
	for _, it := range reqs {
		items = append(items, ItemInput(it))
	}
	return items
}

func (req createOrderRequest) toInput(idempotencyKey string) CreateOrderInput {
	return CreateOrderInput{
		SupplierID:           req.SupplierID,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		Notes:                req.Notes,
		Items:                toItemInputs(req.Items),
		IdempotencyKey:       idempotencyKey,
	}
}

func (req updateOrderRequest) toInput() UpdateOrderInput {
	input := UpdateOrderInput{
		SupplierID:           req.SupplierID,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		Notes:                req.Notes,
	}
	if req.Items != nil {
		items := toItemInputs(*req.Items)
		input.Items = &items
	}
	return input
}
