package procurement

import (
	"context"
	"time"
)

// OrderDeliveredEvent is published after a delivery commit succeeds.
type OrderDeliveredEvent struct {
	OrderID       int64     `json:"order_id"`
	IngredientIDs []int64   `json:"ingredient_ids"`
	DeliveredAt   time.Time `json:"delivered_at"`
}

// EventPublisher receives workflow events once their transaction has committed.
type EventPublisher interface {
	PublishOrderDelivered(ctx context.Context, evt OrderDeliveredEvent) error
}
