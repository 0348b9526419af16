// Package events publishes order lifecycle notifications.
package events

import (
	"context"
	"time"

	"ecommerce-api/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type names an order lifecycle event
type Type string

const (
	OrderPlaced        Type = "order.placed"
	OrderStatusChanged Type = "order.status_changed"
	OrderCancelled     Type = "order.cancelled"
)

// Event is the payload written for every order transition
type Event struct {
	ID             uuid.UUID          `json:"id"`
	Type           Type               `json:"type"`
	OrderID        uuid.UUID          `json:"order_id"`
	UserID         uuid.UUID          `json:"user_id"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previous_status,omitempty"`
	Total          decimal.Decimal    `json:"total"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// NewOrderEvent snapshots order into an event of the given type
func NewOrderEvent(t Type, order *domain.Order, previous domain.OrderStatus) Event {
	return Event{
		ID:             uuid.New(),
		Type:           t,
		OrderID:        order.ID,
		UserID:         order.UserID,
		Status:         order.Status,
		PreviousStatus: previous,
		Total:          order.Total,
		OccurredAt:     time.Now().UTC(),
	}
}

// Publisher delivers events to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
