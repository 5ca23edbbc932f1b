package models

import "time"

// Event types broadcast on the store-update topic.
const (
	EventTypeOrderCreated     = "ORDER_CREATED"
	EventTypeOrderUpdated     = "ORDER_UPDATED"
	EventTypePaymentCompleted = "PAYMENT_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when a draft order enters the store
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	UserID      string `json:"user_id,omitempty"`
	Total       string `json:"total"`
}

// OrderUpdatedEvent published after every successful in-place order update
type OrderUpdatedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Order   *Order `json:"order"`
}

// PaymentCompletedEvent published when the payment simulator settles
type PaymentCompletedEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	Method        string `json:"method"`
	Status        string `json:"status"`
}
