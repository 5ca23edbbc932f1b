package broker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-service/internal/models"
	"storefront-service/internal/util"
)

// EventPublisher broadcasts order-state changes on the order-events topic.
// Publication is strictly fire-and-forget: delivery failure is logged and
// never surfaces to the store's callers. A nil *EventPublisher is valid and
// publishes nothing, so the broker can be disabled by config.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
}

func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer, logger: util.GetLogger()}
}

// PublishOrderCreated announces a new draft order.
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) {
	if ep == nil {
		return
	}
	event := &models.OrderCreatedEvent{
		BaseEvent:   baseEvent(models.EventTypeOrderCreated),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Total:       order.Total.StringFixed(2),
	}
	ep.publish(ctx, order.ID, event)
}

// PublishOrderUpdated announces an in-place order update.
func (ep *EventPublisher) PublishOrderUpdated(ctx context.Context, order *models.Order) {
	if ep == nil {
		return
	}
	event := &models.OrderUpdatedEvent{
		BaseEvent: baseEvent(models.EventTypeOrderUpdated),
		OrderID:   order.ID,
		Status:    order.Status,
		Order:     order,
	}
	ep.publish(ctx, order.ID, event)
}

// PublishPaymentCompleted announces a settled payment attempt.
func (ep *EventPublisher) PublishPaymentCompleted(ctx context.Context, orderID, txID, method, status string) {
	if ep == nil {
		return
	}
	event := &models.PaymentCompletedEvent{
		BaseEvent:     baseEvent(models.EventTypePaymentCompleted),
		OrderID:       orderID,
		TransactionID: txID,
		Method:        method,
		Status:        status,
	}
	ep.publish(ctx, orderID, event)
}

func (ep *EventPublisher) publish(ctx context.Context, key string, event interface{}) {
	if err := ep.producer.PublishEvent(ctx, key, event); err != nil {
		ep.logger.Warn("Failed to publish order event", zap.String("key", key), zap.Error(err))
	}
}

func baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
