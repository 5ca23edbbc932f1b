package orders

import (
	"context"

	"go.uber.org/zap"

	"storefront-service/internal/util"
)

// ConfirmResult reports the outcome of the confirmation bridge. Synced false
// with a Warning set means the order exists locally but the backend write
// failed; the order is not lost from the user's perspective.
type ConfirmResult struct {
	OrderID        string `json:"orderId"`
	OrderNumber    string `json:"orderNumber"`
	TrackingNumber string `json:"trackingNumber"`
	ReceiptID      string `json:"receiptId"`
	Synced         bool   `json:"synced"`
	Warning        string `json:"warning,omitempty"`
}

// Confirm is the confirmation-page bridge for an order that finished payment.
// It generates the presentation references (tracking number, receipt id)
// exactly once — repeated calls for the same order reuse what is already on
// the record — POSTs the normalized order to the backend, and merges the
// server-assigned fields back without discarding locally computed display
// data. A failed POST downgrades to a warning.
func (s *Store) Confirm(ctx context.Context, orderID string) ConfirmResult {
	ctx, span := util.StartSpan(ctx, "OrderStore.Confirm")
	defer span.End()

	order := s.Order(orderID)
	if order == nil {
		return ConfirmResult{OrderID: orderID, Synced: false, Warning: "order not found"}
	}

	// Reference generation is guarded: a re-render of the confirmation page
	// must not mint new numbers for the same order.
	refs := map[string]interface{}{}
	if order.TrackingNumber == "" {
		refs["trackingNumber"] = GenerateTrackingNumber()
	}
	if order.ReceiptID == "" {
		refs["receiptId"] = GenerateReceiptID()
	}
	if order.OrderNumber == "" {
		refs["orderNumber"] = GenerateOrderNumber()
	}
	if order.EstimatedDelivery == "" && order.ShippingMethod.EstimatedDelivery != "" {
		refs["estimatedDelivery"] = order.ShippingMethod.EstimatedDelivery
	}
	if len(refs) > 0 {
		if updated := s.UpdateOrder(ctx, orderID, refs); updated != nil {
			order = updated
		}
	}

	result := ConfirmResult{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		TrackingNumber: order.TrackingNumber,
		ReceiptID:      order.ReceiptID,
	}

	resp, err := s.backend.CreateOrder(ctx, order)
	if err != nil {
		util.OrderSyncFailuresTotal.WithLabelValues("create").Inc()
		s.logger.Warn("Order backend sync failed, keeping local copy",
			zap.String("order_id", orderID),
			zap.Error(err))
		result.Warning = "order saved locally but not synced"
		return result
	}

	// Server-assigned fields win; everything else stays as computed locally.
	serverFields := map[string]interface{}{}
	if resp.OrderNumber != "" {
		serverFields["orderNumber"] = resp.OrderNumber
		result.OrderNumber = resp.OrderNumber
	}
	if resp.TrackingNumber != "" {
		serverFields["trackingNumber"] = resp.TrackingNumber
		result.TrackingNumber = resp.TrackingNumber
	}
	if resp.ReceiptID != "" {
		serverFields["receiptId"] = resp.ReceiptID
		result.ReceiptID = resp.ReceiptID
	}
	if len(serverFields) > 0 {
		s.UpdateOrder(ctx, orderID, serverFields)
	}

	s.mu.Lock()
	s.st.TrackingInfo = TrackingInfo{
		TrackingNumber:    result.TrackingNumber,
		EstimatedDelivery: order.EstimatedDelivery,
	}
	s.persistLocked(ctx)
	s.mu.Unlock()

	result.Synced = true
	return result
}
