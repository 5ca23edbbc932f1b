package checkout

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront-service/internal/models"
	"storefront-service/internal/orders"
)

// buildDraft assembles the normalized order payload from the collected
// checkout state. Totals are always derived here from their inputs, never
// carried over from earlier computations.
func (m *Machine) buildDraft() (*models.OrderDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []models.OrderItem
	if m.fromCart {
		for _, line := range m.cart.Items() {
			items = append(items, models.OrderItem{
				ProductID: line.ProductID,
				Name:      line.Name,
				Price:     line.Price,
				Image:     line.Image,
				Color:     line.Color,
				ColorName: line.ColorName,
				Size:      line.Size,
				Quantity:  line.Quantity,
			})
		}
		if len(items) == 0 {
			return nil, errors.New("Your cart is empty")
		}
	} else {
		if m.buyNow == nil {
			return nil, errors.New("No product selected for purchase")
		}
		items = []models.OrderItem{{
			ProductID: m.buyNow.ProductID,
			Name:      m.buyNow.Name,
			Price:     m.buyNow.Price,
			Image:     m.buyNow.Image,
			Color:     m.buyNow.Color,
			ColorName: m.buyNow.ColorName,
			Size:      m.buyNow.Size,
			Quantity:  m.buyNow.Quantity,
		}}
	}

	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	shipping := m.method.Price
	if m.freeShipping {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(m.taxRate).Round(2)

	billing := m.shippingAddr
	if m.billingAddr != nil {
		billing = *m.billingAddr
	}

	draft := &models.OrderDraft{
		Items:           items,
		ContactInfo:     m.contact,
		ShippingAddress: m.shippingAddr,
		BillingAddress:  billing,
		ShippingMethod:  *m.method,
		Subtotal:        subtotal,
		Shipping:        shipping,
		Tax:             tax,
		Discount:        m.discount,
		CustomerInfo: models.CustomerInfo{
			FirstName: m.shippingAddr.FirstName,
			LastName:  m.shippingAddr.LastName,
			Email:     m.contact.Email,
			Phone:     m.contact.Phone,
		},
		UserID:            m.userID,
		IsNewUser:         m.isNewUser,
		Date:              time.Now(),
		OrderNumber:       orders.GenerateOrderNumber(),
		EstimatedDelivery: m.method.EstimatedDelivery,
	}
	draft.RecomputeTotal()
	return draft, nil
}

// draftOrder materializes the Draft-status order record that makes an
// abandoned checkout visible in the user's order list before payment.
func draftOrder(d *models.OrderDraft) models.Order {
	now := time.Now()
	return models.Order{
		ID:                uuid.New().String(),
		OrderNumber:       d.OrderNumber,
		Status:            models.OrderStatusDraft,
		Items:             d.Items,
		ContactInfo:       d.ContactInfo,
		ShippingAddress:   d.ShippingAddress,
		BillingAddress:    d.BillingAddress,
		ShippingMethod:    d.ShippingMethod,
		Subtotal:          d.Subtotal,
		Shipping:          d.Shipping,
		Tax:               d.Tax,
		Discount:          d.Discount,
		Total:             d.Total,
		CustomerInfo:      d.CustomerInfo,
		UserID:            d.UserID,
		IsNewUser:         d.IsNewUser,
		TrackingNumber:    d.TrackingNumber,
		EstimatedDelivery: d.EstimatedDelivery,
		Date:              d.Date,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
