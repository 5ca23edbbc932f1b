package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LineKey is the cart identity key. Two inputs with the same key describe the
// same purchasable unit and merge into one line.
type LineKey struct {
	ProductID string
	Size      string
	Color     string
}

// CartLineItem is the canonical cart line shape. Everything entering the cart
// passes through ProductInput.Normalize first, so internal logic only ever
// sees this type.
type CartLineItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Color     string          `json:"color"`
	ColorName string          `json:"colorName"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
}

func (it CartLineItem) Key() LineKey {
	return LineKey{ProductID: it.ProductID, Size: it.Size, Color: it.Color}
}

// ProductVariant is one sellable variation of a catalog product.
type ProductVariant struct {
	Price     interface{} `json:"price"`
	Image     string      `json:"image"`
	Color     string      `json:"color"`
	ColorName string      `json:"colorName"`
	Size      string      `json:"size"`
}

// ProductInput is the normalization boundary for the heterogeneous product
// shapes the rendering layer produces: either flat fields or a variants slice
// with a selected index.
type ProductInput struct {
	ProductID string      `json:"productId"`
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Price     interface{} `json:"price"`
	Image     string      `json:"image"`
	Color     string      `json:"color"`
	ColorName string      `json:"colorName"`
	Size      string      `json:"size"`
	Quantity  int         `json:"quantity"`

	Variants            []ProductVariant `json:"variants,omitempty"`
	CurrentVariantIndex int              `json:"currentVariantIndex"`
}

// Normalize maps any accepted input shape to the canonical line item.
func (p ProductInput) Normalize() (CartLineItem, error) {
	id := p.ProductID
	if id == "" {
		id = p.ID
	}
	if id == "" {
		return CartLineItem{}, fmt.Errorf("product input missing id")
	}

	item := CartLineItem{
		ProductID: id,
		Name:      p.Name,
		Image:     p.Image,
		Color:     p.Color,
		ColorName: p.ColorName,
		Size:      p.Size,
		Quantity:  p.Quantity,
	}

	price := p.Price
	if len(p.Variants) > 0 {
		idx := p.CurrentVariantIndex
		if idx < 0 || idx >= len(p.Variants) {
			idx = 0
		}
		v := p.Variants[idx]
		price = v.Price
		if v.Image != "" {
			item.Image = v.Image
		}
		if v.Color != "" {
			item.Color = v.Color
		}
		if v.ColorName != "" {
			item.ColorName = v.ColorName
		}
		if v.Size != "" {
			item.Size = v.Size
		}
	}

	parsed, err := ParsePrice(price)
	if err != nil {
		return CartLineItem{}, fmt.Errorf("product %s: %w", id, err)
	}
	item.Price = parsed

	if item.Quantity < 1 {
		item.Quantity = 1
	}
	return item, nil
}

// ParsePrice converts the price shapes seen in the wild (plain numbers,
// strings with currency symbols and thousand separators) into a decimal.
func ParsePrice(v interface{}) (decimal.Decimal, error) {
	switch p := v.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("missing price")
	case decimal.Decimal:
		return p, nil
	case float64:
		return decimal.NewFromFloat(p), nil
	case float32:
		return decimal.NewFromFloat32(p), nil
	case int:
		return decimal.NewFromInt(int64(p)), nil
	case int64:
		return decimal.NewFromInt(p), nil
	case string:
		cleaned := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				return r
			}
			return -1
		}, strings.ReplaceAll(p, ",", ""))
		if cleaned == "" {
			return decimal.Zero, fmt.Errorf("unparseable price %q", p)
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Zero, fmt.Errorf("unparseable price %q: %w", p, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported price type %T", v)
	}
}

// DiscountType enumerates coupon discount strategies.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon is a catalog discount rule. FreeShipping additionally zeroes the
// shipping cost when the coupon applies.
type Coupon struct {
	Code              string           `json:"code"`
	DiscountType      DiscountType     `json:"discountType"`
	DiscountValue     decimal.Decimal  `json:"discountValue"`
	MinPurchaseAmount decimal.Decimal  `json:"minPurchaseAmount"`
	MaxDiscountAmount *decimal.Decimal `json:"maxDiscountAmount,omitempty"`
	StartDate         time.Time        `json:"startDate"`
	EndDate           time.Time        `json:"endDate"`
	IsActive          bool             `json:"isActive"`
	UsageLimit        *int             `json:"usageLimit,omitempty"`
	UsageCount        int              `json:"usageCount"`
	FreeShipping      bool             `json:"freeShipping"`
}

type ContactInfo struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Address struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// SupportedCountries is the closed set accepted by the shipping address step.
var SupportedCountries = []string{
	"Ghana", "Nigeria", "Kenya", "South Africa",
	"United States", "United Kingdom", "Germany", "France",
}

func IsSupportedCountry(country string) bool {
	for _, c := range SupportedCountries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

// ShippingMethod is one entry of the fixed delivery-method catalog.
type ShippingMethod struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Carrier           string          `json:"carrier"`
	EstimatedDelivery string          `json:"estimatedDelivery"`
}

// ShippingMethods is the catalog offered at the delivery-method step.
var ShippingMethods = []ShippingMethod{
	{ID: "standard", Name: "Standard Shipping", Price: decimal.NewFromFloat(5.99), Carrier: "DHL", EstimatedDelivery: "5-7 business days"},
	{ID: "express", Name: "Express Shipping", Price: decimal.NewFromFloat(14.99), Carrier: "FedEx", EstimatedDelivery: "2-3 business days"},
	{ID: "overnight", Name: "Overnight Shipping", Price: decimal.NewFromFloat(29.99), Carrier: "UPS", EstimatedDelivery: "next business day"},
}

func ShippingMethodByID(id string) (ShippingMethod, bool) {
	for _, m := range ShippingMethods {
		if m.ID == id {
			return m, true
		}
	}
	return ShippingMethod{}, false
}

// OrderItem is the normalized per-line shape stored on drafts and orders.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	Color     string          `json:"color,omitempty"`
	ColorName string          `json:"colorName,omitempty"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
}

// CustomerInfo is the denormalized customer snapshot attached to an order.
type CustomerInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// OrderDraft is the aggregate assembled at checkout submission time and read
// by the payment step.
type OrderDraft struct {
	Items             []OrderItem     `json:"items"`
	ContactInfo       ContactInfo     `json:"contactInfo"`
	ShippingAddress   Address         `json:"shippingAddress"`
	BillingAddress    Address         `json:"billingAddress"`
	ShippingMethod    ShippingMethod  `json:"shippingMethod"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Shipping          decimal.Decimal `json:"shipping"`
	Tax               decimal.Decimal `json:"tax"`
	Discount          decimal.Decimal `json:"discount"`
	Total             decimal.Decimal `json:"total"`
	CustomerInfo      CustomerInfo    `json:"customerInfo"`
	UserID            string          `json:"userId,omitempty"`
	IsNewUser         bool            `json:"isNewUser"`
	Date              time.Time       `json:"date"`
	OrderNumber       string          `json:"orderNumber"`
	TrackingNumber    string          `json:"trackingNumber,omitempty"`
	EstimatedDelivery string          `json:"estimatedDelivery,omitempty"`
}

// RecomputeTotal rederives the total from its inputs. The total is never a
// hand-edited field; a fixed discount larger than the pre-discount sum clamps
// the total at zero.
func (d *OrderDraft) RecomputeTotal() {
	total := d.Subtotal.Add(d.Shipping).Add(d.Tax).Sub(d.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	d.Total = total
}

// Order statuses.
const (
	OrderStatusDraft      = "Draft"
	OrderStatusPending    = "Pending"
	OrderStatusProcessing = "Processing"
	OrderStatusShipped    = "Shipped"
	OrderStatusDelivered  = "Delivered"
	OrderStatusCancelled  = "Cancelled"
)

// Payment statuses.
const (
	PaymentStatusIdle       = "idle"
	PaymentStatusProcessing = "processing"
	PaymentStatusSuccess    = "success"
	PaymentStatusError      = "error"
	PaymentStatusPending    = "pending"
)

// PaymentDetails records the outcome of a settled (or attempted) payment.
type PaymentDetails struct {
	TransactionID string `json:"transactionId,omitempty"`
	Status        string `json:"status,omitempty"`
	CardLast4     string `json:"cardLast4,omitempty"`
}

// Order is the persisted entity: the draft superset plus server- and
// payment-assigned fields. User and UserID carry the same value once an order
// passes through the store's persistence boundary; both are kept because
// upstream payloads are inconsistent about which one they set.
type Order struct {
	ID                string          `json:"_id"`
	OrderNumber       string          `json:"orderNumber"`
	Status            string          `json:"status"`
	Items             []OrderItem     `json:"items"`
	ContactInfo       ContactInfo     `json:"contactInfo"`
	ShippingAddress   Address         `json:"shippingAddress"`
	BillingAddress    Address         `json:"billingAddress"`
	ShippingMethod    ShippingMethod  `json:"shippingMethod"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Shipping          decimal.Decimal `json:"shipping"`
	Tax               decimal.Decimal `json:"tax"`
	Discount          decimal.Decimal `json:"discount"`
	Total             decimal.Decimal `json:"total"`
	CustomerInfo      CustomerInfo    `json:"customerInfo"`
	User              string          `json:"user,omitempty"`
	UserID            string          `json:"userId,omitempty"`
	IsNewUser         bool            `json:"isNewUser,omitempty"`
	TrackingNumber    string          `json:"trackingNumber,omitempty"`
	ReceiptID         string          `json:"receiptId,omitempty"`
	PaymentMethod     string          `json:"paymentMethod,omitempty"`
	PaymentDetails    PaymentDetails  `json:"paymentDetails,omitempty"`
	EstimatedDelivery string          `json:"estimatedDelivery,omitempty"`
	Date              time.Time       `json:"date"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}
