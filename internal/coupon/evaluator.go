package coupon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront-service/internal/models"
	"storefront-service/internal/util"
)

// Reason classifies why a coupon failed to apply.
type Reason string

const (
	ReasonInvalidCode  Reason = "invalid_code"
	ReasonInactive     Reason = "inactive"
	ReasonNotYetValid  Reason = "not_yet_valid"
	ReasonExpired      Reason = "expired"
	ReasonBelowMinimum Reason = "below_minimum"
)

// Result is the outcome of a coupon evaluation. When Reason is
// ReasonBelowMinimum, MinRequired carries the purchase amount the display
// layer should show.
type Result struct {
	Valid          bool
	DiscountAmount decimal.Decimal
	DiscountType   models.DiscountType
	FreeShipping   bool
	Reason         Reason
	MinRequired    decimal.Decimal
}

// Evaluate validates code against the catalog and computes the discount for
// the given subtotal. It is pure: the same (code, subtotal, catalog, now)
// always yields the same result, and nothing is mutated.
//
// Percentage discounts are capped by MaxDiscountAmount when set. Fixed
// discounts are returned as-is; clamping the order total at zero happens at
// total-computation time, not here.
func Evaluate(code string, subtotal decimal.Decimal, catalog *Catalog, now time.Time) Result {
	c, ok := catalog.Lookup(code)
	if !ok {
		return reject(ReasonInvalidCode)
	}

	if !c.IsActive {
		return reject(ReasonInactive)
	}
	if now.Before(c.StartDate) {
		return reject(ReasonNotYetValid)
	}
	if now.After(c.EndDate) {
		return reject(ReasonExpired)
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return reject(ReasonExpired)
	}
	if subtotal.LessThan(c.MinPurchaseAmount) {
		r := reject(ReasonBelowMinimum)
		r.MinRequired = c.MinPurchaseAmount
		return r
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case models.DiscountPercentage:
		discount = subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
		if c.MaxDiscountAmount != nil && discount.GreaterThan(*c.MaxDiscountAmount) {
			discount = *c.MaxDiscountAmount
		}
	case models.DiscountFixed:
		discount = c.DiscountValue
	default:
		return reject(ReasonInvalidCode)
	}

	util.CouponsAppliedTotal.Inc()
	return Result{
		Valid:          true,
		DiscountAmount: discount,
		DiscountType:   c.DiscountType,
		FreeShipping:   c.FreeShipping,
	}
}

func reject(reason Reason) Result {
	util.CouponsRejectedTotal.WithLabelValues(string(reason)).Inc()
	return Result{Valid: false, Reason: reason}
}

// Message renders the failure reason as the single user-visible string the
// checkout surfaces next to the coupon field.
func (r Result) Message() string {
	switch r.Reason {
	case ReasonInvalidCode:
		return "Invalid coupon code"
	case ReasonInactive:
		return "This coupon is no longer active"
	case ReasonNotYetValid:
		return "This coupon is not valid yet"
	case ReasonExpired:
		return "This coupon has expired"
	case ReasonBelowMinimum:
		return "Minimum purchase of " + r.MinRequired.StringFixed(2) + " required"
	default:
		return ""
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
