package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/kvstore"
	"storefront-service/internal/models"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func testCatalog() *Catalog {
	max := dec(100)
	limit := 1
	return NewCatalog([]models.Coupon{
		{
			Code:          "SAVE50",
			DiscountType:  models.DiscountPercentage,
			DiscountValue: dec(50),
			MaxDiscountAmount: &max,
			StartDate:     testNow.AddDate(0, -1, 0),
			EndDate:       testNow.AddDate(0, 1, 0),
			IsActive:      true,
		},
		{
			Code:              "FLAT20",
			DiscountType:      models.DiscountFixed,
			DiscountValue:     dec(20),
			MinPurchaseAmount: dec(75),
			StartDate:         testNow.AddDate(0, -1, 0),
			EndDate:           testNow.AddDate(0, 1, 0),
			IsActive:          true,
		},
		{
			Code:          "FREESHIP",
			DiscountType:  models.DiscountFixed,
			DiscountValue: dec(0),
			StartDate:     testNow.AddDate(0, -1, 0),
			EndDate:       testNow.AddDate(0, 1, 0),
			IsActive:      true,
			FreeShipping:  true,
		},
		{
			Code:          "DISABLED",
			DiscountType:  models.DiscountFixed,
			DiscountValue: dec(5),
			StartDate:     testNow.AddDate(0, -1, 0),
			EndDate:       testNow.AddDate(0, 1, 0),
			IsActive:      false,
		},
		{
			Code:          "FUTURE",
			DiscountType:  models.DiscountFixed,
			DiscountValue: dec(5),
			StartDate:     testNow.AddDate(0, 0, 10),
			EndDate:       testNow.AddDate(0, 1, 0),
			IsActive:      true,
		},
		{
			Code:          "OLDCODE",
			DiscountType:  models.DiscountFixed,
			DiscountValue: dec(5),
			StartDate:     testNow.AddDate(0, -2, 0),
			EndDate:       testNow.AddDate(0, -1, 0),
			IsActive:      true,
		},
		{
			Code:          "ONESHOT",
			DiscountType:  models.DiscountFixed,
			DiscountValue: dec(5),
			StartDate:     testNow.AddDate(0, -1, 0),
			EndDate:       testNow.AddDate(0, 1, 0),
			IsActive:      true,
			UsageLimit:    &limit,
			UsageCount:    1,
		},
	})
}

func TestEvaluatePercentageCapped(t *testing.T) {
	res := Evaluate("SAVE50", dec(200), testCatalog(), testNow)

	require.True(t, res.Valid)
	assert.Equal(t, models.DiscountPercentage, res.DiscountType)
	// 50% of 200 is 100, exactly at the cap
	assert.True(t, res.DiscountAmount.Equal(dec(100)), "discount was %s", res.DiscountAmount)

	// well past the cap
	res = Evaluate("SAVE50", dec(1000), testCatalog(), testNow)
	require.True(t, res.Valid)
	assert.True(t, res.DiscountAmount.Equal(dec(100)))
}

func TestEvaluateFixed(t *testing.T) {
	res := Evaluate("FLAT20", dec(80), testCatalog(), testNow)

	require.True(t, res.Valid)
	assert.Equal(t, models.DiscountFixed, res.DiscountType)
	assert.True(t, res.DiscountAmount.Equal(dec(20)))
}

func TestEvaluateCaseInsensitive(t *testing.T) {
	for _, code := range []string{"save50", "Save50", " SAVE50 "} {
		res := Evaluate(code, dec(200), testCatalog(), testNow)
		assert.True(t, res.Valid, "code %q should apply", code)
	}
}

func TestEvaluateFailures(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		subtotal decimal.Decimal
		reason   Reason
	}{
		{"unknown code", "NOPE", dec(200), ReasonInvalidCode},
		{"inactive", "DISABLED", dec(200), ReasonInactive},
		{"not yet valid", "FUTURE", dec(200), ReasonNotYetValid},
		{"expired", "OLDCODE", dec(200), ReasonExpired},
		{"usage limit reached", "ONESHOT", dec(200), ReasonExpired},
		{"below minimum", "FLAT20", dec(50), ReasonBelowMinimum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(tt.code, tt.subtotal, testCatalog(), testNow)
			assert.False(t, res.Valid)
			assert.Equal(t, tt.reason, res.Reason)
			assert.True(t, res.DiscountAmount.IsZero())
		})
	}
}

func TestBelowMinimumCarriesRequiredAmount(t *testing.T) {
	res := Evaluate("FLAT20", dec(50), testCatalog(), testNow)

	require.Equal(t, ReasonBelowMinimum, res.Reason)
	assert.True(t, res.MinRequired.Equal(dec(75)))
	assert.Contains(t, res.Message(), "75.00")
}

func TestFreeShippingFlag(t *testing.T) {
	res := Evaluate("FREESHIP", dec(30), testCatalog(), testNow)

	require.True(t, res.Valid)
	assert.True(t, res.FreeShipping)
	assert.True(t, res.DiscountAmount.IsZero())
}

func TestEvaluateDeterministic(t *testing.T) {
	catalog := testCatalog()
	first := Evaluate("SAVE50", dec(333), catalog, testNow)
	for i := 0; i < 5; i++ {
		again := Evaluate("SAVE50", dec(333), catalog, testNow)
		assert.Equal(t, first.Valid, again.Valid)
		assert.True(t, first.DiscountAmount.Equal(again.DiscountAmount))
	}
}

func TestCatalogPersistenceRoundTrip(t *testing.T) {
	kv := kvstore.NewMemory()
	ctx := context.Background()

	require.NoError(t, SaveCatalog(ctx, kv, testCatalog()))

	loaded, err := LoadCatalog(ctx, kv)
	require.NoError(t, err)

	cp, ok := loaded.Lookup("flat20")
	require.True(t, ok)
	assert.True(t, cp.MinPurchaseAmount.Equal(dec(75)))

	res := Evaluate("SAVE50", dec(200), loaded, testNow)
	assert.True(t, res.Valid)
	assert.True(t, res.DiscountAmount.Equal(dec(100)))
}

func TestLoadCatalogEmptyStore(t *testing.T) {
	loaded, err := LoadCatalog(context.Background(), kvstore.NewMemory())
	require.NoError(t, err)

	_, ok := loaded.Lookup("SAVE50")
	assert.False(t, ok)
}
