package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		name  string
		in    interface{}
		want  string
		fails bool
	}{
		{name: "float", in: 10.5, want: "10.5"},
		{name: "int", in: 25, want: "25"},
		{name: "plain string", in: "19.99", want: "19.99"},
		{name: "euro symbol", in: "€10.00", want: "10"},
		{name: "dollar with thousands", in: "$1,234.56", want: "1234.56"},
		{name: "cedi symbol", in: "GH₵ 45.00", want: "45"},
		{name: "decimal passthrough", in: decimal.NewFromInt(7), want: "7"},
		{name: "nil", in: nil, fails: true},
		{name: "empty string", in: "", fails: true},
		{name: "symbols only", in: "€€", fails: true},
		{name: "bool", in: true, fails: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePrice(tc.in)
			if tc.fails {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			want, _ := decimal.NewFromString(tc.want)
			assert.True(t, got.Equal(want), "got %s want %s", got, want)
		})
	}
}

func TestNormalizeFlatInput(t *testing.T) {
	item, err := ProductInput{
		ProductID: "p1",
		Name:      "Shirt",
		Price:     "€10.00",
		Size:      "M",
		Color:     "black",
		Quantity:  2,
	}.Normalize()
	require.NoError(t, err)

	assert.Equal(t, "p1", item.ProductID)
	assert.True(t, item.Price.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, LineKey{ProductID: "p1", Size: "M", Color: "black"}, item.Key())
}

func TestNormalizeFallsBackToID(t *testing.T) {
	item, err := ProductInput{ID: "p2", Price: 5.0}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "p2", item.ProductID)
	assert.Equal(t, 1, item.Quantity, "missing quantity defaults to 1")
}

func TestNormalizeVariantShape(t *testing.T) {
	in := ProductInput{
		ProductID: "p3",
		Name:      "Sneaker",
		Price:     "1.00", // flat price ignored when variants exist
		Variants: []ProductVariant{
			{Price: "49.99", Color: "#fff", ColorName: "white", Size: "42"},
			{Price: "54.99", Color: "#000", ColorName: "black", Size: "43", Image: "black.jpg"},
		},
		CurrentVariantIndex: 1,
	}

	item, err := in.Normalize()
	require.NoError(t, err)
	assert.True(t, item.Price.Equal(decimal.NewFromFloat(54.99)))
	assert.Equal(t, "#000", item.Color)
	assert.Equal(t, "black", item.ColorName)
	assert.Equal(t, "43", item.Size)
	assert.Equal(t, "black.jpg", item.Image)
}

func TestNormalizeVariantIndexOutOfRange(t *testing.T) {
	in := ProductInput{
		ProductID:           "p4",
		Variants:            []ProductVariant{{Price: 10.0, Size: "M"}},
		CurrentVariantIndex: 7,
	}
	item, err := in.Normalize()
	require.NoError(t, err)
	assert.True(t, item.Price.Equal(decimal.NewFromInt(10)), "falls back to the first variant")
	assert.Equal(t, "M", item.Size)
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	_, err := ProductInput{Price: 10.0}.Normalize()
	assert.Error(t, err, "missing id")

	_, err = ProductInput{ProductID: "p5"}.Normalize()
	assert.Error(t, err, "missing price")
}

func TestRecomputeTotal(t *testing.T) {
	d := OrderDraft{
		Subtotal: decimal.NewFromInt(100),
		Shipping: decimal.NewFromFloat(5.99),
		Tax:      decimal.NewFromInt(15),
		Discount: decimal.NewFromInt(20),
	}
	d.RecomputeTotal()
	assert.True(t, d.Total.Equal(decimal.NewFromFloat(100.99)), "total was %s", d.Total)

	d.Discount = decimal.NewFromInt(500)
	d.RecomputeTotal()
	assert.True(t, d.Total.IsZero(), "oversized discount clamps at zero")
}

func TestIsSupportedCountry(t *testing.T) {
	assert.True(t, IsSupportedCountry("Ghana"))
	assert.True(t, IsSupportedCountry("ghana"), "match is case-insensitive")
	assert.False(t, IsSupportedCountry("Atlantis"))
	assert.False(t, IsSupportedCountry(""))
}

func TestShippingMethodByID(t *testing.T) {
	m, ok := ShippingMethodByID("express")
	require.True(t, ok)
	assert.Equal(t, "FedEx", m.Carrier)
	assert.True(t, m.Price.Equal(decimal.NewFromFloat(14.99)))

	_, ok = ShippingMethodByID("teleport")
	assert.False(t, ok)
}
