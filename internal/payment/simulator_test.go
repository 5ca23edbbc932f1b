package payment

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/backend"
	"storefront-service/internal/kvstore"
	"storefront-service/internal/models"
	"storefront-service/internal/orders"
)

func newTestSimulator(t *testing.T) (*Simulator, *orders.Store) {
	t.Helper()
	ctx := context.Background()
	kv := kvstore.NewMemory()
	bc := backend.NewClient("http://127.0.0.1:1", time.Second, kv)
	store := orders.NewStore(ctx, kv, bc, nil, 10)
	return NewSimulator(store, nil, 0, 0), store
}

// seedDraft installs an order draft and its Draft-status order record, the
// state Submit leaves behind.
func seedDraft(t *testing.T, store *orders.Store) *models.OrderDraft {
	t.Helper()
	ctx := context.Background()
	draft := &models.OrderDraft{
		OrderNumber: "ORD-TEST1",
		Items: []models.OrderItem{
			{ProductID: "p1", Name: "Shirt", Price: decimal.NewFromInt(50), Quantity: 2},
		},
		Shipping: decimal.NewFromFloat(5.99),
		Tax:      decimal.NewFromInt(15),
		Discount: decimal.NewFromInt(10),
	}
	draft.Subtotal = decimal.NewFromInt(100)
	draft.RecomputeTotal()
	store.SetOrderInfo(ctx, draft)
	require.True(t, store.AddOrder(ctx, models.Order{
		ID:          "order-1",
		OrderNumber: draft.OrderNumber,
		Status:      models.OrderStatusDraft,
	}))
	return draft
}

func validCard() Request {
	return Request{
		Method: MethodCard,
		Card: CardDetails{
			Number: "4242 4242 4242 4242",
			Holder: "Ama Mensah",
			Expiry: "12/27",
			CVV:    "123",
		},
	}
}

func TestProcessWithoutDraft(t *testing.T) {
	s, _ := newTestSimulator(t)

	res, err := s.Process(context.Background(), validCard())
	require.Error(t, err)
	assert.Equal(t, models.PaymentStatusError, res.State)
	assert.Equal(t, "no order to pay for", res.Error)
}

func TestCardValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Request)
		wantErr string
	}{
		{"short number", func(r *Request) { r.Card.Number = "4242" }, "Card number must be 16 digits"},
		{"letters in number", func(r *Request) { r.Card.Number = "4242abcd42424242" }, "Card number must be 16 digits"},
		{"missing holder", func(r *Request) { r.Card.Holder = " " }, "Cardholder name is required"},
		{"bad expiry month", func(r *Request) { r.Card.Expiry = "13/27" }, "Expiry must be in MM/YY format"},
		{"bad expiry format", func(r *Request) { r.Card.Expiry = "122027" }, "Expiry must be in MM/YY format"},
		{"bad cvv", func(r *Request) { r.Card.CVV = "12" }, "CVV is invalid"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, store := newTestSimulator(t)
			seedDraft(t, store)

			req := validCard()
			tc.mutate(&req)

			res, err := s.Process(context.Background(), req)
			require.NoError(t, err, "validation failures are results, not errors")
			assert.Equal(t, models.PaymentStatusError, res.State)
			assert.Equal(t, tc.wantErr, res.Error)
			assert.Empty(t, res.TransactionID)
			assert.Equal(t, models.PaymentStatusError, store.PaymentStatus())
		})
	}
}

func TestMobileMoneyValidation(t *testing.T) {
	s, store := newTestSimulator(t)
	seedDraft(t, store)
	ctx := context.Background()

	res, err := s.Process(ctx, Request{Method: MethodMobileMoney})
	require.NoError(t, err)
	assert.Equal(t, "Mobile money phone number is required", res.Error)

	res, err = s.Process(ctx, Request{
		Method:      MethodMobileMoney,
		MobileMoney: MobileMoneyDetails{Phone: "+233201234567"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Please select a mobile network", res.Error)
}

func TestUnsupportedMethod(t *testing.T) {
	s, store := newTestSimulator(t)
	seedDraft(t, store)

	res, err := s.Process(context.Background(), Request{Method: "crypto"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusError, res.State)
	assert.Equal(t, "Unsupported payment method", res.Error)
}

func TestCardPaymentSucceedsAndFinalizesOrder(t *testing.T) {
	s, store := newTestSimulator(t)
	seedDraft(t, store)
	ctx := context.Background()

	res, err := s.Process(ctx, validCard())
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusSuccess, res.State)
	assert.NotEmpty(t, res.TransactionID)
	// 100 + 5.99 + 15 - 10
	assert.True(t, res.Amount.Equal(decimal.NewFromFloat(110.99)), "amount was %s", res.Amount)
	assert.Equal(t, models.PaymentStatusSuccess, store.PaymentStatus())

	order := store.Order("order-1")
	require.NotNil(t, order)
	assert.Equal(t, models.OrderStatusProcessing, order.Status)
	assert.Equal(t, "card", order.PaymentMethod)
	assert.Equal(t, res.TransactionID, order.PaymentDetails.TransactionID)
	assert.Equal(t, models.PaymentStatusSuccess, order.PaymentDetails.Status)
	assert.Equal(t, "4242", order.PaymentDetails.CardLast4)
}

func TestBankTransferParksPending(t *testing.T) {
	s, store := newTestSimulator(t)
	seedDraft(t, store)
	ctx := context.Background()

	res, err := s.Process(ctx, Request{Method: MethodBankTransfer})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPending, res.State)
	assert.NotEmpty(t, res.TransactionID)
	assert.Contains(t, res.Instructions, res.TransactionID)
	assert.Contains(t, res.Instructions, "110.99")

	order := store.Order("order-1")
	require.NotNil(t, order)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentDetails.Status)
}

func TestAmountRecomputedFromComponents(t *testing.T) {
	s, store := newTestSimulator(t)
	draft := seedDraft(t, store)
	ctx := context.Background()

	// A stale stored total must not be what gets charged.
	draft.Total = decimal.NewFromInt(9999)
	store.SetOrderInfo(ctx, draft)

	res, err := s.Process(ctx, validCard())
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(decimal.NewFromFloat(110.99)), "amount was %s", res.Amount)
}

func TestAmountClampsAtZero(t *testing.T) {
	s, store := newTestSimulator(t)
	draft := seedDraft(t, store)
	ctx := context.Background()

	draft.Discount = decimal.NewFromInt(10000)
	store.SetOrderInfo(ctx, draft)

	res, err := s.Process(ctx, validCard())
	require.NoError(t, err)
	assert.True(t, res.Amount.IsZero(), "amount was %s", res.Amount)
}

func TestRequestOrderNumberOverridesDraft(t *testing.T) {
	s, store := newTestSimulator(t)
	seedDraft(t, store)
	ctx := context.Background()

	require.True(t, store.AddOrder(ctx, models.Order{
		ID:          "order-2",
		OrderNumber: "ORD-OTHER",
		Status:      models.OrderStatusDraft,
	}))

	req := validCard()
	req.OrderNumber = "ORD-OTHER"
	_, err := s.Process(ctx, req)
	require.NoError(t, err)

	other := store.Order("order-2")
	require.NotNil(t, other)
	assert.Equal(t, models.OrderStatusProcessing, other.Status)

	first := store.Order("order-1")
	require.NotNil(t, first)
	assert.Equal(t, models.OrderStatusDraft, first.Status, "untargeted order untouched")
}
