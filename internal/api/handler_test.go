package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/backend"
	"storefront-service/internal/cart"
	"storefront-service/internal/checkout"
	"storefront-service/internal/coupon"
	"storefront-service/internal/kvstore"
	"storefront-service/internal/models"
	"storefront-service/internal/orders"
	"storefront-service/internal/payment"
)

func newTestRouter(t *testing.T) (*gin.Engine, *cart.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	kv := kvstore.NewMemory()
	bc := backend.NewClient("http://127.0.0.1:1", time.Second, kv)
	cartMgr := cart.NewManager(ctx, kv)
	store := orders.NewStore(ctx, kv, bc, nil, 10)
	simulator := payment.NewSimulator(store, nil, 0, 0)

	catalog := coupon.NewCatalog([]models.Coupon{{
		Code:              "WELCOME10",
		DiscountType:      models.DiscountPercentage,
		DiscountValue:     decimal.NewFromInt(10),
		MinPurchaseAmount: decimal.NewFromInt(50),
		StartDate:         time.Now().AddDate(0, -1, 0),
		EndDate:           time.Now().AddDate(0, 1, 0),
		IsActive:          true,
	}})

	newMachine := func(userID string) *checkout.Machine {
		return checkout.NewMachine(0.15, cartMgr, store, bc, userID)
	}

	router := gin.New()
	NewHandler(cartMgr, store, simulator, catalog, newMachine).SetupRoutes(router)
	return router, cartMgr
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestApplyCouponUsesBuyNowSubtotal(t *testing.T) {
	router, cartMgr := newTestRouter(t)

	// the cart is empty; the session's subtotal comes from the buy-now line
	require.Equal(t, 0, cartMgr.Count())

	w := postJSON(t, router, "/api/v1/checkout/start", gin.H{
		"userId": "u1",
		"buyNow": gin.H{"productId": "p9", "name": "Sneaker", "price": 100, "quantity": 1},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, router, "/api/v1/coupons/apply", gin.H{"code": "WELCOME10"})
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	var resp struct {
		Valid    bool            `json:"valid"`
		Discount decimal.Decimal `json:"discount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	// 10% of the 100.00 buy-now line
	assert.True(t, resp.Discount.Equal(decimal.NewFromInt(10)), "discount was %s", resp.Discount)
}

func TestApplyCouponBuyNowIgnoresCartContents(t *testing.T) {
	router, cartMgr := newTestRouter(t)

	// a large cart must not inflate a buy-now session's discount base
	require.True(t, cartMgr.Add(context.Background(), models.ProductInput{
		ProductID: "bulk", Price: 1000.0, Quantity: 1,
	}))

	w := postJSON(t, router, "/api/v1/checkout/start", gin.H{
		"buyNow": gin.H{"productId": "p9", "name": "Sneaker", "price": 80, "quantity": 1},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, router, "/api/v1/coupons/apply", gin.H{"code": "WELCOME10"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Discount decimal.Decimal `json:"discount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Discount.Equal(decimal.NewFromInt(8)), "discount was %s", resp.Discount)
}

func TestApplyCouponFallsBackToCartOutsideCheckout(t *testing.T) {
	router, cartMgr := newTestRouter(t)

	require.True(t, cartMgr.Add(context.Background(), models.ProductInput{
		ProductID: "p1", Price: 60.0, Quantity: 1,
	}))

	w := postJSON(t, router, "/api/v1/coupons/apply", gin.H{"code": "WELCOME10"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Discount decimal.Decimal `json:"discount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Discount.Equal(decimal.NewFromInt(6)), "discount was %s", resp.Discount)
}

func TestApplyCouponBelowMinimum(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/checkout/start", gin.H{
		"buyNow": gin.H{"productId": "p9", "name": "Socks", "price": 20, "quantity": 1},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, router, "/api/v1/coupons/apply", gin.H{"code": "WELCOME10"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.Contains(t, resp.Error, "Minimum purchase of 50.00")
}
