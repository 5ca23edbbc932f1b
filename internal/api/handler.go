package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront-service/internal/cart"
	"storefront-service/internal/checkout"
	"storefront-service/internal/coupon"
	"storefront-service/internal/models"
	"storefront-service/internal/orders"
	"storefront-service/internal/payment"
	"storefront-service/internal/util"
)

// Handler is the rendering layer's entry point: thin HTTP glue over the cart
// manager, checkout machine, order store, and payment simulator.
type Handler struct {
	cart      *cart.Manager
	store     *orders.Store
	simulator *payment.Simulator
	catalog   *coupon.Catalog

	newMachine func(userID string) *checkout.Machine

	mu      sync.Mutex
	machine *checkout.Machine
}

func NewHandler(
	cartMgr *cart.Manager,
	store *orders.Store,
	simulator *payment.Simulator,
	catalog *coupon.Catalog,
	newMachine func(userID string) *checkout.Machine,
) *Handler {
	return &Handler{
		cart:       cartMgr,
		store:      store,
		simulator:  simulator,
		catalog:    catalog,
		newMachine: newMachine,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PUT("/cart/items", h.updateCartItem)
		v1.DELETE("/cart/items", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)

		v1.POST("/coupons/apply", h.applyCoupon)
		v1.GET("/shipping-methods", h.listShippingMethods)

		v1.POST("/checkout/start", h.startCheckout)
		v1.POST("/checkout/contact", h.checkoutContact)
		v1.POST("/checkout/shipping-address", h.checkoutShippingAddress)
		v1.POST("/checkout/delivery-method", h.checkoutDeliveryMethod)
		v1.POST("/checkout/back", h.checkoutBack)
		v1.POST("/checkout/submit", h.checkoutSubmit)

		v1.POST("/payment", h.processPayment)
		v1.POST("/orders/:id/confirm", h.confirmOrder)

		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/my", h.listUserOrders)
		v1.POST("/orders/sync", h.syncOrders)
		v1.PUT("/orders/:id/status", h.updateOrderStatus)
		v1.POST("/orders/:id/select", h.selectOrder)
		v1.GET("/orders/selected", h.selectedOrder)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().Unix()})
}

// --- cart ---

func (h *Handler) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"items": h.cart.Items(),
		"count": h.cart.Count(),
		"total": h.cart.Total(),
	})
}

func (h *Handler) addCartItem(c *gin.Context) {
	var input models.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if !h.cart.Add(c.Request.Context(), input) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Could not add product to cart"})
		return
	}
	h.getCart(c)
}

type cartLineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

func (r cartLineRequest) key() models.LineKey {
	return models.LineKey{ProductID: r.ProductID, Size: r.Size, Color: r.Color}
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	h.cart.UpdateQuantity(c.Request.Context(), req.key(), req.Quantity)
	h.getCart(c)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	h.cart.Remove(c.Request.Context(), req.key())
	h.getCart(c)
}

func (h *Handler) clearCart(c *gin.Context) {
	h.cart.Clear(c.Request.Context())
	h.getCart(c)
}

// --- coupons / shipping ---

func (h *Handler) applyCoupon(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	h.mu.Lock()
	machine := h.machine
	h.mu.Unlock()

	// An active checkout defines the subtotal (buy-now sessions charge the
	// single line, not the cart); outside checkout the cart is the base.
	subtotal := h.cart.Total()
	if machine != nil {
		subtotal = machine.Subtotal()
	}

	res := coupon.Evaluate(req.Code, subtotal, h.catalog, time.Now())
	if !res.Valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"valid":  false,
			"reason": res.Reason,
			"error":  res.Message(),
		})
		return
	}

	if machine != nil {
		machine.ApplyDiscount(res.DiscountAmount, res.FreeShipping)
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":        true,
		"discount":     res.DiscountAmount,
		"discountType": res.DiscountType,
		"freeShipping": res.FreeShipping,
	})
}

func (h *Handler) listShippingMethods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"methods": models.ShippingMethods})
}

// --- checkout ---

func (h *Handler) startCheckout(c *gin.Context) {
	var req struct {
		UserID string               `json:"userId"`
		BuyNow *models.CartLineItem `json:"buyNow"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	m := h.newMachine(req.UserID)
	if req.BuyNow != nil {
		m.SetBuyNow(*req.BuyNow)
	}

	h.mu.Lock()
	h.machine = m
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"step": m.Step().String()})
}

func (h *Handler) currentMachine(c *gin.Context) *checkout.Machine {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.machine == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "No checkout in progress"})
		return nil
	}
	return h.machine
}

func (h *Handler) checkoutContact(c *gin.Context) {
	m := h.currentMachine(c)
	if m == nil {
		return
	}

	var req struct {
		Email           string `json:"email"`
		Phone           string `json:"phone"`
		CreateAccount   bool   `json:"createAccount"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	m.SetContact(models.ContactInfo{Email: req.Email, Phone: req.Phone}, req.CreateAccount, req.Password, req.ConfirmPassword)
	h.advance(c, m)
}

func (h *Handler) checkoutShippingAddress(c *gin.Context) {
	m := h.currentMachine(c)
	if m == nil {
		return
	}

	var addr models.Address
	if err := c.ShouldBindJSON(&addr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	m.SetShippingAddress(addr)
	h.advance(c, m)
}

func (h *Handler) checkoutDeliveryMethod(c *gin.Context) {
	m := h.currentMachine(c)
	if m == nil {
		return
	}

	var req struct {
		MethodID string `json:"methodId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if !m.SelectShippingMethod(req.MethodID) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unknown delivery method"})
		return
	}
	h.advance(c, m)
}

func (h *Handler) advance(c *gin.Context, m *checkout.Machine) {
	if err := m.Next(c.Request.Context()); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "step": m.Step().String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": m.Step().String()})
}

func (h *Handler) checkoutBack(c *gin.Context) {
	m := h.currentMachine(c)
	if m == nil {
		return
	}
	if !m.Back() {
		c.JSON(http.StatusOK, gin.H{"step": m.Step().String(), "exited": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": m.Step().String()})
}

func (h *Handler) checkoutSubmit(c *gin.Context) {
	m := h.currentMachine(c)
	if m == nil {
		return
	}

	draft, err := m.Submit(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": draft})
}

// --- payment / confirmation ---

func (h *Handler) processPayment(c *gin.Context) {
	var req payment.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	res, err := h.simulator.Process(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if res.State == models.PaymentStatusError {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) confirmOrder(c *gin.Context) {
	res := h.store.Confirm(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, res)
}

// --- orders ---

func (h *Handler) listOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": h.store.Orders()})
}

func (h *Handler) listUserOrders(c *gin.Context) {
	userID := c.Query("userId")
	email := c.Query("email")
	c.JSON(http.StatusOK, gin.H{"orders": h.store.UserOrders(userID, email)})
}

func (h *Handler) syncOrders(c *gin.Context) {
	res := h.store.FetchOrders(c.Request.Context())
	if !res.Success {
		c.JSON(http.StatusBadGateway, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	updated := h.store.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status)
	if updated == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": updated})
}

func (h *Handler) selectOrder(c *gin.Context) {
	if !h.store.SelectOrder(c.Request.Context(), c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": h.store.SelectedOrder()})
}

func (h *Handler) selectedOrder(c *gin.Context) {
	order := h.store.SelectedOrder()
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No order selected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
