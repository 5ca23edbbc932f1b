package orders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-service/internal/backend"
	"storefront-service/internal/broker"
	"storefront-service/internal/kvstore"
	"storefront-service/internal/models"
	"storefront-service/internal/util"
)

// TrackingInfo is the display-facing tracking slice of the store state.
type TrackingInfo struct {
	TrackingNumber    string `json:"trackingNumber,omitempty"`
	EstimatedDelivery string `json:"estimatedDelivery,omitempty"`
}

// state is the persisted slice of the order store.
type state struct {
	OrderInfo     *models.OrderDraft `json:"orderInfo"`
	PaymentStatus string             `json:"paymentStatus"`
	TrackingInfo  TrackingInfo       `json:"trackingInfo"`
	Orders        []models.Order     `json:"orders"`
	SelectedOrder *models.Order      `json:"selectedOrder"`
}

// SyncResult is the non-throwing outcome of a backend round-trip. Store entry
// points never propagate network errors as Go errors to callers; they are
// logged and folded into this value so the caller's flow stays responsive
// when the backend is down.
type SyncResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// Store is the central order state container: current draft, payment status,
// tracking info, the client-side order cache, and the selected order. It is
// constructed once at startup; Reset exists so tests can reuse instances.
type Store struct {
	mu          sync.Mutex
	st          state
	kv          kvstore.Store
	backend     *backend.Client
	publisher   *broker.EventPublisher
	logger      *zap.Logger
	pageSize    int
	subscribers map[int]func(models.Order)
	nextSubID   int
}

func NewStore(ctx context.Context, kv kvstore.Store, bc *backend.Client, pub *broker.EventPublisher, pageSize int) *Store {
	if pageSize < 1 {
		pageSize = 10
	}
	s := &Store{
		kv:          kv,
		backend:     bc,
		publisher:   pub,
		logger:      util.GetLogger(),
		pageSize:    pageSize,
		subscribers: make(map[int]func(models.Order)),
	}
	if _, err := kvstore.LoadJSON(ctx, kv, kvstore.KeyOrderState, &s.st); err != nil {
		s.logger.Warn("Failed to restore order state from storage", zap.Error(err))
		s.st = state{}
	}
	if s.st.Orders == nil {
		s.st.Orders = []models.Order{}
	}
	return s
}

// Reset clears all in-memory and persisted order state.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	s.st = state{Orders: []models.Order{}}
	s.subscribers = make(map[int]func(models.Order))
	s.mu.Unlock()
	if err := s.kv.Delete(ctx, kvstore.KeyOrderState); err != nil {
		s.logger.Warn("Failed to clear persisted order state", zap.Error(err))
	}
}

// SetOrderInfo normalizes the draft's products into the canonical items shape
// and installs it as the current draft for the payment step to read. A
// tracking number is generated if the draft has none yet.
func (s *Store) SetOrderInfo(ctx context.Context, draft *models.OrderDraft) {
	if draft == nil {
		return
	}
	if draft.TrackingNumber == "" {
		draft.TrackingNumber = GenerateTrackingNumber()
	}
	s.mu.Lock()
	s.st.OrderInfo = draft
	s.st.TrackingInfo = TrackingInfo{
		TrackingNumber:    draft.TrackingNumber,
		EstimatedDelivery: draft.EstimatedDelivery,
	}
	s.persistLocked(ctx)
	s.mu.Unlock()
}

// OrderInfo returns the current draft, or nil.
func (s *Store) OrderInfo() *models.OrderDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.OrderInfo
}

// SetPaymentStatus records the current payment attempt state.
func (s *Store) SetPaymentStatus(ctx context.Context, status string) {
	s.mu.Lock()
	s.st.PaymentStatus = status
	s.persistLocked(ctx)
	s.mu.Unlock()
}

func (s *Store) PaymentStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.PaymentStatus
}

func (s *Store) Tracking() TrackingInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.TrackingInfo
}

// AddOrder inserts an order into the cache. The insert is idempotent: a
// record matching by ID or by order number is left untouched. The dual
// User/UserID attribution fields are reconciled here, at the persistence
// boundary, so downstream filters relying on either name keep working.
func (s *Store) AddOrder(ctx context.Context, order models.Order) bool {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	reconcileUserFields(&order)
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}

	s.mu.Lock()
	for i := range s.st.Orders {
		if s.st.Orders[i].ID == order.ID ||
			(order.OrderNumber != "" && s.st.Orders[i].OrderNumber == order.OrderNumber) {
			s.mu.Unlock()
			s.logger.Debug("Ignoring duplicate order insert",
				zap.String("order_id", order.ID),
				zap.String("order_number", order.OrderNumber))
			return false
		}
	}
	s.st.Orders = append(s.st.Orders, order)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.publisher.PublishOrderCreated(ctx, &order)
	return true
}

// UpdateOrder deep-merges patch into the order with the given id, stamps
// UpdatedAt, keeps the selected order in sync, and notifies subscribers.
// Returns the updated record, or nil when no order matches (in which case
// nothing fires).
func (s *Store) UpdateOrder(ctx context.Context, id string, patch map[string]interface{}) *models.Order {
	s.mu.Lock()
	idx := -1
	for i := range s.st.Orders {
		if s.st.Orders[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}

	merged, err := applyPatch(&s.st.Orders[idx], patch)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("Failed to apply order patch", zap.String("order_id", id), zap.Error(err))
		return nil
	}
	merged.UpdatedAt = time.Now()
	reconcileUserFields(merged)
	s.st.Orders[idx] = *merged

	if s.st.SelectedOrder != nil && s.st.SelectedOrder.ID == id {
		cp := *merged
		s.st.SelectedOrder = &cp
	}

	callbacks := make([]func(models.Order), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		callbacks = append(callbacks, fn)
	}
	s.persistLocked(ctx)
	s.mu.Unlock()

	updated := *merged
	for _, fn := range callbacks {
		s.notify(fn, updated)
	}
	s.publisher.PublishOrderUpdated(ctx, &updated)

	return merged
}

// notify invokes one subscriber, isolating the rest from a panic.
func (s *Store) notify(fn func(models.Order), order models.Order) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Order subscriber panicked", zap.Any("panic", r))
		}
	}()
	fn(order)
}

// UpdateOrderStatus applies a local status change and kicks off a best-effort
// PUT to the backend status endpoint. Backend failure is logged, never
// returned, and never rolls back the local update.
func (s *Store) UpdateOrderStatus(ctx context.Context, id, status string) *models.Order {
	updated := s.UpdateOrder(ctx, id, map[string]interface{}{"status": status})
	if updated == nil {
		return nil
	}

	go func() {
		syncCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.backend.UpdateOrderStatus(syncCtx, id, status); err != nil {
			util.OrderSyncFailuresTotal.WithLabelValues("status").Inc()
			if errors.Is(err, backend.ErrNoAuthToken) {
				s.logger.Debug("Skipping status sync: no auth token", zap.String("order_id", id))
				return
			}
			s.logger.Warn("Failed to sync order status to backend",
				zap.String("order_id", id),
				zap.String("status", status),
				zap.Error(err))
		}
	}()

	return updated
}

// Subscribe registers a callback fired with every successfully updated order.
// The returned function removes the registration. A nil callback is rejected
// with a no-op unsubscriber.
func (s *Store) Subscribe(fn func(models.Order)) func() {
	if fn == nil {
		s.logger.Warn("Rejecting nil order subscriber")
		return func() {}
	}

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Orders returns a copy of the cached order list.
func (s *Store) Orders() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, len(s.st.Orders))
	copy(out, s.st.Orders)
	return out
}

// Order returns the cached order with the given id, or nil.
func (s *Store) Order(id string) *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.Orders {
		if s.st.Orders[i].ID == id {
			cp := s.st.Orders[i]
			return &cp
		}
	}
	return nil
}

// OrderByNumber returns the cached order with the given order number, or nil.
func (s *Store) OrderByNumber(orderNumber string) *models.Order {
	if orderNumber == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.Orders {
		if s.st.Orders[i].OrderNumber == orderNumber {
			cp := s.st.Orders[i]
			return &cp
		}
	}
	return nil
}

// SelectOrder marks the order with the given id as selected. Returns false if
// it is not in the cache.
func (s *Store) SelectOrder(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.Orders {
		if s.st.Orders[i].ID == id {
			cp := s.st.Orders[i]
			s.st.SelectedOrder = &cp
			s.persistLocked(ctx)
			return true
		}
	}
	return false
}

func (s *Store) SelectedOrder() *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.SelectedOrder == nil {
		return nil
	}
	cp := *s.st.SelectedOrder
	return &cp
}

// UserOrders filters the cache by user attribution. Orders arrive with either
// user id field set (or only a customer email, for orders pushed before the
// session authenticated), so the predicate matches any of them.
func (s *Store) UserOrders(userID, email string) []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Order
	for _, o := range s.st.Orders {
		if userID != "" && (o.UserID == userID || o.User == userID) {
			out = append(out, o)
			continue
		}
		if email != "" && (strings.EqualFold(o.CustomerInfo.Email, email) || strings.EqualFold(o.ContactInfo.Email, email)) {
			out = append(out, o)
		}
	}
	return out
}

// FetchOrders replaces the local cache with a full paginated sync from the
// backend: probe with a single record to learn the total, then walk every
// page sequentially. Fails closed (without touching the cache) when no auth
// token is stored or any page fails.
func (s *Store) FetchOrders(ctx context.Context) SyncResult {
	ctx, span := util.StartSpan(ctx, "OrderStore.FetchOrders")
	defer span.End()

	if !s.backend.HasAuthToken(ctx) {
		return SyncResult{Success: false, Error: "not authenticated"}
	}

	total, _, err := s.backend.ListOrders(ctx, 1, 1)
	if err != nil {
		util.OrderSyncFailuresTotal.WithLabelValues("fetch").Inc()
		s.logger.Warn("Order fetch probe failed", zap.Error(err))
		return SyncResult{Success: false, Error: err.Error()}
	}

	pages := (total + s.pageSize - 1) / s.pageSize
	fetched := make([]models.Order, 0, total)
	for page := 1; page <= pages; page++ {
		_, batch, err := s.backend.ListOrders(ctx, page, s.pageSize)
		if err != nil {
			util.OrderSyncFailuresTotal.WithLabelValues("fetch").Inc()
			s.logger.Warn("Order page fetch failed", zap.Int("page", page), zap.Error(err))
			return SyncResult{Success: false, Error: err.Error()}
		}
		fetched = append(fetched, batch...)
	}

	for i := range fetched {
		reconcileUserFields(&fetched[i])
	}

	s.mu.Lock()
	s.st.Orders = fetched
	s.persistLocked(ctx)
	s.mu.Unlock()

	util.OrdersFetchedTotal.Add(float64(len(fetched)))
	s.logger.Info("Order cache replaced from backend",
		zap.Int("total", total),
		zap.Int("fetched", len(fetched)))
	return SyncResult{Success: true, Count: len(fetched)}
}

// reconcileUserFields copies whichever of User/UserID is set to the other.
func reconcileUserFields(o *models.Order) {
	if o.UserID == "" && o.User != "" {
		o.UserID = o.User
	}
	if o.User == "" && o.UserID != "" {
		o.User = o.UserID
	}
}

func (s *Store) persistLocked(ctx context.Context) {
	if err := kvstore.SaveJSON(ctx, s.kv, kvstore.KeyOrderState, &s.st); err != nil {
		s.logger.Error("Failed to persist order state", zap.Error(err))
	}
}

// GenerateTrackingNumber produces a display tracking reference.
func GenerateTrackingNumber() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "TRK-" + strings.ToUpper(raw[:12])
}

// GenerateReceiptID produces a display receipt reference.
func GenerateReceiptID() string {
	return "RCP-" + strings.ToUpper(uuid.New().String()[:8])
}

// GenerateOrderNumber produces a client-side order number for drafts that
// have not round-tripped to the backend yet.
func GenerateOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.New().String()[:8])
}
