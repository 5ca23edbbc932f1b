package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-service/internal/kvstore"
	"storefront-service/internal/models"
	"storefront-service/internal/util"
)

// Manager owns the cart line items. Count and total are derived from the
// lines on every read, never stored, so they cannot diverge. Every mutation
// persists the full line slice to the KV store before returning.
//
// One instance is shared across all request handlers, so every entry point
// takes the mutex.
type Manager struct {
	mu     sync.Mutex
	kv     kvstore.Store
	logger *zap.Logger
	items  []models.CartLineItem
}

// NewManager creates a cart manager and restores any persisted lines.
func NewManager(ctx context.Context, kv kvstore.Store) *Manager {
	m := &Manager{
		kv:     kv,
		logger: util.GetLogger(),
		items:  []models.CartLineItem{},
	}
	if _, err := kvstore.LoadJSON(ctx, kv, kvstore.KeyCartItems, &m.items); err != nil {
		m.logger.Warn("Failed to restore cart from storage", zap.Error(err))
		m.items = []models.CartLineItem{}
	}
	return m
}

// Add normalizes the input and merges it into the cart by identity key.
// Internal errors are swallowed and reported as a false return so a bad
// product payload never breaks the caller's flow.
func (m *Manager) Add(ctx context.Context, input models.ProductInput) bool {
	item, err := input.Normalize()
	if err != nil {
		m.logger.Warn("Rejecting unnormalizable cart input", zap.Error(err))
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := item.Key()
	merged := false
	for i := range m.items {
		if m.items[i].Key() == key {
			m.items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		m.items = append(m.items, item)
	}

	util.CartMutationsTotal.WithLabelValues("add").Inc()
	m.persistLocked(ctx)
	return true
}

// UpdateQuantity sets the quantity of the line identified by key. Quantities
// below one are ignored; callers remove lines explicitly.
func (m *Manager) UpdateQuantity(ctx context.Context, key models.LineKey, qty int) {
	if qty < 1 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].Key() == key {
			m.items[i].Quantity = qty
			util.CartMutationsTotal.WithLabelValues("update").Inc()
			m.persistLocked(ctx)
			return
		}
	}
}

// Remove deletes the line identified by key, preserving the order of the
// remaining lines.
func (m *Manager) Remove(ctx context.Context, key models.LineKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].Key() == key {
			m.items = append(m.items[:i], m.items[i+1:]...)
			util.CartMutationsTotal.WithLabelValues("remove").Inc()
			m.persistLocked(ctx)
			return
		}
	}
}

// Clear empties the cart.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = []models.CartLineItem{}
	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	m.persistLocked(ctx)
}

// Contains reports whether a line with the given identity key is in the cart.
func (m *Manager) Contains(productID, size, color string) bool {
	key := models.LineKey{ProductID: productID, Size: size, Color: color}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].Key() == key {
			return true
		}
	}
	return false
}

// Items returns the cart lines in insertion order. The slice is a copy;
// mutations go through the manager.
func (m *Manager) Items() []models.CartLineItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.CartLineItem, len(m.items))
	copy(out, m.items)
	return out
}

// Count is the sum of line quantities.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for i := range m.items {
		count += m.items[i].Quantity
	}
	return count
}

// Total is the sum of price*quantity across lines.
func (m *Manager) Total() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalLocked()
}

func (m *Manager) totalLocked() decimal.Decimal {
	total := decimal.Zero
	for i := range m.items {
		line := m.items[i].Price.Mul(decimal.NewFromInt(int64(m.items[i].Quantity)))
		total = total.Add(line)
	}
	return total
}

func (m *Manager) persistLocked(ctx context.Context) {
	if err := kvstore.SaveJSON(ctx, m.kv, kvstore.KeyCartItems, m.items); err != nil {
		m.logger.Error("Failed to persist cart", zap.Error(err))
	}
}
