package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Well-known keys for the persisted state slices.
const (
	KeyCartItems     = "cart:items"
	KeyOrderState    = "orders:state"
	KeyCouponCatalog = "coupons:catalog"
	KeyAuthToken     = "auth:token"
)

// Store is the durable key-value adapter every stateful component persists
// through. Values are opaque bytes; callers JSON-encode via LoadJSON/SaveJSON.
// Concurrent writers follow last-write-wins; there is no cross-process
// coordination.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// LoadJSON reads key and unmarshals it into v. Returns false if the key is
// absent.
func LoadJSON(ctx context.Context, s Store, key string, v interface{}) (bool, error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("kvstore get %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("kvstore decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON marshals v and writes it under key.
func SaveJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kvstore encode %s: %w", key, err)
	}
	if err := s.Put(ctx, key, data); err != nil {
		return fmt.Errorf("kvstore put %s: %w", key, err)
	}
	return nil
}
