package coupon

import (
	"context"

	"storefront-service/internal/kvstore"
	"storefront-service/internal/models"
)

// Catalog is the set of known coupons, keyed by case-normalized code.
type Catalog struct {
	byCode map[string]models.Coupon
}

func NewCatalog(coupons []models.Coupon) *Catalog {
	c := &Catalog{byCode: make(map[string]models.Coupon, len(coupons))}
	for _, cp := range coupons {
		c.byCode[normalizeCode(cp.Code)] = cp
	}
	return c
}

// Lookup finds a coupon by code, case-insensitively.
func (c *Catalog) Lookup(code string) (models.Coupon, bool) {
	cp, ok := c.byCode[normalizeCode(code)]
	return cp, ok
}

// Coupons returns the catalog contents in unspecified order.
func (c *Catalog) Coupons() []models.Coupon {
	out := make([]models.Coupon, 0, len(c.byCode))
	for _, cp := range c.byCode {
		out = append(out, cp)
	}
	return out
}

// LoadCatalog restores the cached coupon catalog from the KV store. A missing
// cache yields an empty catalog, not an error.
func LoadCatalog(ctx context.Context, kv kvstore.Store) (*Catalog, error) {
	var coupons []models.Coupon
	if _, err := kvstore.LoadJSON(ctx, kv, kvstore.KeyCouponCatalog, &coupons); err != nil {
		return nil, err
	}
	return NewCatalog(coupons), nil
}

// SaveCatalog writes the catalog cache back to the KV store.
func SaveCatalog(ctx context.Context, kv kvstore.Store, c *Catalog) error {
	return kvstore.SaveJSON(ctx, kv, kvstore.KeyCouponCatalog, c.Coupons())
}
