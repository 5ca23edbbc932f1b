package orders

import (
	"encoding/json"
	"fmt"

	"storefront-service/internal/models"
)

// applyPatch deep-merges patch into order and returns the merged record.
// Nested objects (addresses, payment details) are merged key-by-key rather
// than replaced wholesale, so a patch carrying only paymentDetails.status
// does not clobber paymentDetails.transactionId.
func applyPatch(order *models.Order, patch map[string]interface{}) (*models.Order, error) {
	raw, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}

	var base map[string]interface{}
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}

	deepMerge(base, patch)

	merged, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("encode merged order: %w", err)
	}

	var out models.Order
	if err := json.Unmarshal(merged, &out); err != nil {
		return nil, fmt.Errorf("decode merged order: %w", err)
	}
	return &out, nil
}

// deepMerge merges src into dst in place. Maps merge recursively; every
// other value type (including slices) replaces the destination.
func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}
