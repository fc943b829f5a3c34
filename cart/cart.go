// Package cart is the shopping-cart entity stored through the cache core:
// per-user or per-session carts with line mutation, derived totals, and the
// anonymous-to-authenticated merge performed at login.
//
// A cart is addressed by exactly one of user ID or session ID. Merging
// re-keys or folds the session cart into the user cart; ownership never
// reverts. JSON field names match the storefront wire shape.
package cart

import (
	"maps"
	"time"
)

// Variant distinguishes otherwise-identical product lines (size, color...).
// Equality is key/value equality, independent of insertion order.
type Variant map[string]string

// Equal reports whether two variants select the same line.
func (v Variant) Equal(o Variant) bool { return maps.Equal(v, o) }

// Item is one cart line, unique by (ProductID, Variant).
type Item struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	Variant   Variant   `json:"variant,omitempty"`
	Image     string    `json:"image,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Totals are derived from the items on every mutation and never trusted as
// externally settable.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
}

// Cart is the stored aggregate. UserID is set once the cart belongs to an
// authenticated identity; SessionID addresses anonymous carts and is
// cleared by a merge.
type Cart struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	Items     []Item    `json:"items"`
	Totals    Totals    `json:"totals"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// key returns the cache key the cart lives under: the owning user ID when
// present, the session ID otherwise.
func (c *Cart) key() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.SessionID
}

// findLine locates an existing line by (ProductID, Variant).
func findLine(items []Item, productID string, v Variant) int {
	for i := range items {
		if items[i].ProductID == productID && items[i].Variant.Equal(v) {
			return i
		}
	}
	return -1
}
