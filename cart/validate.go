package cart

import (
	"context"
	"errors"
	"fmt"
)

// Product is the slice of catalog data cart validation needs.
type Product struct {
	ID     string
	Name   string
	Price  float64
	Stock  int
	Active bool
	Image  string
}

// Sentinel errors a ProductLookup implementation returns.
var (
	ErrProductNotFound    = errors.New("cart: product not found")
	ErrProductUnavailable = errors.New("cart: product service unavailable")
)

// ProductLookup supplies current price/availability/stock for validation.
// Implemented by the product-catalog client, consumed here.
type ProductLookup interface {
	Product(ctx context.Context, productID string) (Product, error)
}

// IssueKind classifies one per-line validation problem.
type IssueKind string

const (
	IssueNotFound          IssueKind = "not_found"
	IssueUnavailable       IssueKind = "unavailable"
	IssueInsufficientStock IssueKind = "insufficient_stock"
	IssuePriceChanged      IssueKind = "price_changed"
)

// Issue is one per-line validation problem.
type Issue struct {
	Kind      IssueKind
	ItemID    string
	ProductID string
	Detail    string
}

// Validation aggregates the outcome for the whole cart. Issues are
// per-line, never a single opaque error, so a caller can present partial
// information to the user.
type Validation struct {
	Valid  bool
	Cart   Cart
	Issues []Issue
}

// Validate checks every line against the catalog. Lookup failures become
// per-line issues rather than aborting the pass. When every line is clean,
// refreshed names/images are persisted and the updated cart returned.
func (s *Store) Validate(ctx context.Context, userID, sessionID string, lookup ProductLookup) (Validation, error) {
	c, err := s.GetCart(ctx, userID, sessionID)
	if err != nil {
		return Validation{}, err
	}
	if len(c.Items) == 0 {
		return Validation{Valid: true, Cart: c}, nil
	}

	// one lookup per distinct product; carts repeat products across variants
	products := make(map[string]*Product)
	lookupErrs := make(map[string]error)
	for _, it := range c.Items {
		if _, seen := products[it.ProductID]; seen {
			continue
		}
		if _, seen := lookupErrs[it.ProductID]; seen {
			continue
		}
		p, err := lookup.Product(ctx, it.ProductID)
		if err != nil {
			lookupErrs[it.ProductID] = err
			continue
		}
		products[it.ProductID] = &p
	}

	var issues []Issue
	for i := range c.Items {
		it := &c.Items[i]

		if err, failed := lookupErrs[it.ProductID]; failed {
			kind := IssueUnavailable
			if errors.Is(err, ErrProductNotFound) {
				kind = IssueNotFound
			}
			issues = append(issues, Issue{
				Kind:      kind,
				ItemID:    it.ID,
				ProductID: it.ProductID,
				Detail:    err.Error(),
			})
			continue
		}

		p := products[it.ProductID]
		if !p.Active || p.Stock == 0 {
			issues = append(issues, Issue{
				Kind:      IssueUnavailable,
				ItemID:    it.ID,
				ProductID: it.ProductID,
				Detail:    fmt.Sprintf("product %s is not available", p.Name),
			})
			continue
		}
		if p.Stock < it.Quantity {
			issues = append(issues, Issue{
				Kind:      IssueInsufficientStock,
				ItemID:    it.ID,
				ProductID: it.ProductID,
				Detail:    fmt.Sprintf("product %s has insufficient stock, available: %d", p.Name, p.Stock),
			})
			continue
		}
		if p.Price != it.Price {
			issues = append(issues, Issue{
				Kind:      IssuePriceChanged,
				ItemID:    it.ID,
				ProductID: it.ProductID,
				Detail:    fmt.Sprintf("price changed from %.2f to %.2f", it.Price, p.Price),
			})
			continue
		}

		// clean line: refresh catalog-owned fields
		it.Name = p.Name
		if p.Image != "" {
			it.Image = p.Image
		}
	}

	if len(issues) > 0 {
		return Validation{Valid: false, Cart: c, Issues: issues}, nil
	}

	if err := s.save(ctx, &c); err != nil {
		return Validation{}, err
	}
	return Validation{Valid: true, Cart: c}, nil
}
