package cart

import (
	"github.com/storekit/cartcache/internal/money"
)

// Pricing carries the rates the totals formula needs. Values come from
// service configuration; the zero value is not usable, start from
// DefaultPricing.
type Pricing struct {
	TaxRate         float64 // e.g. 0.08
	FreeShippingMin float64 // subtotal strictly above this ships free
	FlatShippingFee float64 // applied below the threshold
}

func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:         0.08,
		FreeShippingMin: 50.00,
		FlatShippingFee: 10.00,
	}
}

// Totals computes the derived totals for a set of lines:
//
//	subtotal = Σ price×quantity
//	tax      = subtotal × TaxRate
//	shipping = 0 if subtotal > FreeShippingMin, else FlatShippingFee
//	total    = subtotal + tax + shipping
//
// An empty cart totals to zero: no lines, no shipping. All arithmetic runs
// in whole cents with half-up rounding, so the total invariant holds
// exactly. Pure function, no side effects.
func (p Pricing) Totals(items []Item) Totals {
	if len(items) == 0 {
		return Totals{}
	}

	var subtotal money.Cents
	for i := range items {
		subtotal = subtotal.Add(money.FromFloat(items[i].Price).MulInt(items[i].Quantity))
	}

	tax := subtotal.MulRate(p.TaxRate)

	shipping := money.FromFloat(p.FlatShippingFee)
	if subtotal.GreaterThan(money.FromFloat(p.FreeShippingMin)) {
		shipping = 0
	}

	return Totals{
		Subtotal: subtotal.Float64(),
		Tax:      tax.Float64(),
		Shipping: shipping.Float64(),
		Total:    subtotal.Add(tax).Add(shipping).Float64(),
	}
}
