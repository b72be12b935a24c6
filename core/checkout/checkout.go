package checkout

import (
	"errors"
	"math"

	"github.com/moroshop/storefront/core/cart"
)

// ErrEmptyCart guards checkout against a zero-value cart: no total may
// be computed, and no payment attempted, for nothing.
var ErrEmptyCart = errors.New("no items to checkout")

// Snapshot is the totals breakdown a payment is authorized against. It
// is always recomputed server-side from projected cart data; a client
// total is never accepted verbatim.
type Snapshot struct {
	ItemsPrice      float64 `json:"itemsPrice"`
	CouponCode      string  `json:"couponCode,omitempty"`
	DiscountPercent float64 `json:"discountPercent"`
	DiscountAmount  float64 `json:"discountAmount"`
	DiscountedTotal float64 `json:"discountedTotal"`
	ShippingPrice   float64 `json:"shippingPrice"`
	TaxPrice        float64 `json:"taxPrice"`
	PayableTotal    float64 `json:"payableTotal"`
}

// Compute folds the projected items, an optional percentage discount,
// and the shipping and tax quote into the payable total. The evaluation
// order is fixed and rounding happens only at the discount and final
// steps; the intermediate items total stays unrounded. Changing this
// sequence changes charged amounts.
func Compute(items []cart.View, discountPercent float64, shippingPrice float64, taxPrice float64) (Snapshot, error) {
	itemsPrice := ItemsTotal(items)
	if itemsPrice == 0 {
		return Snapshot{}, ErrEmptyCart
	}

	var discountAmount float64
	if discountPercent > 0 {
		discountAmount = round2(itemsPrice * discountPercent / 100)
	}

	discountedTotal := itemsPrice - discountAmount
	payable := round2(discountedTotal + shippingPrice + taxPrice)

	return Snapshot{
		ItemsPrice:      itemsPrice,
		DiscountPercent: discountPercent,
		DiscountAmount:  discountAmount,
		DiscountedTotal: discountedTotal,
		ShippingPrice:   shippingPrice,
		TaxPrice:        taxPrice,
		PayableTotal:    payable,
	}, nil
}

// ItemsTotal sums unit price times quantity over the projected items.
// The unit price prefers the projected discount figure when one is
// present, else the resolved price. Nothing client-supplied is summed.
func ItemsTotal(items []cart.View) float64 {
	var total float64
	for _, it := range items {
		total += unitPrice(it) * float64(it.Quantity)
	}
	return total
}

func unitPrice(it cart.View) float64 {
	if it.DiscountPrice != nil && *it.DiscountPrice > 0 {
		return *it.DiscountPrice
	}
	return it.Price
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
