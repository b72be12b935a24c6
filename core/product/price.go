package product

// Resolve computes the authoritative unit price and available stock for
// a product, optionally narrowed to a selected variant snapshot. This is
// the single chokepoint between catalog data and any money amount: a
// price carried in a client payload never reaches a total.
//
// A variant prices itself: sale flags on the parent product do not apply
// to variant pricing.
func Resolve(p Product, v *Variant) (unitPrice float64, stock int) {
	if v != nil {
		return v.Price, v.Quantity
	}

	unitPrice = p.Price
	if p.OnSale && p.DiscountPrice != nil && *p.DiscountPrice > 0 {
		unitPrice = *p.DiscountPrice
	}

	return unitPrice, p.Quantity
}
