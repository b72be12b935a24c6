package cart

// Merge reconciles a guest's locally accumulated items into the owner's
// existing server items: a left fold over incoming, with existing as the
// accumulator. On a (product, variant) identity match the quantities are
// summed, since the two sides are taken as disjoint intentions such as
// additions made on two devices. Otherwise the incoming line is appended,
// preserving order on both sides.
//
// Merge does no stock clamping; quantities are clamped against the
// catalog at projection time. Merging the same incoming list twice
// doubles quantities: callers must run the merge exactly once per login.
func Merge(existing, incoming []Item) []Item {
	merged := make([]Item, len(existing))
	copy(merged, existing)

	for _, in := range incoming {
		idx := -1
		for i, ex := range merged {
			if sameLine(ex, in) {
				idx = i
				break
			}
		}

		if idx >= 0 {
			merged[idx].Quantity += in.Quantity
			continue
		}
		merged = append(merged, in)
	}

	return merged
}

// sameLine reports whether two items are the same (product, variant)
// pair. Two variants match only when both are present with equal
// identities; a line with a variant never matches one without, even for
// the same product.
func sameLine(a, b Item) bool {
	if a.ProductID != b.ProductID {
		return false
	}

	switch {
	case a.Variant == nil && b.Variant == nil:
		return true
	case a.Variant == nil || b.Variant == nil:
		return false
	}

	return a.Variant.ID != "" && a.Variant.ID == b.Variant.ID
}
