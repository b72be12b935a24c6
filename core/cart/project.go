package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/moroshop/storefront/core/product"
)

// Project expands stored line items into display-ready views, resolving
// the unit price and stock per item from the catalog. A line whose
// product has been deleted or delisted is silently dropped from the
// output but left in storage untouched; viewing stays side-effect-free.
// Item order is preserved as stored.
func Project(ctx context.Context, db sqlx.ExtContext, items []Item) ([]View, error) {
	views := make([]View, 0, len(items))

	for _, it := range items {
		p, err := product.Fetch(ctx, db, it.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("fetching product[%s] for projection: %w", it.ProductID, err)
		}
		if !p.Active {
			continue
		}

		price, stock := product.Resolve(p, it.Variant)

		// A second "discount" figure is shown only when neither a
		// variant price nor an applied sale price already owns the
		// line's pricing.
		var discount *float64
		if it.Variant == nil && !p.OnSale {
			discount = p.DiscountPrice
		}

		views = append(views, View{
			ProductID:     p.ID,
			Name:          p.Name,
			Price:         price,
			DiscountPrice: discount,
			OnSale:        p.OnSale,
			Image:         p.ImageURL,
			Stock:         stock,
			Quantity:      clampQuantity(it.Quantity, stock),
			Subcategory:   p.SubcategoryID,
			Variant:       it.Variant,
		})
	}

	return views, nil
}

// clampQuantity forces q into [1, stock]. An out-of-stock line clamps
// to zero so it cannot contribute to a charged total.
func clampQuantity(q, stock int) int {
	if q < 1 {
		q = 1
	}
	if q > stock {
		q = stock
	}
	return q
}
