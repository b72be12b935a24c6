package shipping

import (
	"context"

	"github.com/moroshop/storefront/config"
)

// Quote is the shipping cost and tax the checkout folds into the final
// total. It always comes from a server-side provider: client-submitted
// rates are never trusted.
type Quote struct {
	ShippingPrice float64 `json:"shippingPrice"`
	TaxPrice      float64 `json:"taxPrice"`
}

type Provider interface {
	Quote(ctx context.Context, discountedTotal float64) (Quote, error)
}

// Flat charges a fixed shipping price and a tax proportional to the
// discounted items total.
type Flat struct {
	Price   float64
	TaxRate float64
}

func NewFlat(cfg config.Shipping) Flat {
	return Flat{
		Price:   cfg.FlatPrice,
		TaxRate: cfg.TaxRate,
	}
}

func (f Flat) Quote(ctx context.Context, discountedTotal float64) (Quote, error) {
	return Quote{
		ShippingPrice: f.Price,
		TaxPrice:      f.TaxRate * discountedTotal,
	}, nil
}
