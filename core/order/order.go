package order

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/moroshop/storefront/core/product"
)

type Status string

const (
	Pending Status = "pending"
	Success Status = "success"
	Expired Status = "expired"
)

// Order records a checkout at the moment it was charged: the totals
// breakdown is frozen here and never recomputed, so later catalog or
// coupon edits cannot alter a completed order.
type Order struct {
	ID            string    `json:"id" db:"order_id"`
	UserID        string    `json:"userId" db:"user_id"`
	ProviderID    string    `json:"providerId" db:"provider_id"`
	Status        Status    `json:"status" db:"status"`
	ItemsPrice    float64   `json:"itemsPrice" db:"items_price"`
	CouponCode    string    `json:"couponCode,omitempty" db:"coupon_code"`
	Discount      float64   `json:"discount" db:"discount"`
	ShippingPrice float64   `json:"shippingPrice" db:"shipping_price"`
	TaxPrice      float64   `json:"taxPrice" db:"tax_price"`
	TotalPrice    float64   `json:"totalPrice" db:"total_price"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

type StatusUp struct {
	ID        string    `db:"order_id"`
	Status    Status    `db:"status"`
	UpdatedAt time.Time `db:"updated_at"`
}

type Item struct {
	OrderID   string    `json:"orderId" db:"order_id"`
	ProductID string    `json:"productId" db:"product_id"`
	Name      string    `json:"name" db:"name"`
	UnitPrice float64   `json:"unitPrice" db:"unit_price"`
	Quantity  int       `json:"quantity" db:"quantity"`
	Variant   *Variant  `json:"variant" db:"variant"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Variant is the purchased variant snapshot, stored as JSONB.
type Variant product.Variant

func (v Variant) Value() (driver.Value, error) {
	return json.Marshal(product.Variant(v))
}

func (v *Variant) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return errors.New("incompatible type for variant column")
	}
	return json.Unmarshal(b, (*product.Variant)(v))
}
