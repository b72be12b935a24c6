package cart

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/moroshop/storefront/core/product"
)

// Cart is the persisted server-side cart: one row per owner, the line
// items held in a single document column so every write replaces the
// whole list atomically.
type Cart struct {
	UserID    string    `json:"-" db:"user_id"`
	Items     Items     `json:"items" db:"items"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Item is one line: a product reference, a quantity and an optional
// variant snapshot. The snapshot is embedded by value, not referenced,
// so the line stays priceable after the catalog variant changes.
type Item struct {
	ProductID string           `json:"product"`
	Quantity  int              `json:"quantity"`
	Variant   *product.Variant `json:"variant,omitempty"`
}

type Items []Item

func (it Items) Value() (driver.Value, error) {
	return json.Marshal(it)
}

func (it *Items) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return errors.New("incompatible type for items column")
	}
	return json.Unmarshal(b, it)
}

// ItemNew is a client-submitted line as it arrives on sync and merge.
// The client picks items and quantities; it never supplies a price.
type ItemNew struct {
	ProductID string           `json:"product" validate:"required"`
	Quantity  int              `json:"quantity" validate:"required,gte=1"`
	Variant   *product.Variant `json:"variant" validate:"omitempty"`
}

// View is the client-facing projection of one line item, with the unit
// price and stock resolved from the catalog at read time.
type View struct {
	ProductID     string           `json:"product"`
	Name          string           `json:"name"`
	Price         float64          `json:"price"`
	DiscountPrice *float64         `json:"discountPrice"`
	OnSale        bool             `json:"onSale"`
	Image         string           `json:"image"`
	Stock         int              `json:"stock"`
	Quantity      int              `json:"quantity"`
	Subcategory   string           `json:"subcategory"`
	Variant       *product.Variant `json:"variant"`
}
