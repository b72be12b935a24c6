package product

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Product struct {
	ID            string    `json:"id" db:"product_id"`
	Name          string    `json:"name" db:"name"`
	ImageURL      string    `json:"imageUrl" db:"image_url"`
	SubcategoryID string    `json:"subcategory" db:"subcategory_id"`
	Price         float64   `json:"price" db:"price"`
	DiscountPrice *float64  `json:"discountPrice" db:"discount_price"`
	OnSale        bool      `json:"onSale" db:"on_sale"`
	Quantity      int       `json:"quantity" db:"quantity"`
	Variants      Variants  `json:"variants" db:"variants"`
	Active        bool      `json:"active" db:"active"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// Variant is a purchasable configuration of a product carrying its own
// price and stock. Cart items embed it by value so a historical cart
// stays interpretable after the variant is edited or removed here.
type Variant struct {
	ID       string  `json:"id" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"gte=0"`
}

// Variants is stored as a single JSONB column.
type Variants []Variant

func (v Variants) Value() (driver.Value, error) {
	return json.Marshal(v)
}

func (v *Variants) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return errors.New("incompatible type for variants column")
	}
	return json.Unmarshal(b, v)
}

type ProductNew struct {
	Name          string    `json:"name" validate:"required"`
	ImageURL      string    `json:"imageUrl"`
	SubcategoryID string    `json:"subcategory"`
	Price         float64   `json:"price" validate:"gte=0"`
	DiscountPrice *float64  `json:"discountPrice" validate:"omitempty,gte=0"`
	OnSale        bool      `json:"onSale"`
	Quantity      int       `json:"quantity" validate:"gte=0"`
	Variants      []Variant `json:"variants" validate:"omitempty,dive"`
}

type ProductUp struct {
	Name          *string   `json:"name"`
	ImageURL      *string   `json:"imageUrl"`
	SubcategoryID *string   `json:"subcategory"`
	Price         *float64  `json:"price" validate:"omitempty,gte=0"`
	DiscountPrice *float64  `json:"discountPrice" validate:"omitempty,gte=0"`
	OnSale        *bool     `json:"onSale"`
	Quantity      *int      `json:"quantity" validate:"omitempty,gte=0"`
	Variants      []Variant `json:"variants" validate:"omitempty,dive"`
}

// FindVariant returns the product's current variant with the given id.
func (p Product) FindVariant(id string) (Variant, error) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("variant[%s] not found on product[%s]", id, p.ID)
}
