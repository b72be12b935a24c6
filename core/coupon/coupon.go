package coupon

import (
	"errors"
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Rejection reasons surfaced to the checkout flow as explicit failures.
var (
	ErrNotFound    = errors.New("coupon not found")
	ErrInactive    = errors.New("coupon is not active")
	ErrExpired     = errors.New("coupon has expired")
	ErrUsageLimit  = errors.New("coupon usage limit reached")
	ErrAlreadyUsed = errors.New("coupon already used by this user")
	ErrRevoked     = errors.New("coupon usage was revoked")
)

// Rejected reports whether err is a domain rejection rather than a
// store failure.
func Rejected(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInactive) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrUsageLimit) ||
		errors.Is(err, ErrAlreadyUsed) ||
		errors.Is(err, ErrRevoked)
}

type Coupon struct {
	ID         string    `json:"id" db:"coupon_id"`
	Code       string    `json:"code" db:"code"`
	Discount   float64   `json:"discount" db:"discount"`
	ExpiresAt  time.Time `json:"expiresAt" db:"expires_at"`
	UsageLimit int       `json:"usageLimit" db:"usage_limit"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`

	UsedBy []string `json:"usedBy,omitempty" db:"-"`
}

// CouponNew mirrors the admin creation payload. An empty code asks the
// server to generate one. Discount is a percentage of the items total.
type CouponNew struct {
	Code       string    `json:"code" validate:"omitempty,min=3,max=30,alphanum,uppercase"`
	Discount   float64   `json:"discount" validate:"gte=0,lte=100"`
	ExpiresAt  time.Time `json:"expiresAt" validate:"required,gt"`
	UsageLimit int       `json:"usageLimit" validate:"gte=0"`
}

// checkUsable applies the validity rules shared by apply and
// revalidation: active, not
// expired, and under its usage limit. A zero usage limit means
// unlimited.
func (c Coupon) checkUsable(now time.Time, usages int) error {
	if c.Status != StatusActive {
		return ErrInactive
	}
	if c.ExpiresAt.Before(now) {
		return ErrExpired
	}
	if c.UsageLimit > 0 && usages >= c.UsageLimit {
		return ErrUsageLimit
	}
	return nil
}
