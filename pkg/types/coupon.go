package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/merchshop/storefront-backend/pkg/enums"
)

// Coupon is a validated coupon together with the discount it grants the current order.
type Coupon struct {
	Code           string             `json:"code"`
	Name           string             `json:"name,omitempty"`
	DiscountType   enums.DiscountType `json:"discount_type"`
	DiscountValue  decimal.Decimal    `json:"discount_value"`
	Discount       decimal.Decimal    `json:"discount"`
	MinOrderAmount decimal.Decimal    `json:"min_order_amount"`
	MaxDiscount    *decimal.Decimal   `json:"max_discount,omitempty"`
	ExpiresAt      *time.Time         `json:"expires_at,omitempty"`
}

// EligibleFor reports whether the subtotal meets the coupon's minimum order amount.
func (c Coupon) EligibleFor(subtotal decimal.Decimal) bool {
	return subtotal.GreaterThanOrEqual(c.MinOrderAmount)
}

// ExpiredAt reports whether the coupon has lapsed at the given instant.
func (c Coupon) ExpiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}
