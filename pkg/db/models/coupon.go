package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/merchshop/storefront-backend/pkg/enums"
)

// Coupon is a promo code redeemable at checkout. Codes are stored upper case.
type Coupon struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code           string             `gorm:"column:code;not null;uniqueIndex"`
	Name           string             `gorm:"column:name;not null;default:''"`
	DiscountType   enums.DiscountType `gorm:"column:discount_type;not null"`
	DiscountValue  decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinOrderAmount decimal.Decimal    `gorm:"column:min_order_amount;type:numeric(12,2);not null;default:0"`
	MaxDiscount    *decimal.Decimal   `gorm:"column:max_discount;type:numeric(12,2)"`
	UsageLimit     *int               `gorm:"column:usage_limit"`
	UsedCount      int                `gorm:"column:used_count;not null;default:0"`
	Active         bool               `gorm:"column:active;not null"`
	StartsAt       *time.Time         `gorm:"column:starts_at"`
	ExpiresAt      *time.Time         `gorm:"column:expires_at"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
