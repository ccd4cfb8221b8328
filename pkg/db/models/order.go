package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/merchshop/storefront-backend/pkg/enums"
	"github.com/merchshop/storefront-backend/pkg/types"
)

// Order is a submitted checkout with the financial figures it was placed at.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string              `gorm:"column:order_number;not null;uniqueIndex"`
	CartSession     string              `gorm:"column:cart_session;not null"`
	Status          enums.OrderStatus   `gorm:"column:status;not null"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;not null"`
	UTR             *string             `gorm:"column:utr"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DeliveryCharge  decimal.Decimal     `gorm:"column:delivery_charge;type:numeric(12,2);not null"`
	PaymentDiscount decimal.Decimal     `gorm:"column:payment_discount;type:numeric(12,2);not null"`
	HandlingCharge  decimal.Decimal     `gorm:"column:handling_charge;type:numeric(12,2);not null"`
	CouponDiscount  decimal.Decimal     `gorm:"column:coupon_discount;type:numeric(12,2);not null"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	CouponCode      *string             `gorm:"column:coupon_code"`
	ShippingAddress types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	LineItems       []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
