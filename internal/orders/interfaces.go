package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/merchshop/storefront-backend/pkg/db/models"
)

// Repository defines persistence operations for the orders tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CouponRedeemer records a coupon use inside the order transaction.
type CouponRedeemer interface {
	Redeem(ctx context.Context, tx *gorm.DB, code string) error
}
