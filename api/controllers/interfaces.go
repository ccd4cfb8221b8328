package controllers

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/merchshop/storefront-backend/internal/cart"
	"github.com/merchshop/storefront-backend/internal/checkout"
	"github.com/merchshop/storefront-backend/internal/coupons"
	product "github.com/merchshop/storefront-backend/internal/products"
	"github.com/merchshop/storefront-backend/pkg/db/models"
)

// Pinger is implemented by every dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProductService is the catalog surface the storefront reads.
type ProductService interface {
	GetProduct(ctx context.Context, id string) (*cart.Product, error)
	ListProducts(ctx context.Context, filters product.ListFilters) (*product.ListResult, error)
}

// CartService is the cart surface exposed over HTTP.
type CartService interface {
	View(ctx context.Context, sessionID string) (cart.View, error)
	AddItem(ctx context.Context, sessionID string, p cart.Product, size string, quantity int, color string) (cart.Notice, error)
	BuyNow(ctx context.Context, sessionID string, p cart.Product, size string, quantity int, color string) error
	RemoveItem(ctx context.Context, sessionID, productID, size, color string) error
	UpdateQuantity(ctx context.Context, sessionID, productID, size string, quantity int, color string) error
}

// CheckoutService prices carts and places orders.
type CheckoutService interface {
	Summary(ctx context.Context, sessionID, paymentMethod string) (checkout.Summary, error)
	ClearCart(ctx context.Context, sessionID string) error
	SubmitOrder(ctx context.Context, sessionID string, in checkout.SubmitInput) (*checkout.OrderConfirmation, error)
}

// CouponService drives the per-session coupon workflow.
type CouponService interface {
	Get(ctx context.Context, sessionID string) (coupons.Snapshot, error)
	Apply(ctx context.Context, sessionID, code string, subtotal decimal.Decimal) (coupons.Snapshot, error)
	Remove(ctx context.Context, sessionID string) error
}

// OrderReader loads placed orders for their cart session.
type OrderReader interface {
	GetOrder(ctx context.Context, cartSession, orderNumber string) (*models.Order, error)
}
