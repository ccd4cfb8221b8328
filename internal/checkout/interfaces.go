package checkout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/merchshop/storefront-backend/internal/cart"
	"github.com/merchshop/storefront-backend/pkg/enums"
	"github.com/merchshop/storefront-backend/pkg/types"
)

// OrderLine is one item of an order payload.
type OrderLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size"`
	Color     string          `json:"color,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Image     *string         `json:"image,omitempty"`
}

// OrderPayload is the finalized order handed to the order service.
type OrderPayload struct {
	CartSession     string              `json:"cart_session"`
	Items           []OrderLine         `json:"items"`
	Address         types.Address       `json:"address"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	DeliveryCharge  decimal.Decimal     `json:"delivery_charge"`
	PaymentDiscount decimal.Decimal     `json:"payment_discount"`
	HandlingCharge  decimal.Decimal     `json:"handling_charge"`
	CouponDiscount  decimal.Decimal     `json:"coupon_discount"`
	Total           decimal.Decimal     `json:"total"`
	CouponCode      *string             `json:"coupon_code,omitempty"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	Status          enums.OrderStatus   `json:"status"`
	UTR             *string             `json:"utr,omitempty"`
}

// OrderConfirmation identifies a placed order.
type OrderConfirmation struct {
	OrderID       string              `json:"order_id"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	CouponCode    *string             `json:"coupon_code,omitempty"`
}

// SubmitResult is the order service's answer. A business rejection has
// Success false and an optional Message.
type SubmitResult struct {
	Success bool               `json:"success"`
	Order   *OrderConfirmation `json:"order,omitempty"`
	Message string             `json:"message,omitempty"`
}

// Submitter is the remote order submission service. A returned error is a
// transport failure.
type Submitter interface {
	Submit(ctx context.Context, payload OrderPayload) (SubmitResult, error)
}

type cartManager interface {
	Snapshot(ctx context.Context, sessionID string) (cart.State, error)
	Clear(ctx context.Context, sessionID string) error
}

type couponSession interface {
	Applied(ctx context.Context, sessionID string) (*types.Coupon, error)
	Remove(ctx context.Context, sessionID string) error
}

type submissionRecorder interface {
	ObserveSubmission(outcome, paymentMethod string, duration time.Duration)
}
