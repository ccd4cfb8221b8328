package coupons

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/merchshop/storefront-backend/pkg/types"
)

// ValidationRequest asks the coupon service whether code applies to an order of OrderAmount.
type ValidationRequest struct {
	Code        string          `json:"code"`
	OrderAmount decimal.Decimal `json:"order_amount"`
}

// ValidationResult is the coupon service's answer. Coupon is set only when Valid.
type ValidationResult struct {
	Valid   bool          `json:"valid"`
	Coupon  *types.Coupon `json:"coupon,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Validator is the remote coupon validation service. A returned error is a
// transport failure; an invalid coupon is reported through the result.
type Validator interface {
	Validate(ctx context.Context, req ValidationRequest) (ValidationResult, error)
}

type ceilingPolicy interface {
	CouponCeiling(subtotal decimal.Decimal) decimal.Decimal
}

type validationRecorder interface {
	IncCouponValidation(outcome string)
}
