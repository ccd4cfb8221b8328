package promocodes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/merchshop/storefront-backend/internal/coupons"
	"github.com/merchshop/storefront-backend/pkg/db/models"
	"github.com/merchshop/storefront-backend/pkg/enums"
	"github.com/merchshop/storefront-backend/pkg/logger"
	"github.com/merchshop/storefront-backend/pkg/types"
)

const (
	msgUnknown       = "Invalid coupon code"
	msgInactive      = "Coupon is not active"
	msgNotStarted    = "Coupon is not yet valid"
	msgExpired       = "Coupon has expired"
	msgExhausted     = "Coupon usage limit reached"
	msgMinimumFormat = "Minimum order amount of %s required"
)

var hundred = decimal.NewFromInt(100)

type couponStore interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// Service validates promo codes against the coupons table.
type Service struct {
	repo couponStore
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds the coupon validator.
func NewService(repo couponStore, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, logg: logg, now: time.Now}, nil
}

// Validate reports whether req.Code applies to an order of req.OrderAmount and
// how much it takes off. Storage failures are returned as errors.
func (s *Service) Validate(ctx context.Context, req coupons.ValidationRequest) (coupons.ValidationResult, error) {
	code := normalizeCode(req.Code)
	if code == "" {
		return rejected(msgUnknown), nil
	}

	record, err := s.repo.FindByCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rejected(msgUnknown), nil
	}
	if err != nil {
		return coupons.ValidationResult{}, fmt.Errorf("load coupon %s: %w", code, err)
	}

	now := s.now()
	switch {
	case !record.Active:
		return rejected(msgInactive), nil
	case record.StartsAt != nil && now.Before(*record.StartsAt):
		return rejected(msgNotStarted), nil
	case record.ExpiresAt != nil && now.After(*record.ExpiresAt):
		return rejected(msgExpired), nil
	case record.UsageLimit != nil && record.UsedCount >= *record.UsageLimit:
		return rejected(msgExhausted), nil
	case req.OrderAmount.LessThan(record.MinOrderAmount):
		return rejected(fmt.Sprintf(msgMinimumFormat, record.MinOrderAmount.StringFixed(2))), nil
	}

	discount, err := discountFor(*record, req.OrderAmount)
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"code": code, "error": err.Error()}), "coupon has an unusable discount")
		return rejected(msgInactive), nil
	}

	coupon := &types.Coupon{
		Code:           record.Code,
		Name:           record.Name,
		DiscountType:   record.DiscountType,
		DiscountValue:  record.DiscountValue,
		Discount:       discount,
		MinOrderAmount: record.MinOrderAmount,
		MaxDiscount:    record.MaxDiscount,
		ExpiresAt:      record.ExpiresAt,
	}
	return coupons.ValidationResult{Valid: true, Coupon: coupon}, nil
}

// Redeem records one use of the coupon inside the caller's transaction.
func (s *Service) Redeem(ctx context.Context, tx *gorm.DB, code string) error {
	return NewRepository(tx).IncrementUsage(ctx, code, s.now())
}

// discountFor computes the amount the coupon takes off orderAmount, rounded to
// two places. Percentage discounts honour MaxDiscount; no discount exceeds the
// order amount.
func discountFor(coupon models.Coupon, orderAmount decimal.Decimal) (decimal.Decimal, error) {
	if coupon.DiscountValue.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative discount value %s", coupon.DiscountValue)
	}

	var discount decimal.Decimal
	switch coupon.DiscountType {
	case enums.DiscountTypePercentage:
		discount = orderAmount.Mul(coupon.DiscountValue).Div(hundred)
		if coupon.MaxDiscount != nil && discount.GreaterThan(*coupon.MaxDiscount) {
			discount = *coupon.MaxDiscount
		}
	case enums.DiscountTypeFixed:
		discount = coupon.DiscountValue
	default:
		return decimal.Zero, fmt.Errorf("unknown discount type %q", coupon.DiscountType)
	}

	if discount.GreaterThan(orderAmount) {
		discount = orderAmount
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount.Round(2), nil
}

func rejected(message string) coupons.ValidationResult {
	return coupons.ValidationResult{Valid: false, Message: message}
}
