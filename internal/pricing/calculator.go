package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/merchshop/storefront-backend/internal/cart"
	"github.com/merchshop/storefront-backend/pkg/config"
	"github.com/merchshop/storefront-backend/pkg/enums"
	"github.com/merchshop/storefront-backend/pkg/types"
)

// Rates are the flat amounts the calculator applies.
type Rates struct {
	FreeDeliveryThreshold decimal.Decimal
	FlatDeliveryFee       decimal.Decimal
	UPIDiscount           decimal.Decimal
	CODHandlingFee        decimal.Decimal
}

// DefaultRates are the storefront's standard fees and discounts.
func DefaultRates() Rates {
	return Rates{
		FreeDeliveryThreshold: decimal.NewFromInt(199),
		FlatDeliveryFee:       decimal.NewFromInt(9),
		UPIDiscount:           decimal.NewFromInt(10),
		CODHandlingFee:        decimal.NewFromInt(9),
	}
}

// Summary is the authoritative breakdown of an order. Every figure shown to
// the shopper is read from here.
type Summary struct {
	Subtotal        decimal.Decimal     `json:"subtotal"`
	DeliveryCharge  decimal.Decimal     `json:"delivery_charge"`
	PaymentDiscount decimal.Decimal     `json:"payment_discount"`
	HandlingCharge  decimal.Decimal     `json:"handling_charge"`
	CouponDiscount  decimal.Decimal     `json:"coupon_discount"`
	Total           decimal.Decimal     `json:"total"`
	ItemCount       int                 `json:"item_count"`
	ItemSavings     decimal.Decimal     `json:"item_savings"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
}

// Savings is everything the shopper saves against MRP and list fees.
func (s Summary) Savings() decimal.Decimal {
	return s.ItemSavings.Add(s.PaymentDiscount).Add(s.CouponDiscount)
}

// Calculator computes order summaries. It holds no state beyond its rates.
type Calculator struct {
	rates Rates
}

// NewCalculator builds a calculator from explicit rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// NewCalculatorFromConfig builds a calculator from the pricing config section.
func NewCalculatorFromConfig(cfg config.PricingConfig) (*Calculator, error) {
	threshold, fee, upi, cod, err := cfg.Amounts()
	if err != nil {
		return nil, fmt.Errorf("pricing config: %w", err)
	}
	return NewCalculator(Rates{
		FreeDeliveryThreshold: threshold,
		FlatDeliveryFee:       fee,
		UPIDiscount:           upi,
		CODHandlingFee:        cod,
	}), nil
}

// Rates returns the configured amounts.
func (c *Calculator) Rates() Rates {
	return c.rates
}

// Subtotal sums unit price times quantity.
func (c *Calculator) Subtotal(items []cart.Item) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	return subtotal
}

// ComputeSummary prices items for the payment method with an optional coupon.
// The coupon's discount is trusted as given and the total is never floored.
func (c *Calculator) ComputeSummary(items []cart.Item, method enums.PaymentMethod, coupon *types.Coupon) Summary {
	summary := Summary{
		Subtotal:        c.Subtotal(items),
		DeliveryCharge:  decimal.Zero,
		PaymentDiscount: decimal.Zero,
		HandlingCharge:  decimal.Zero,
		CouponDiscount:  decimal.Zero,
		ItemSavings:     decimal.Zero,
		PaymentMethod:   method,
	}
	for _, item := range items {
		summary.ItemCount += item.Quantity
		summary.ItemSavings = summary.ItemSavings.Add(item.LineSavings())
	}

	summary.DeliveryCharge = c.deliveryCharge(summary.Subtotal)

	switch method {
	case enums.PaymentMethodUPI:
		summary.PaymentDiscount = c.rates.UPIDiscount
	case enums.PaymentMethodCOD:
		summary.HandlingCharge = c.rates.CODHandlingFee
	}

	if coupon != nil {
		summary.CouponDiscount = coupon.Discount
	}

	summary.Total = summary.Subtotal.
		Add(summary.DeliveryCharge).
		Add(summary.HandlingCharge).
		Sub(summary.PaymentDiscount).
		Sub(summary.CouponDiscount)
	return summary
}

// CouponCeiling is the largest coupon discount that keeps the total at or
// above zero whichever payment method is chosen.
func (c *Calculator) CouponCeiling(subtotal decimal.Decimal) decimal.Decimal {
	base := subtotal.Add(c.deliveryCharge(subtotal))
	ceiling := decimal.Min(
		base.Sub(c.rates.UPIDiscount),
		base.Add(c.rates.CODHandlingFee),
	)
	if ceiling.IsNegative() {
		return decimal.Zero
	}
	return ceiling
}

func (c *Calculator) deliveryCharge(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(c.rates.FreeDeliveryThreshold) {
		return decimal.Zero
	}
	return c.rates.FlatDeliveryFee
}
