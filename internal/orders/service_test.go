package orders

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/merchshop/storefront-backend/internal/checkout"
	"github.com/merchshop/storefront-backend/internal/promocodes"
	"github.com/merchshop/storefront-backend/pkg/db"
	"github.com/merchshop/storefront-backend/pkg/db/models"
	"github.com/merchshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/merchshop/storefront-backend/pkg/errors"
	"github.com/merchshop/storefront-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  cart_session TEXT NOT NULL,
  status TEXT NOT NULL,
  payment_method TEXT NOT NULL,
  utr TEXT,
  subtotal TEXT NOT NULL,
  delivery_charge TEXT NOT NULL,
  payment_discount TEXT NOT NULL,
  handling_charge TEXT NOT NULL,
  coupon_discount TEXT NOT NULL,
  total TEXT NOT NULL,
  coupon_code TEXT,
  shipping_address TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderLineItems := `
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  position INTEGER NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  size TEXT NOT NULL DEFAULT '',
  color TEXT NOT NULL DEFAULT '',
  unit_price TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  line_total TEXT NOT NULL,
  image TEXT,
  created_at DATETIME
);`
	coupons := `
CREATE TABLE IF NOT EXISTS coupons (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT '',
  discount_type TEXT NOT NULL,
  discount_value TEXT NOT NULL,
  min_order_amount TEXT NOT NULL DEFAULT '0',
  max_discount TEXT,
  usage_limit INTEGER,
  used_count INTEGER NOT NULL DEFAULT 0,
  active INTEGER NOT NULL DEFAULT 1,
  starts_at DATETIME,
  expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	for _, ddl := range []string{orders, orderLineItems, coupons} {
		require.NoError(t, conn.Exec(ddl).Error)
	}

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

type fixture struct {
	conn    *gorm.DB
	svc     *Service
	coupons *promocodes.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := setupOrdersTestDB(t)
	couponRepo := promocodes.NewRepository(conn)
	redeemer, err := promocodes.NewService(couponRepo, nil)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), db.NewFromGorm(conn), redeemer, nil)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC) }
	return &fixture{conn: conn, svc: svc, coupons: couponRepo}
}

func validPayload() checkout.OrderPayload {
	image := "https://cdn.example.com/tee.png"
	utr := "123456789012"
	return checkout.OrderPayload{
		CartSession: "session-1",
		Items: []checkout.OrderLine{
			{ProductID: "tee", Name: "Tour Tee", Size: "M", Color: "Black", Price: decimal.NewFromInt(699), Quantity: 2, Image: &image},
			{ProductID: "sticker", Name: "Sticker", Size: "no-size", Price: decimal.NewFromInt(50), Quantity: 1},
		},
		Address: types.Address{
			FullName:   "Asha Rao",
			Phone:      "9876543210",
			Line1:      "12 MG Road",
			City:       "Pune",
			State:      "Maharashtra",
			PostalCode: "411001",
			Country:    "IN",
		},
		Subtotal:        decimal.NewFromInt(1448),
		DeliveryCharge:  decimal.Zero,
		PaymentDiscount: decimal.NewFromInt(10),
		HandlingCharge:  decimal.Zero,
		CouponDiscount:  decimal.Zero,
		Total:           decimal.NewFromInt(1438),
		PaymentMethod:   enums.PaymentMethodUPI,
		Status:          enums.OrderStatusAwaitingPaymentConfirmation,
		UTR:             &utr,
	}
}

func TestSubmitPersistsOrderAndRedeemsCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	limit := 5
	_, err := f.coupons.Create(ctx, &models.Coupon{Code: "merch20", DiscountType: enums.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(20), Active: true, UsageLimit: &limit})
	require.NoError(t, err)

	payload := validPayload()
	code := "MERCH20"
	payload.CouponCode = &code
	payload.CouponDiscount = decimal.NewFromInt(20)
	payload.Total = decimal.NewFromInt(1418)

	result, err := f.svc.Submit(ctx, payload)
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)
	require.NotNil(t, result.Order)
	assert.True(t, strings.HasPrefix(result.Order.OrderID, "ORD-20261001-"), result.Order.OrderID)
	assert.True(t, result.Order.TotalAmount.Equal(decimal.NewFromInt(1418)))
	assert.Equal(t, enums.OrderStatusAwaitingPaymentConfirmation, result.Order.Status)
	assert.Equal(t, enums.PaymentMethodUPI, result.Order.PaymentMethod)
	require.NotNil(t, result.Order.CouponCode)
	assert.Equal(t, "MERCH20", *result.Order.CouponCode)

	order, err := f.svc.GetOrder(ctx, "session-1", result.Order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "Pune", order.ShippingAddress.City)
	require.NotNil(t, order.UTR)
	assert.Equal(t, "123456789012", *order.UTR)
	require.Len(t, order.LineItems, 2)
	assert.Equal(t, "tee", order.LineItems[0].ProductID)
	assert.True(t, order.LineItems[0].LineTotal.Equal(decimal.NewFromInt(1398)))
	assert.Equal(t, "sticker", order.LineItems[1].ProductID)

	coupon, err := f.coupons.FindByCode(ctx, "merch20")
	require.NoError(t, err)
	assert.Equal(t, 1, coupon.UsedCount)
}

func TestSubmitRejectsInconsistentPayloads(t *testing.T) {
	cases := map[string]func(p *checkout.OrderPayload){
		"no items":        func(p *checkout.OrderPayload) { p.Items = nil },
		"subtotal drift":  func(p *checkout.OrderPayload) { p.Subtotal = decimal.NewFromInt(1000) },
		"total drift":     func(p *checkout.OrderPayload) { p.Total = decimal.NewFromInt(1) },
		"status mismatch": func(p *checkout.OrderPayload) { p.Status = enums.OrderStatusToBeCollected },
		"upi without utr": func(p *checkout.OrderPayload) { p.UTR = nil },
		"zero quantity":   func(p *checkout.OrderPayload) { p.Items[1].Quantity = 0 },
		"no address":      func(p *checkout.OrderPayload) { p.Address = types.Address{} },
		"no session":      func(p *checkout.OrderPayload) { p.CartSession = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			payload := validPayload()
			mutate(&payload)

			result, err := f.svc.Submit(context.Background(), payload)
			require.NoError(t, err)
			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Message)
			assert.Nil(t, result.Order)

			var count int64
			require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
			assert.Zero(t, count)
		})
	}
}

func TestSubmitExhaustedCouponRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	limit := 1
	_, err := f.coupons.Create(ctx, &models.Coupon{Code: "ONCE", DiscountType: enums.DiscountTypeFixed, DiscountValue: decimal.NewFromInt(20), Active: true, UsageLimit: &limit, UsedCount: 1})
	require.NoError(t, err)

	payload := validPayload()
	code := "ONCE"
	payload.CouponCode = &code
	payload.CouponDiscount = decimal.NewFromInt(20)
	payload.Total = decimal.NewFromInt(1418)

	result, err := f.svc.Submit(ctx, payload)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, msgCouponUnavailable, result.Message)

	var orders, lines int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, f.conn.Model(&models.OrderLineItem{}).Count(&lines).Error)
	assert.Zero(t, orders)
	assert.Zero(t, lines)
}

func TestSubmitRetriesOrderNumberCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	numbers := []string{"ORD-DUP", "ORD-DUP", "ORD-NEXT"}
	f.svc.number = func(time.Time) string {
		next := numbers[0]
		numbers = numbers[1:]
		return next
	}

	first, err := f.svc.Submit(ctx, validPayload())
	require.NoError(t, err)
	require.True(t, first.Success)
	assert.Equal(t, "ORD-DUP", first.Order.OrderID)

	second, err := f.svc.Submit(ctx, validPayload())
	require.NoError(t, err)
	require.True(t, second.Success)
	assert.Equal(t, "ORD-NEXT", second.Order.OrderID)
}

func TestSubmitStorageFailureIsAnError(t *testing.T) {
	conn := setupOrdersTestDB(t)
	redeemer, err := promocodes.NewService(promocodes.NewRepository(conn), nil)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), failingTx{}, redeemer, nil)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), validPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestGetOrderScopedToCartSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.Submit(ctx, validPayload())
	require.NoError(t, err)
	require.True(t, result.Success)

	_, err = f.svc.GetOrder(ctx, "someone-else", result.Order.OrderID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.GetOrder(ctx, "session-1", "ORD-MISSING")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	order, err := f.svc.GetOrder(ctx, "session-1", strings.ToLower(result.Order.OrderID))
	require.NoError(t, err)
	assert.Equal(t, result.Order.OrderID, order.OrderNumber)
}

type failingTx struct{}

func (failingTx) WithTx(context.Context, func(tx *gorm.DB) error) error {
	return errors.New("disk full")
}
