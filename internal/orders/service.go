package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/merchshop/storefront-backend/internal/checkout"
	"github.com/merchshop/storefront-backend/internal/promocodes"
	"github.com/merchshop/storefront-backend/pkg/db"
	"github.com/merchshop/storefront-backend/pkg/db/models"
	"github.com/merchshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/merchshop/storefront-backend/pkg/errors"
	"github.com/merchshop/storefront-backend/pkg/logger"
)

const (
	orderNumberConstraint = "orders_order_number_key"
	orderNumberAttempts   = 3

	msgCouponUnavailable = "The applied coupon can no longer be used"
)

// Service places orders handed over by checkout and reads them back.
type Service struct {
	repo     Repository
	tx       txRunner
	redeemer CouponRedeemer
	logg     *logger.Logger
	now      func() time.Time
	number   func(time.Time) string
}

// NewService constructs the order service.
func NewService(repo Repository, tx txRunner, redeemer CouponRedeemer, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if redeemer == nil {
		return nil, fmt.Errorf("coupon redeemer required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		repo:     repo,
		tx:       tx,
		redeemer: redeemer,
		logg:     logg,
		now:      time.Now,
		number:   newOrderNumber,
	}, nil
}

// rejection is a business refusal raised inside the order transaction.
type rejection struct {
	message string
}

func (r rejection) Error() string { return r.message }

// Submit persists the order and redeems its coupon in one transaction.
// Payload problems and exhausted coupons come back as an unsuccessful result;
// storage failures are returned as errors.
func (s *Service) Submit(ctx context.Context, payload checkout.OrderPayload) (checkout.SubmitResult, error) {
	if message := checkPayload(payload); message != "" {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"cart_session": payload.CartSession, "reason": message}), "order payload refused")
		return checkout.SubmitResult{Success: false, Message: message}, nil
	}

	var (
		order *models.Order
		err   error
	)
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		order, err = s.place(ctx, payload)
		if err == nil || !isOrderNumberCollision(err) {
			break
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "order number collision, retrying")
	}

	var refused rejection
	if errors.As(err, &refused) {
		return checkout.SubmitResult{Success: false, Message: refused.message}, nil
	}
	if err != nil {
		return checkout.SubmitResult{}, fmt.Errorf("persist order: %w", err)
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_number":   order.OrderNumber,
		"cart_session":   order.CartSession,
		"payment_method": order.PaymentMethod.String(),
	}), "order persisted")

	return checkout.SubmitResult{
		Success: true,
		Order: &checkout.OrderConfirmation{
			OrderID:       order.OrderNumber,
			TotalAmount:   order.Total,
			Status:        order.Status,
			PaymentMethod: order.PaymentMethod,
			CouponCode:    order.CouponCode,
		},
	}, nil
}

// GetOrder returns an order placed from the given cart session.
func (s *Service) GetOrder(ctx context.Context, cartSession, orderNumber string) (*models.Order, error) {
	order, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load order")
	}
	if order.CartSession != cartSession {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *Service) place(ctx context.Context, payload checkout.OrderPayload) (*models.Order, error) {
	now := s.now()
	order := buildOrder(payload, s.number(now))

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return err
		}
		if payload.CouponCode == nil {
			return nil
		}
		if err := s.redeemer.Redeem(ctx, tx, *payload.CouponCode); err != nil {
			if errors.Is(err, promocodes.ErrNotRedeemable) {
				return rejection{message: msgCouponUnavailable}
			}
			return fmt.Errorf("redeem coupon: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func buildOrder(payload checkout.OrderPayload, orderNumber string) *models.Order {
	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     orderNumber,
		CartSession:     payload.CartSession,
		Status:          payload.Status,
		PaymentMethod:   payload.PaymentMethod,
		UTR:             payload.UTR,
		Subtotal:        payload.Subtotal,
		DeliveryCharge:  payload.DeliveryCharge,
		PaymentDiscount: payload.PaymentDiscount,
		HandlingCharge:  payload.HandlingCharge,
		CouponDiscount:  payload.CouponDiscount,
		Total:           payload.Total,
		CouponCode:      payload.CouponCode,
		ShippingAddress: payload.Address,
	}
	order.LineItems = make([]models.OrderLineItem, 0, len(payload.Items))
	for i, line := range payload.Items {
		order.LineItems = append(order.LineItems, models.OrderLineItem{
			OrderID:   order.ID,
			Position:  i,
			ProductID: line.ProductID,
			Name:      line.Name,
			Size:      line.Size,
			Color:     line.Color,
			UnitPrice: line.Price,
			Quantity:  line.Quantity,
			LineTotal: line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
			Image:     line.Image,
		})
	}
	return order
}

// checkPayload returns a shopper-facing reason when the payload cannot be
// accepted, or "" when it is consistent.
func checkPayload(payload checkout.OrderPayload) string {
	if strings.TrimSpace(payload.CartSession) == "" {
		return "Order is missing its cart session"
	}
	if len(payload.Items) == 0 {
		return "Order has no items"
	}
	if !payload.PaymentMethod.IsValid() || payload.Status != payload.PaymentMethod.InitialOrderStatus() {
		return "Order has an invalid payment method"
	}
	if payload.PaymentMethod == enums.PaymentMethodUPI && (payload.UTR == nil || strings.TrimSpace(*payload.UTR) == "") {
		return "UPI orders need a UTR"
	}

	subtotal := decimal.Zero
	for _, line := range payload.Items {
		if line.Quantity < 1 || !line.Price.IsPositive() || strings.TrimSpace(line.ProductID) == "" {
			return "Order has an invalid item"
		}
		subtotal = subtotal.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	if !subtotal.Equal(payload.Subtotal) {
		return "Order subtotal does not match its items"
	}

	total := payload.Subtotal.
		Add(payload.DeliveryCharge).
		Add(payload.HandlingCharge).
		Sub(payload.PaymentDiscount).
		Sub(payload.CouponDiscount)
	if !total.Equal(payload.Total) {
		return "Order total does not match its charges"
	}
	if payload.Total.IsNegative() {
		return "Order total cannot be negative"
	}
	if len(payload.Address.Missing()) > 0 {
		return "Order is missing a shipping address"
	}
	return ""
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}

func isOrderNumberCollision(err error) bool {
	return db.IsUniqueViolation(err, orderNumberConstraint) || db.IsUniqueViolation(err, "orders.order_number")
}
