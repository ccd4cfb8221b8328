package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/merchshop/storefront-backend/internal/cart"
	"github.com/merchshop/storefront-backend/internal/pricing"
	"github.com/merchshop/storefront-backend/pkg/breaker"
	pkgcheckout "github.com/merchshop/storefront-backend/pkg/checkout"
	"github.com/merchshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/merchshop/storefront-backend/pkg/errors"
	"github.com/merchshop/storefront-backend/pkg/logger"
	"github.com/merchshop/storefront-backend/pkg/metrics"
	pkgredis "github.com/merchshop/storefront-backend/pkg/redis"
	"github.com/merchshop/storefront-backend/pkg/types"
)

const (
	lockScope = "checkout"

	msgSubmitRetry       = "Could not place the order right now, please try again"
	msgSubmitRejectedFbk = "The order could not be placed"
)

// Summary is the checkout view of a cart session.
type Summary struct {
	pricing.Summary
	Coupon         *types.Coupon `json:"coupon,omitempty"`
	CouponEligible bool          `json:"coupon_eligible"`
	BuyNow         bool          `json:"buy_now"`
}

// SubmitInput is what the shopper supplies when placing an order.
type SubmitInput struct {
	Address       *types.Address
	PaymentMethod string
	UTR           string
}

// Config tunes the orchestrator.
type Config struct {
	LockTTL       time.Duration
	SubmitTimeout time.Duration
}

// Service computes checkout summaries and places orders.
type Service struct {
	carts     cartManager
	coupons   couponSession
	calc      *pricing.Calculator
	submitter Submitter
	breaker   *breaker.Breaker[SubmitResult]
	locker    pkgredis.Locker
	cfg       Config
	logg      *logger.Logger
	metrics   submissionRecorder
	now       func() time.Time
}

// NewService wires the orchestrator. The breaker and metrics may be nil.
func NewService(carts cartManager, coupons couponSession, calc *pricing.Calculator, submitter Submitter, locker pkgredis.Locker, cfg Config, cb *breaker.Breaker[SubmitResult], rec submissionRecorder, logg *logger.Logger) (*Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart manager required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon session required")
	}
	if calc == nil {
		return nil, fmt.Errorf("pricing calculator required")
	}
	if submitter == nil {
		return nil, fmt.Errorf("order submitter required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		carts:     carts,
		coupons:   coupons,
		calc:      calc,
		submitter: submitter,
		breaker:   cb,
		locker:    locker,
		cfg:       cfg,
		logg:      logg,
		metrics:   rec,
		now:       time.Now,
	}, nil
}

// Summary prices the session's cart for paymentMethod, which may be empty
// when the shopper has not picked one yet.
func (s *Service) Summary(ctx context.Context, sessionID, paymentMethod string) (Summary, error) {
	var method enums.PaymentMethod
	if strings.TrimSpace(paymentMethod) != "" {
		parsed, err := enums.ParsePaymentMethod(paymentMethod)
		if err != nil {
			return Summary{}, pkgerrors.New(pkgerrors.CodeValidation, "payment method must be upi or cod")
		}
		method = parsed
	}

	state, err := s.carts.Snapshot(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	coupon, err := s.coupons.Applied(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}

	summary := s.calc.ComputeSummary(state.Items, method, coupon)
	return Summary{
		Summary:        summary,
		Coupon:         coupon,
		CouponEligible: coupon == nil || coupon.EligibleFor(summary.Subtotal),
		BuyNow:         state.BuyNowActive,
	}, nil
}

// ClearCart empties the cart and drops any applied coupon.
func (s *Service) ClearCart(ctx context.Context, sessionID string) error {
	if err := s.carts.Clear(ctx, sessionID); err != nil {
		return err
	}
	return s.coupons.Remove(ctx, sessionID)
}

// SubmitOrder validates the checkout, hands the order to the submitter once,
// and on success clears the cart and coupon. Any failure leaves cart and
// coupon untouched. Only one submission per session may be in flight.
func (s *Service) SubmitOrder(ctx context.Context, sessionID string, in SubmitInput) (*OrderConfirmation, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart session is required")
	}

	lockKey := s.locker.LockKey(lockScope, sessionID)
	token := uuid.NewString()
	acquired, err := s.locker.AcquireLock(ctx, lockKey, token, s.cfg.LockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to start order submission")
	}
	if !acquired {
		s.record(metrics.OutcomeBusy, in.PaymentMethod, 0)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an order submission is already in progress")
	}

	// Once started, a submission runs to completion even if the caller goes away.
	callCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := s.locker.ReleaseLock(callCtx, lockKey, token); err != nil {
			s.logg.Warn(s.logg.WithField(callCtx, "error", err.Error()), "failed to release checkout lock")
		}
	}()

	state, err := s.carts.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	coupon, err := s.coupons.Applied(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var address types.Address
	if in.Address != nil {
		address = in.Address.Normalized()
	}
	method, _ := enums.ParsePaymentMethod(in.PaymentMethod)
	summary := s.calc.ComputeSummary(state.Items, method, coupon)

	method, err = pkgcheckout.ValidateSubmission(pkgcheckout.SubmissionInput{
		ItemCount:     len(state.Items),
		Address:       addressOrNil(in.Address, address),
		PaymentMethod: in.PaymentMethod,
		UTR:           in.UTR,
		Coupon:        coupon,
		Subtotal:      summary.Subtotal,
		Total:         summary.Total,
		Now:           s.now(),
	})
	if err != nil {
		s.record(metrics.OutcomeInvalid, in.PaymentMethod, 0)
		return nil, err
	}

	payload := buildPayload(sessionID, state.Items, address, summary, coupon, method, in.UTR)
	ctx = s.logg.WithFields(callCtx, map[string]any{
		"payment_method": method.String(),
		"total":          summary.Total.String(),
		"items":          len(payload.Items),
	})

	submitCtx := callCtx
	if s.cfg.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(callCtx, s.cfg.SubmitTimeout)
		defer cancel()
	}

	started := s.now()
	result, err := s.breaker.Execute(func() (SubmitResult, error) {
		return s.submitter.Submit(submitCtx, payload)
	})
	elapsed := s.now().Sub(started)
	if err != nil {
		s.record(metrics.OutcomeFailed, method.String(), elapsed)
		s.logg.Error(ctx, "order submission failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgSubmitRetry)
	}
	if !result.Success {
		message := strings.TrimSpace(result.Message)
		if message == "" {
			message = msgSubmitRejectedFbk
		}
		s.record(metrics.OutcomeRejected, method.String(), elapsed)
		s.logg.Warn(s.logg.WithField(ctx, "reason", message), "order rejected")
		return nil, pkgerrors.New(pkgerrors.CodeRemoteRejected, message)
	}
	if result.Order == nil {
		s.record(metrics.OutcomeFailed, method.String(), elapsed)
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service accepted the order without returning it")
	}

	s.record(metrics.OutcomeSuccess, method.String(), elapsed)
	ctx = s.logg.WithField(ctx, "order_id", result.Order.OrderID)
	s.logg.Info(ctx, "order placed")

	if err := s.carts.Clear(callCtx, sessionID); err != nil {
		s.logg.Error(ctx, "failed to clear cart after order", err)
	}
	if err := s.coupons.Remove(callCtx, sessionID); err != nil {
		s.logg.Error(ctx, "failed to reset coupon after order", err)
	}

	confirmation := *result.Order
	return &confirmation, nil
}

func (s *Service) record(outcome, method string, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveSubmission(outcome, strings.ToLower(strings.TrimSpace(method)), elapsed)
	}
}

func addressOrNil(raw *types.Address, normalized types.Address) *types.Address {
	if raw == nil {
		return nil
	}
	return &normalized
}

func buildPayload(sessionID string, items []cart.Item, address types.Address, summary pricing.Summary, coupon *types.Coupon, method enums.PaymentMethod, utr string) OrderPayload {
	lines := make([]OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, OrderLine{
			ProductID: item.Product.ID,
			Name:      item.Product.Name,
			Size:      item.Size,
			Color:     item.Color,
			Price:     item.Product.Price,
			Quantity:  item.Quantity,
			Image:     item.Product.Image(),
		})
	}

	payload := OrderPayload{
		CartSession:     sessionID,
		Items:           lines,
		Address:         address,
		Subtotal:        summary.Subtotal,
		DeliveryCharge:  summary.DeliveryCharge,
		PaymentDiscount: summary.PaymentDiscount,
		HandlingCharge:  summary.HandlingCharge,
		CouponDiscount:  summary.CouponDiscount,
		Total:           summary.Total,
		PaymentMethod:   method,
		Status:          method.InitialOrderStatus(),
	}
	if coupon != nil {
		code := coupon.Code
		payload.CouponCode = &code
	}
	if method == enums.PaymentMethodUPI {
		trimmed := strings.TrimSpace(utr)
		payload.UTR = &trimmed
	}
	return payload
}
