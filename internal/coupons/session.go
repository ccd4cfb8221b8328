package coupons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/merchshop/storefront-backend/pkg/breaker"
	"github.com/merchshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/merchshop/storefront-backend/pkg/errors"
	"github.com/merchshop/storefront-backend/pkg/logger"
	"github.com/merchshop/storefront-backend/pkg/metrics"
	pkgredis "github.com/merchshop/storefront-backend/pkg/redis"
	"github.com/merchshop/storefront-backend/pkg/types"
)

const (
	lockScope = "coupon"

	msgInvalidFallback = "This coupon code is not valid"
	msgRetry           = "Could not validate the coupon right now, please try again"
)

// Snapshot is the coupon workflow position of a cart session.
type Snapshot struct {
	State   enums.CouponState `json:"state"`
	Coupon  *types.Coupon     `json:"coupon,omitempty"`
	Message string            `json:"message,omitempty"`
}

// Config tunes the session store.
type Config struct {
	// LockTTL bounds how long a validation may hold the session busy.
	LockTTL time.Duration
	// StateTTL expires stored coupon state; zero keeps it.
	StateTTL time.Duration
}

// Session owns the single applied coupon of each cart session.
type Session struct {
	kv        pkgredis.KV
	locker    pkgredis.Locker
	validator Validator
	breaker   *breaker.Breaker[ValidationResult]
	ceiling   ceilingPolicy
	cfg       Config
	logg      *logger.Logger
	metrics   validationRecorder
}

// NewSession wires the coupon session. The breaker and metrics may be nil.
func NewSession(kv pkgredis.KV, locker pkgredis.Locker, validator Validator, ceiling ceilingPolicy, cfg Config, cb *breaker.Breaker[ValidationResult], rec validationRecorder, logg *logger.Logger) (*Session, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis kv required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	if validator == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if ceiling == nil {
		return nil, fmt.Errorf("coupon ceiling policy required")
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Session{
		kv:        kv,
		locker:    locker,
		validator: validator,
		breaker:   cb,
		ceiling:   ceiling,
		cfg:       cfg,
		logg:      logg,
		metrics:   rec,
	}, nil
}

// Get returns the session's coupon state, reporting validating while a
// validation call is outstanding.
func (s *Session) Get(ctx context.Context, sessionID string) (Snapshot, error) {
	snap, err := s.load(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	if snap.State == enums.CouponStateApplied {
		return snap, nil
	}
	_, err = s.kv.Get(ctx, s.locker.LockKey(lockScope, sessionID))
	switch {
	case err == nil:
		return Snapshot{State: enums.CouponStateValidating}, nil
	case errors.Is(err, pkgredis.ErrNil):
		return snap, nil
	default:
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to read coupon state")
	}
}

// Applied returns the applied coupon, or nil.
func (s *Session) Applied(ctx context.Context, sessionID string) (*types.Coupon, error) {
	snap, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if snap.State != enums.CouponStateApplied {
		return nil, nil
	}
	return snap.Coupon, nil
}

// Apply validates code against subtotal and, when the service accepts it,
// stores the coupon with its discount bounded by the pricing ceiling. Only one
// validation per session may be in flight.
func (s *Session) Apply(ctx context.Context, sessionID, code string, subtotal decimal.Decimal) (Snapshot, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	if strings.TrimSpace(sessionID) == "" {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "cart session is required")
	}

	lockKey := s.locker.LockKey(lockScope, sessionID)
	token := uuid.NewString()
	acquired, err := s.locker.AcquireLock(ctx, lockKey, token, s.cfg.LockTTL)
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to start coupon validation")
	}
	if !acquired {
		s.record(metrics.OutcomeBusy)
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeConflict, "coupon validation already in progress")
	}

	// The call is not cancelled by the caller going away; its outcome is still recorded.
	callCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := s.locker.ReleaseLock(callCtx, lockKey, token); err != nil {
			s.logg.Warn(s.logg.WithField(callCtx, "error", err.Error()), "failed to release coupon lock")
		}
	}()

	// Read under the lock.
	current, err := s.load(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	if !current.State.AcceptsCode() {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "a coupon is already applied, remove it first")
	}

	ctx = s.logg.WithFields(callCtx, map[string]any{"coupon_code": code, "order_amount": subtotal.String()})
	result, err := s.breaker.Execute(func() (ValidationResult, error) {
		return s.validator.Validate(callCtx, ValidationRequest{Code: code, OrderAmount: subtotal})
	})
	if err != nil {
		s.record(metrics.OutcomeFailed)
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "coupon validation failed")
		s.storeQuietly(ctx, sessionID, Snapshot{State: enums.CouponStateRejected, Message: msgRetry})
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, msgRetry)
	}

	if !result.Valid || result.Coupon == nil {
		message := strings.TrimSpace(result.Message)
		if message == "" {
			message = msgInvalidFallback
		}
		s.record(metrics.OutcomeRejected)
		s.storeQuietly(ctx, sessionID, Snapshot{State: enums.CouponStateRejected, Message: message})
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeRemoteRejected, message).WithDetails(map[string]any{"code": code})
	}

	coupon := *result.Coupon
	if coupon.Code == "" {
		coupon.Code = code
	}
	if coupon.Discount.IsNegative() {
		coupon.Discount = decimal.Zero
	}
	if ceiling := s.ceiling.CouponCeiling(subtotal); coupon.Discount.GreaterThan(ceiling) {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"discount": coupon.Discount.String(), "ceiling": ceiling.String()}), "coupon discount bounded")
		coupon.Discount = ceiling
	}

	snap := Snapshot{State: enums.CouponStateApplied, Coupon: &coupon}
	if err := s.store(ctx, sessionID, snap); err != nil {
		s.record(metrics.OutcomeFailed)
		return Snapshot{}, err
	}
	s.record(metrics.OutcomeSuccess)
	return snap, nil
}

// Remove returns the session to idle with no coupon.
func (s *Session) Remove(ctx context.Context, sessionID string) error {
	if err := s.kv.Del(ctx, s.kv.CouponKey(sessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to remove coupon")
	}
	return nil
}

func (s *Session) load(ctx context.Context, sessionID string) (Snapshot, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "cart session is required")
	}
	raw, err := s.kv.Get(ctx, s.kv.CouponKey(sessionID))
	if errors.Is(err, pkgredis.ErrNil) {
		return Snapshot{State: enums.CouponStateIdle}, nil
	}
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to read coupon state")
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "discarding unreadable coupon state")
		return Snapshot{State: enums.CouponStateIdle}, nil
	}
	if snap.State == enums.CouponStateApplied && snap.Coupon == nil {
		return Snapshot{State: enums.CouponStateIdle}, nil
	}
	return snap, nil
}

func (s *Session) store(ctx context.Context, sessionID string, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to encode coupon state")
	}
	if err := s.kv.Set(ctx, s.kv.CouponKey(sessionID), string(payload), s.cfg.StateTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to save coupon state")
	}
	return nil
}

func (s *Session) storeQuietly(ctx context.Context, sessionID string, snap Snapshot) {
	if err := s.store(ctx, sessionID, snap); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to record coupon rejection")
	}
}

func (s *Session) record(outcome string) {
	if s.metrics != nil {
		s.metrics.IncCouponValidation(outcome)
	}
}
