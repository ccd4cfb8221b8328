package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/merchshop/storefront-backend/pkg/errors"
	"github.com/merchshop/storefront-backend/pkg/logger"
)

type mutationRecorder interface {
	IncCartMutation(op string)
}

// Manager hands out the Store of a cart session. Calls for the same session
// are serialized, so mutations apply in the order they were invoked and each
// one observes the previous one's persisted result.
type Manager struct {
	persist   Persistence
	logg      *logger.Logger
	metrics   mutationRecorder
	noticeTTL time.Duration
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source used for AddedAt and notice expiry.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMetrics records every applied mutation.
func WithMetrics(rec mutationRecorder) ManagerOption {
	return func(m *Manager) {
		m.metrics = rec
	}
}

// NewManager builds a Manager over the provided persistence.
func NewManager(persist Persistence, logg *logger.Logger, noticeTTL time.Duration, opts ...ManagerOption) (*Manager, error) {
	if persist == nil {
		return nil, fmt.Errorf("cart persistence required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	m := &Manager{
		persist:   persist,
		logg:      logg,
		noticeTTL: noticeTTL,
		now:       time.Now,
		locks:     map[string]*sessionLock{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Do loads the session's store and runs fn with exclusive access to it.
func (m *Manager) Do(ctx context.Context, sessionID string, fn func(*Store) error) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart session is required")
	}

	release := m.acquire(sessionID)
	defer release()

	state, err := m.persist.Load(ctx, sessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load cart")
	}
	return fn(newStore(sessionID, state, m.persist, m.now, m.noticeTTL))
}

// Snapshot returns a detached copy of the session's cart state.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) (State, error) {
	var state State
	err := m.Do(ctx, sessionID, func(s *Store) error {
		state = s.State()
		return nil
	})
	return state, err
}

// View is a read-only rendering of a cart with its derived totals.
type View struct {
	Items         []Item          `json:"items"`
	TotalItems    int             `json:"total_items"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	BuyNowActive  bool            `json:"buy_now"`
}

// View returns the session's cart together with its totals.
func (m *Manager) View(ctx context.Context, sessionID string) (View, error) {
	var view View
	err := m.Do(ctx, sessionID, func(s *Store) error {
		view = View{
			Items:         s.Items(),
			TotalItems:    s.TotalItems(),
			TotalPrice:    s.TotalPrice(),
			TotalDiscount: s.TotalDiscount(),
			BuyNowActive:  s.IsBuyNowActive(),
		}
		return nil
	})
	return view, err
}

// AddItem runs Store.AddItem for the session.
func (m *Manager) AddItem(ctx context.Context, sessionID string, product Product, size string, quantity int, color string) (Notice, error) {
	var notice Notice
	err := m.mutate(ctx, sessionID, "add", func(s *Store) error {
		var err error
		notice, err = s.AddItem(ctx, product, size, quantity, color)
		return err
	})
	return notice, err
}

// BuyNow runs Store.BuyNow for the session.
func (m *Manager) BuyNow(ctx context.Context, sessionID string, product Product, size string, quantity int, color string) error {
	return m.mutate(ctx, sessionID, "buy_now", func(s *Store) error {
		return s.BuyNow(ctx, product, size, quantity, color)
	})
}

// RemoveItem runs Store.RemoveItem for the session.
func (m *Manager) RemoveItem(ctx context.Context, sessionID, productID, size, color string) error {
	return m.mutate(ctx, sessionID, "remove", func(s *Store) error {
		return s.RemoveItem(ctx, productID, size, color)
	})
}

// UpdateQuantity runs Store.UpdateQuantity for the session.
func (m *Manager) UpdateQuantity(ctx context.Context, sessionID, productID, size string, quantity int, color string) error {
	return m.mutate(ctx, sessionID, "update", func(s *Store) error {
		return s.UpdateQuantity(ctx, productID, size, quantity, color)
	})
}

// Clear runs Store.Clear for the session.
func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	return m.mutate(ctx, sessionID, "clear", func(s *Store) error {
		return s.Clear(ctx)
	})
}

func (m *Manager) mutate(ctx context.Context, sessionID, op string, fn func(*Store) error) error {
	err := m.Do(ctx, sessionID, fn)
	if err != nil {
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			m.logg.Error(m.logg.WithFields(ctx, map[string]any{"op": op, "cart_session": sessionID}), "cart mutation failed", err)
		}
		return err
	}
	if m.metrics != nil {
		m.metrics.IncCartMutation(op)
	}
	return nil
}

func (m *Manager) acquire(sessionID string) func() {
	m.mu.Lock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		m.locks[sessionID] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		m.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(m.locks, sessionID)
		}
		m.mu.Unlock()
	}
}
