package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/merchshop/storefront-backend/pkg/errors"
)

// Store is the cart of one session. Every mutation is computed on a copy,
// persisted, and only then becomes visible, so a failed write leaves the
// store exactly as it was.
type Store struct {
	sessionID string
	state     State
	persist   Persistence
	now       func() time.Time
	noticeTTL time.Duration
}

func newStore(sessionID string, state State, persist Persistence, now func() time.Time, noticeTTL time.Duration) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		sessionID: sessionID,
		state:     state,
		persist:   persist,
		now:       now,
		noticeTTL: noticeTTL,
	}
}

// SessionID returns the cart session the store belongs to.
func (s *Store) SessionID() string {
	return s.sessionID
}

// AddItem merges quantity into the line identified by (product, size, color),
// clamping to stock, or appends a new line. Adding while buy-now is active
// leaves buy-now mode and keeps the buy-now item as a regular line.
func (s *Store) AddItem(ctx context.Context, product Product, size string, quantity int, color string) (Notice, error) {
	if product.Stock < 1 {
		return Notice{}, pkgerrors.New(pkgerrors.CodeValidation, "product is out of stock")
	}
	item, err := s.buildItem(product, size, quantity, color)
	if err != nil {
		return Notice{}, err
	}

	next := s.state.clone()
	next.BuyNowActive = false

	clamped := false
	if idx := indexOf(next.Items, item.Key()); idx >= 0 {
		merged := next.Items[idx]
		merged.Product = item.Product
		merged.Quantity += item.Quantity
		if merged.Quantity > item.Product.Stock {
			merged.Quantity = item.Product.Stock
			clamped = true
		}
		next.Items[idx] = merged
	} else {
		if item.Quantity > item.Product.Stock {
			item.Quantity = item.Product.Stock
			clamped = true
		}
		next.Items = append(next.Items, item)
	}

	if err := s.commit(ctx, next); err != nil {
		return Notice{}, err
	}

	if clamped {
		return s.notice(NoticeCapacity, fmt.Sprintf("Only %d of %s available", item.Product.Stock, item.Product.Name)), nil
	}
	return s.notice(NoticeAdded, fmt.Sprintf("%s added to cart", item.Product.Name)), nil
}

// BuyNow replaces the whole cart with a single line of exactly the requested
// quantity and enters buy-now mode. The write is durable once BuyNow returns nil.
func (s *Store) BuyNow(ctx context.Context, product Product, size string, quantity int, color string) error {
	item, err := s.buildItem(product, size, quantity, color)
	if err != nil {
		return err
	}
	return s.commit(ctx, State{Items: []Item{item}, BuyNowActive: true})
}

// RemoveItem drops every line matching the key. An empty color matches all
// colors of (productID, size). A missing line is a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID, size, color string) error {
	if s.match(productID, size, color) < 0 {
		return nil
	}
	next := s.state.clone()
	kept := next.Items[:0]
	for _, item := range next.Items {
		if !matches(item, normalizeKey(productID, size, color)) {
			kept = append(kept, item)
		}
	}
	next.Items = kept
	if len(next.Items) == 0 {
		next.BuyNowActive = false
	}
	return s.commit(ctx, next)
}

// UpdateQuantity sets the quantity of the matching line as given. Values
// below one remove the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID, size string, quantity int, color string) error {
	if quantity < 1 {
		return s.RemoveItem(ctx, productID, size, color)
	}
	idx := s.match(productID, size, color)
	if idx < 0 {
		return nil
	}
	next := s.state.clone()
	next.Items[idx].Quantity = quantity
	return s.commit(ctx, next)
}

// Clear empties the cart and leaves buy-now mode.
func (s *Store) Clear(ctx context.Context) error {
	return s.commit(ctx, State{})
}

// TotalItems is the sum of quantities.
func (s *Store) TotalItems() int {
	total := 0
	for _, item := range s.state.Items {
		total += item.Quantity
	}
	return total
}

// TotalPrice is the sum of unit price times quantity.
func (s *Store) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.state.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// TotalDiscount is the MRP savings across all lines.
func (s *Store) TotalDiscount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.state.Items {
		total = total.Add(item.LineSavings())
	}
	return total
}

// FindItem returns the line matching the key using the removal matching rule.
func (s *Store) FindItem(productID, size, color string) (Item, bool) {
	idx := s.match(productID, size, color)
	if idx < 0 {
		return Item{}, false
	}
	return s.state.Items[idx], true
}

// Contains reports whether FindItem would find a line.
func (s *Store) Contains(productID, size, color string) bool {
	return s.match(productID, size, color) >= 0
}

// IsBuyNowActive reports the durable buy-now flag.
func (s *Store) IsBuyNowActive() bool {
	return s.state.BuyNowActive
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []Item {
	return s.state.clone().Items
}

// State returns a copy of the full cart state.
func (s *Store) State() State {
	return s.state.clone()
}

func (s *Store) buildItem(product Product, size string, quantity int, color string) (Item, error) {
	if err := product.validate(); err != nil {
		return Item{}, err
	}
	if quantity < 1 {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	resolvedSize, resolvedColor, err := product.resolveVariant(size, color)
	if err != nil {
		return Item{}, err
	}
	product.ID = strings.TrimSpace(product.ID)
	return Item{
		Product:  product,
		Size:     resolvedSize,
		Color:    resolvedColor,
		Quantity: quantity,
		AddedAt:  s.now().UTC(),
	}, nil
}

func (s *Store) match(productID, size, color string) int {
	key := normalizeKey(productID, size, color)
	for i, item := range s.state.Items {
		if matches(item, key) {
			return i
		}
	}
	return -1
}

func matches(item Item, key Key) bool {
	if item.Product.ID != key.ProductID || !strings.EqualFold(item.Size, key.Size) {
		return false
	}
	return key.Color == "" || strings.EqualFold(item.Color, key.Color)
}

func (s *Store) commit(ctx context.Context, next State) error {
	if s.persist != nil {
		if err := s.persist.Save(ctx, s.sessionID, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to save cart")
		}
	}
	s.state = next
	return nil
}

func (s *Store) notice(kind NoticeKind, message string) Notice {
	return Notice{Kind: kind, Message: message, ExpiresAt: s.now().Add(s.noticeTTL)}
}

func indexOf(items []Item, key Key) int {
	for i, item := range items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}
