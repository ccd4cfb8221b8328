package cart

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/merchshop/storefront-backend/pkg/errors"
)

// NoSize is stored as the size of items whose product has no size options.
const NoSize = "no-size"

// Product is the catalog snapshot embedded in a cart line.
type Product struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Category string           `json:"category,omitempty"`
	Price    decimal.Decimal  `json:"price"`
	MRP      *decimal.Decimal `json:"mrp,omitempty"`
	Stock    int              `json:"stock"`
	Images   []string         `json:"images,omitempty"`
	Colors   []string         `json:"colors,omitempty"`
	Sizes    []string         `json:"sizes,omitempty"`
}

// OriginalPrice is the MRP when known and above zero, otherwise the selling price.
func (p Product) OriginalPrice() decimal.Decimal {
	if p.MRP != nil && p.MRP.IsPositive() {
		return *p.MRP
	}
	return p.Price
}

// Image returns the first product image, if any.
func (p Product) Image() *string {
	for _, img := range p.Images {
		if img = strings.TrimSpace(img); img != "" {
			return &img
		}
	}
	return nil
}

func (p Product) validate() error {
	var problems []string
	if strings.TrimSpace(p.ID) == "" {
		problems = append(problems, "product id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "product name is required")
	}
	if !p.Price.IsPositive() {
		problems = append(problems, "product price must be positive")
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid product reference").WithDetails(problems)
	}
	return nil
}

// resolveVariant checks size and color against the product options and returns
// the canonical values stored on the line.
func (p Product) resolveVariant(size, color string) (string, string, error) {
	size = strings.TrimSpace(size)
	color = strings.TrimSpace(color)

	if len(p.Sizes) == 0 {
		if size != "" && size != NoSize {
			return "", "", pkgerrors.New(pkgerrors.CodeValidation, "product has no size options")
		}
		size = NoSize
	} else {
		if size == "" || size == NoSize {
			return "", "", pkgerrors.New(pkgerrors.CodeValidation, "size is required for this product")
		}
		canonical, ok := matchOption(p.Sizes, size)
		if !ok {
			return "", "", pkgerrors.New(pkgerrors.CodeValidation, "size is not available").WithDetails(map[string]any{"size": size, "available": p.Sizes})
		}
		size = canonical
	}

	if color != "" && len(p.Colors) > 0 {
		canonical, ok := matchOption(p.Colors, color)
		if !ok {
			return "", "", pkgerrors.New(pkgerrors.CodeValidation, "color is not available").WithDetails(map[string]any{"color": color, "available": p.Colors})
		}
		color = canonical
	}
	return size, color, nil
}

func matchOption(options []string, value string) (string, bool) {
	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), value) {
			return strings.TrimSpace(opt), true
		}
	}
	return "", false
}

// Item is one cart line. Color is empty when the shopper did not pick one.
type Item struct {
	Product  Product   `json:"product"`
	Size     string    `json:"size"`
	Color    string    `json:"color,omitempty"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"added_at"`
}

// Key identifies a cart line.
type Key struct {
	ProductID string
	Size      string
	Color     string
}

// Key returns the identity triple of the line.
func (i Item) Key() Key {
	return Key{ProductID: i.Product.ID, Size: i.Size, Color: i.Color}
}

// LineTotal is unit price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// LineSavings is the MRP discount across the line's quantity.
func (i Item) LineSavings() decimal.Decimal {
	return i.Product.OriginalPrice().Sub(i.Product.Price).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// State is the persisted shape of a cart.
type State struct {
	Items        []Item
	BuyNowActive bool
}

func (s State) clone() State {
	items := make([]Item, len(s.Items))
	copy(items, s.Items)
	return State{Items: items, BuyNowActive: s.BuyNowActive}
}

type NoticeKind string

const (
	NoticeAdded    NoticeKind = "added"
	NoticeCapacity NoticeKind = "capacity"
)

// Notice is the transient confirmation produced by AddItem. Callers stop
// showing it once ExpiresAt has passed.
type Notice struct {
	Kind      NoticeKind `json:"kind"`
	Message   string     `json:"message"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Expired reports whether the notice should no longer be shown at now.
func (n Notice) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

func normalizeKey(productID, size, color string) Key {
	size = strings.TrimSpace(size)
	if size == "" {
		size = NoSize
	}
	return Key{
		ProductID: strings.TrimSpace(productID),
		Size:      size,
		Color:     strings.TrimSpace(color),
	}
}
