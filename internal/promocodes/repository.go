package promocodes

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/merchshop/storefront-backend/pkg/db/models"
)

// ErrNotRedeemable is returned when a coupon cannot take another redemption.
var ErrNotRedeemable = errors.New("coupon is not redeemable")

// Repository persists promo codes.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByCode looks the coupon up case-insensitively.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).
		Where("UPPER(code) = ?", normalizeCode(code)).
		First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// Create inserts a coupon, storing its code upper case.
func (r *Repository) Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	coupon.Code = normalizeCode(coupon.Code)
	if err := r.db.WithContext(ctx).Create(coupon).Error; err != nil {
		return nil, err
	}
	return coupon, nil
}

// IncrementUsage bumps used_count while the usage limit still allows it.
func (r *Repository) IncrementUsage(ctx context.Context, code string, now time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("UPPER(code) = ? AND active = ?", normalizeCode(code), true).
		Where("usage_limit IS NULL OR used_count < usage_limit").
		Updates(map[string]any{
			"used_count": gorm.Expr("used_count + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotRedeemable
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
