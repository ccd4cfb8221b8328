package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog listing. Price is the selling price; MRP is the printed list price.
type Product struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name      string           `gorm:"column:name;not null"`
	Category  string           `gorm:"column:category;not null;default:''"`
	Price     decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	MRP       *decimal.Decimal `gorm:"column:mrp;type:numeric(12,2)"`
	Stock     int              `gorm:"column:stock;not null;default:0"`
	Images    pq.StringArray   `gorm:"column:images;type:text[];not null;default:'{}'"`
	Colors    pq.StringArray   `gorm:"column:colors;type:text[];not null;default:'{}'"`
	Sizes     pq.StringArray   `gorm:"column:sizes;type:text[];not null;default:'{}'"`
	IsActive  bool             `gorm:"column:is_active;not null"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
