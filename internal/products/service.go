package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/merchshop/storefront-backend/internal/cart"
	"github.com/merchshop/storefront-backend/pkg/db/models"
	pkgerrors "github.com/merchshop/storefront-backend/pkg/errors"
	"github.com/merchshop/storefront-backend/pkg/pagination"
)

// Service exposes catalog reads in the shape the cart stores.
type Service interface {
	GetProduct(ctx context.Context, id string) (*cart.Product, error)
	ListProducts(ctx context.Context, filters ListFilters) (*ListResult, error)
}

type productReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListActive(ctx context.Context, filters ListFilters, after *pagination.Cursor) ([]models.Product, error)
}

type service struct {
	repo productReader
}

// NewService constructs a product service instance.
func NewService(repo productReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

// GetProduct returns the active product as a cart snapshot. Unknown, malformed
// and inactive ids are all reported as not found.
func (s *service) GetProduct(ctx context.Context, id string) (*cart.Product, error) {
	productID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	record, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load product")
	}
	if !record.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	product := toCartProduct(*record)
	return &product, nil
}

// ListProducts returns one page of active products. A malformed cursor is a
// validation error.
func (s *service) ListProducts(ctx context.Context, filters ListFilters) (*ListResult, error) {
	after, err := pagination.ParseCursor(filters.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	records, err := s.repo.ListActive(ctx, filters, after)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to list products")
	}

	result := &ListResult{Products: make([]cart.Product, 0, len(records))}
	limit := pagination.NormalizeLimit(filters.Limit)
	if len(records) > limit {
		records = records[:limit]
		last := records[len(records)-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{SortKey: last.Name, ID: last.ID})
	}
	for _, record := range records {
		result.Products = append(result.Products, toCartProduct(record))
	}
	return result, nil
}

func toCartProduct(record models.Product) cart.Product {
	product := cart.Product{
		ID:       record.ID.String(),
		Name:     record.Name,
		Category: record.Category,
		Price:    record.Price,
		Stock:    record.Stock,
		Images:   nonBlank(record.Images),
		Colors:   nonBlank(record.Colors),
		Sizes:    nonBlank(record.Sizes),
	}
	if record.MRP != nil {
		mrp := *record.MRP
		product.MRP = &mrp
	}
	return product
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
