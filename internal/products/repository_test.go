package product

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/merchshop/storefront-backend/pkg/db/models"
)

func setupProductsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  category TEXT NOT NULL DEFAULT '',
  price TEXT NOT NULL,
  mrp TEXT,
  stock INTEGER NOT NULL DEFAULT 0,
  images TEXT NOT NULL DEFAULT '{}',
  colors TEXT NOT NULL DEFAULT '{}',
  sizes TEXT NOT NULL DEFAULT '{}',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(products).Error)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedProduct(t *testing.T, repo *Repository, name, category string, active bool) *models.Product {
	t.Helper()
	mrp := decimal.NewFromInt(999)
	product, err := repo.CreateProduct(context.Background(), &models.Product{
		Name:     name,
		Category: category,
		Price:    decimal.RequireFromString("699.00"),
		MRP:      &mrp,
		Stock:    12,
		Images:   pq.StringArray{"https://cdn.example.com/" + strings.ToLower(name) + ".png"},
		Colors:   pq.StringArray{"Black", "White"},
		Sizes:    pq.StringArray{"S", "M", "L"},
		IsActive: active,
	})
	require.NoError(t, err)
	return product
}

func TestRepositoryFindByID(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	created := seedProduct(t, repo, "Tour Tee", "apparel", true)
	require.NotEqual(t, uuid.Nil, created.ID)

	found, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tour Tee", found.Name)
	assert.True(t, found.Price.Equal(decimal.NewFromInt(699)))
	require.NotNil(t, found.MRP)
	assert.True(t, found.MRP.Equal(decimal.NewFromInt(999)))
	assert.Equal(t, []string{"S", "M", "L"}, []string(found.Sizes))
	assert.Equal(t, []string{"Black", "White"}, []string(found.Colors))

	_, err = repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListActive(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	seedProduct(t, repo, "Tour Tee", "apparel", true)
	seedProduct(t, repo, "Hoodie", "Apparel", true)
	seedProduct(t, repo, "Sticker Pack", "accessories", true)
	seedProduct(t, repo, "Retired Cap", "apparel", false)

	all, err := repo.ListActive(context.Background(), ListFilters{}, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Hoodie", all[0].Name)

	apparel, err := repo.ListActive(context.Background(), ListFilters{Category: "APPAREL"}, nil)
	require.NoError(t, err)
	assert.Len(t, apparel, 2)

	search, err := repo.ListActive(context.Background(), ListFilters{Query: "stick"}, nil)
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, "Sticker Pack", search[0].Name)

	buffered, err := repo.ListActive(context.Background(), ListFilters{Limit: 1}, nil)
	require.NoError(t, err)
	assert.Len(t, buffered, 2)
}

func TestServiceListProductsPages(t *testing.T) {
	db := setupProductsTestDB(t)
	repo := NewRepository(db)
	for _, name := range []string{"Badge", "Cap", "Hoodie", "Mug", "Tote"} {
		seedProduct(t, repo, name, "merch", true)
	}
	svc, err := NewService(repo)
	require.NoError(t, err)

	var names []string
	cursor := ""
	for page := 0; page < 5; page++ {
		result, err := svc.ListProducts(context.Background(), ListFilters{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, p := range result.Products {
			names = append(names, p.Name)
		}
		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}
	assert.Equal(t, []string{"Badge", "Cap", "Hoodie", "Mug", "Tote"}, names)
}
