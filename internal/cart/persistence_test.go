package cart

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/merchshop/storefront-backend/pkg/redis"
)

func setupRedisPersistence(t *testing.T) (*RedisPersistence, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	persist, err := NewRedisPersistence(pkgredis.NewFromRaw(client, "test"), time.Hour, nil)
	require.NoError(t, err)
	return persist, mr
}

func TestRedisPersistence_RoundTrip(t *testing.T) {
	persist, mr := setupRedisPersistence(t)
	ctx := context.Background()

	mrp := decimal.RequireFromString("899.50")
	state := State{Items: []Item{
		{Product: sizedProduct("tee", 5), Size: "M", Color: "Black", Quantity: 2, AddedAt: fixedNow},
		{Product: Product{ID: "mug", Name: "Mug", Price: decimal.RequireFromString("349.99"), MRP: &mrp, Stock: 3}, Size: NoSize, Quantity: 1, AddedAt: fixedNow.Add(time.Minute)},
	}}

	require.NoError(t, persist.Save(ctx, "s1", state))
	assert.True(t, mr.Exists("test:cart:s1:items"))
	assert.False(t, mr.Exists("test:cart:s1:buy_now"))
	assert.Equal(t, time.Hour, mr.TTL("test:cart:s1:items"))

	loaded, err := persist.Load(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, statesEqual(state, loaded), "expected %+v, got %+v", state, loaded)
	assert.Equal(t, "tee", loaded.Items[0].Product.ID)
	assert.Equal(t, "mug", loaded.Items[1].Product.ID)
}

func TestRedisPersistence_BuyNowRoundTrip(t *testing.T) {
	persist, mr := setupRedisPersistence(t)
	ctx := context.Background()

	state := State{Items: []Item{{Product: productX(100, 5), Size: NoSize, Quantity: 1, AddedAt: fixedNow}}, BuyNowActive: true}
	require.NoError(t, persist.Save(ctx, "s1", state))

	flag, err := mr.Get("test:cart:s1:buy_now")
	require.NoError(t, err)
	assert.Equal(t, "1", flag)

	loaded, err := persist.Load(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, loaded.BuyNowActive)

	require.NoError(t, persist.Save(ctx, "s1", State{}))
	assert.False(t, mr.Exists("test:cart:s1:items"))
	assert.False(t, mr.Exists("test:cart:s1:buy_now"))
}

func TestRedisPersistence_MissingKeysLoadEmpty(t *testing.T) {
	persist, _ := setupRedisPersistence(t)

	loaded, err := persist.Load(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, loaded.Items)
	assert.False(t, loaded.BuyNowActive)
}

func TestRedisPersistence_RepairsStoredData(t *testing.T) {
	persist, mr := setupRedisPersistence(t)
	ctx := context.Background()

	items := []Item{
		{Product: productX(100, 5), Size: NoSize, Quantity: 1},
		{Product: productX(100, 5), Size: NoSize, Quantity: 2},
		{Product: Product{ID: "broken", Name: "No price"}, Size: NoSize, Quantity: 1},
		{Product: sizedProduct("tee", 5), Size: "M", Quantity: 0},
	}
	raw, err := json.Marshal(items)
	require.NoError(t, err)
	require.NoError(t, mr.Set("test:cart:s1:items", string(raw)))
	require.NoError(t, mr.Set("test:cart:s1:buy_now", "1"))

	loaded, err := persist.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, 3, loaded.Items[0].Quantity)
	assert.True(t, loaded.BuyNowActive)

	require.NoError(t, mr.Set("test:cart:s2:items", "{not json"))
	require.NoError(t, mr.Set("test:cart:s2:buy_now", "1"))
	loaded, err = persist.Load(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, loaded.Items)
	assert.False(t, loaded.BuyNowActive, "flag without exactly one item is ignored")
}

func TestRedisPersistence_MergedDuplicatesClampToStock(t *testing.T) {
	persist, mr := setupRedisPersistence(t)

	items := []Item{
		{Product: productX(100, 5), Size: NoSize, Quantity: 4},
		{Product: productX(100, 5), Size: NoSize, Quantity: 3},
	}
	raw, err := json.Marshal(items)
	require.NoError(t, err)
	require.NoError(t, mr.Set("test:cart:s1:items", string(raw)))

	loaded, err := persist.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, 5, loaded.Items[0].Quantity)
}

func TestRedisPersistence_SaveReplacesBothKeysTogether(t *testing.T) {
	persist, mr := setupRedisPersistence(t)
	ctx := context.Background()

	buyNow := State{Items: []Item{{Product: sizedProduct("hoodie", 2), Size: "L", Quantity: 3, AddedAt: fixedNow}}, BuyNowActive: true}
	require.NoError(t, persist.Save(ctx, "s1", buyNow))
	assert.True(t, mr.Exists("test:cart:s1:buy_now"))
	assert.Equal(t, time.Hour, mr.TTL("test:cart:s1:buy_now"))

	regular := State{Items: []Item{
		{Product: sizedProduct("hoodie", 2), Size: "L", Quantity: 1, AddedAt: fixedNow},
		{Product: productX(100, 5), Size: NoSize, Quantity: 1, AddedAt: fixedNow},
	}}
	require.NoError(t, persist.Save(ctx, "s1", regular))
	assert.False(t, mr.Exists("test:cart:s1:buy_now"))

	loaded, err := persist.Load(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, loaded.BuyNowActive)
	assert.Len(t, loaded.Items, 2)
}

func TestRedisPersistence_BuyNowSurvivesRestart(t *testing.T) {
	persist, mr := setupRedisPersistence(t)
	ctx := context.Background()

	manager, err := NewManager(persist, nil, time.Second)
	require.NoError(t, err)
	require.NoError(t, manager.BuyNow(ctx, "s1", sizedProduct("hoodie", 4), "L", 3, ""))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	restarted, err := NewRedisPersistence(pkgredis.NewFromRaw(client, "test"), time.Hour, nil)
	require.NoError(t, err)
	freshManager, err := NewManager(restarted, nil, time.Second)
	require.NoError(t, err)

	require.NoError(t, freshManager.Do(ctx, "s1", func(s *Store) error {
		assert.True(t, s.IsBuyNowActive())
		assert.Equal(t, 3, s.TotalItems())
		return nil
	}))
}

func TestNewRedisPersistenceRequiresKV(t *testing.T) {
	_, err := NewRedisPersistence(nil, 0, nil)
	assert.Error(t, err)
}
