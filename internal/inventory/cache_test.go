package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheFetchPopulatesAndHits(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(context.Context) (any, error) {
		loads++
		return []StockLevel{{MedicineID: 1, Name: "Paracetamol", Quantity: 42}}, nil
	}

	key, err := cache.BuildKey(ctx, 1, keyStock(1))
	require.NoError(t, err)

	var first []StockLevel
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.Len(t, first, 1)
	require.EqualValues(t, 42, first[0].Quantity)
	require.Equal(t, 1, loads)

	var second []StockLevel
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, 1, loads, "second fetch must hit the cache")
}

func TestCacheInvalidateChangesKey(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, 1, keyStock(1))
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(ctx, 1))

	after, err := cache.BuildKey(ctx, 1, keyStock(1))
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestCacheVersionsArePerOrganization(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	orgOneBefore, err := cache.BuildKey(ctx, 1, keyStock(1))
	require.NoError(t, err)
	orgTwoBefore, err := cache.BuildKey(ctx, 2, keyStock(2))
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(ctx, 1))

	orgOneAfter, err := cache.BuildKey(ctx, 1, keyStock(1))
	require.NoError(t, err)
	orgTwoAfter, err := cache.BuildKey(ctx, 2, keyStock(2))
	require.NoError(t, err)

	require.NotEqual(t, orgOneBefore, orgOneAfter)
	require.Equal(t, orgTwoBefore, orgTwoAfter)
}

func TestCacheNilClientFallsThrough(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	var levels []StockLevel
	err := cache.FetchJSON(ctx, "any", &levels, func(context.Context) (any, error) {
		return []StockLevel{{MedicineID: 7}}, nil
	})
	require.NoError(t, err)
	require.Len(t, levels, 1)
}
