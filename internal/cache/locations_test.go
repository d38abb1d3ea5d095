package cache

import (
	"context"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/erazemk/fieldstock/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	c := NewLocations(nil, "")

	assert.False(t, c.Enabled())
	assert.NoError(t, c.Put(ctx, &model.Location{WorkerID: 1}))
	assert.NoError(t, c.Fill(ctx, nil))
	assert.NoError(t, c.Forget(ctx, 1))

	locs, ok, err := c.All(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, locs)

	var nilCache *Locations
	assert.False(t, nilCache.Enabled())
}

// TestRedisLocations runs against a real server when FIELDSTOCK_TEST_REDIS
// names one, e.g. localhost:6379.
func TestRedisLocations(t *testing.T) {
	addr := os.Getenv("FIELDSTOCK_TEST_REDIS")
	if addr == "" {
		t.Skip("FIELDSTOCK_TEST_REDIS not set")
	}
	ctx := context.Background()

	rdb, err := Connect(ctx, addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	key := "fieldstock:test:" + time.Now().Format("150405.000000")
	c := NewLocations(rdb, key)
	t.Cleanup(func() { rdb.Del(context.Background(), key, c.primedKey()) })

	_, ok, err := c.All(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "unfilled cache must not be served")

	require.NoError(t, c.Fill(ctx, []model.Location{
		{ID: 1, WorkerID: 10, Latitude: decimal.NewFromInt(46), Longitude: decimal.NewFromInt(14)},
	}))
	require.NoError(t, c.Put(ctx, &model.Location{ID: 5, WorkerID: 10, Latitude: decimal.NewFromInt(45)}))
	require.NoError(t, c.Put(ctx, &model.Location{ID: 3, WorkerID: 10, Latitude: decimal.NewFromInt(44)}))
	require.NoError(t, c.Put(ctx, &model.Location{ID: 4, WorkerID: 11}))

	locs, ok, err := c.All(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, locs, 2)
	sort.Slice(locs, func(i, j int) bool { return locs[i].WorkerID < locs[j].WorkerID })
	assert.Equal(t, int64(5), locs[0].ID, "older sample must not replace a newer one")

	require.NoError(t, c.Forget(ctx, 11))
	locs, _, err = c.All(ctx)
	require.NoError(t, err)
	assert.Len(t, locs, 1)
}

func TestRedisFillKeepsNewerEntries(t *testing.T) {
	addr := os.Getenv("FIELDSTOCK_TEST_REDIS")
	if addr == "" {
		t.Skip("FIELDSTOCK_TEST_REDIS not set")
	}
	ctx := context.Background()

	rdb, err := Connect(ctx, addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	key := "fieldstock:test:fill:" + time.Now().Format("150405.000000")
	c := NewLocations(rdb, key)
	t.Cleanup(func() { rdb.Del(context.Background(), key, c.primedKey()) })

	// Left over from a deleted worker before Redis lost the primed marker.
	require.NoError(t, c.Put(ctx, &model.Location{ID: 2, WorkerID: 30}))
	// Saved while the snapshot below was being read from the database.
	require.NoError(t, c.Put(ctx, &model.Location{ID: 9, WorkerID: 20}))
	require.NoError(t, c.Put(ctx, &model.Location{ID: 8, WorkerID: 21}))

	require.NoError(t, c.Fill(ctx, []model.Location{
		{ID: 6, WorkerID: 20},
		{ID: 7, WorkerID: 22},
	}))

	locs, ok, err := c.All(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	sort.Slice(locs, func(i, j int) bool { return locs[i].WorkerID < locs[j].WorkerID })
	require.Len(t, locs, 3)
	assert.Equal(t, int64(9), locs[0].ID, "snapshot must not replace a newer sample")
	assert.Equal(t, int64(21), locs[1].WorkerID, "sample newer than the snapshot is kept")
	assert.Equal(t, int64(22), locs[2].WorkerID)
}
