package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timetracker/generic"
	"github.com/warp/timetracker/store/memory"
	"github.com/warp/timetracker/tracker"
	"go.uber.org/zap"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewFromClient(client, "", zap.NewNop()), mr
}

func TestCache_GetSetDelete(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "holidaybalance:u1:2024")
	assert.ErrorIs(t, err, generic.ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "holidaybalance:u1:2024", "21"))
	got, err := cache.Get(ctx, "holidaybalance:u1:2024")
	require.NoError(t, err)
	assert.Equal(t, "21", got)

	// stored under the prefix, with no expiry
	assert.True(t, mr.Exists("timetracker:holidaybalance:u1:2024"))
	assert.Equal(t, time.Duration(0), mr.TTL("timetracker:holidaybalance:u1:2024"))

	require.NoError(t, cache.Delete(ctx, "holidaybalance:u1:2024", "never-set"))
	_, err = cache.Get(ctx, "holidaybalance:u1:2024")
	assert.ErrorIs(t, err, generic.ErrCacheMiss)

	require.NoError(t, cache.Delete(ctx))
}

func TestCache_ServerDown(t *testing.T) {
	cache, mr := setupTestCache(t)
	mr.Close()

	_, err := cache.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, generic.ErrCacheMiss)
}

func TestCache_BacksEngine(t *testing.T) {
	// GIVEN: An engine reading through the Redis cache
	// WHEN: A holiday entry is added without invalidating, then after
	// THEN: The stale value is served until Invalidate runs

	cache, _ := setupTestCache(t)
	ctx := context.Background()
	store := memory.New()
	engine := tracker.NewEngine(store, tracker.WithCache(cache))
	u := tracker.User{ID: "u1", Role: tracker.RoleUser, HolidayBalance: 20}

	got, err := engine.HolidayBalance(ctx, u, 2024)
	require.NoError(t, err)
	assert.Equal(t, 20, got)

	require.NoError(t, store.SaveEntry(ctx, tracker.Entry{
		ID: "e1", UserID: "u1", Date: generic.NewTimePoint(2024, time.May, 2), Daytype: tracker.DaytypeHoliday,
	}))
	got, err = engine.HolidayBalance(ctx, u, 2024)
	require.NoError(t, err)
	assert.Equal(t, 20, got)

	require.NoError(t, engine.Invalidate(ctx, "u1", 2024))
	got, err = engine.HolidayBalance(ctx, u, 2024)
	require.NoError(t, err)
	assert.Equal(t, 19, got)
}

func TestNew_NilLogger(t *testing.T) {
	mr := miniredis.RunT(t)

	cache, err := New(context.Background(), Config{Addr: mr.Addr(), Prefix: "tt:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	require.NoError(t, cache.Set(context.Background(), "k", "v"))
	assert.True(t, mr.Exists("tt:k"))
	require.NoError(t, cache.Delete(context.Background(), "k"))
}

func TestNew_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Config{Addr: addr}, nil)
	assert.Error(t, err)
}
