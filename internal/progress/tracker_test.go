package progress

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yt-dashboard/internal/cache"
)

func TestTrackerLifecycle(t *testing.T) {
	store := cache.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	tr := NewTracker(store)
	ctx := context.Background()

	pct, err := tr.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Zero(t, pct, "unknown users read as 0")

	require.NoError(t, tr.Set(ctx, "user_1", 42))
	pct, err = tr.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 42, pct)

	pct, err = tr.Get(ctx, "user_2")
	require.NoError(t, err)
	assert.Zero(t, pct, "progress is per user")

	require.NoError(t, tr.Clear(ctx, "user_1"))
	pct, err = tr.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Zero(t, pct)
}

func TestTrackerClamps(t *testing.T) {
	store := cache.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })
	tr := NewTracker(store)
	ctx := context.Background()

	require.NoError(t, tr.Set(ctx, "u", 140))
	pct, _ := tr.Get(ctx, "u")
	assert.Equal(t, 100, pct)

	require.NoError(t, tr.Set(ctx, "u", -3))
	pct, _ = tr.Get(ctx, "u")
	assert.Zero(t, pct)
}

func TestTrackerTTLs(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := cache.NewRedisStore(context.Background(), cache.RedisConfig{Addr: mr.Addr(), Prefix: "test:"}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	tr := NewTracker(store)
	ctx := context.Background()
	key := "test:upload-progress:user_1"

	require.NoError(t, tr.Set(ctx, "user_1", 10))
	assert.Equal(t, ActiveTTL, mr.TTL(key))

	require.NoError(t, tr.Complete(ctx, "user_1"))
	assert.Equal(t, CompletedTTL, mr.TTL(key))
	pct, err := tr.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 100, pct)

	mr.FastForward(CompletedTTL + time.Second)
	pct, err = tr.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Zero(t, pct, "completed progress expires")
}
