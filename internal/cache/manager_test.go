package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	manager, err := NewManager(Config{
		Addr:       mr.Addr(),
		KeyPrefix:  "test:",
		DefaultTTL: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestManager_SetAndGetUsesPrefix(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "draft:a", "value", 0))

	value, err := manager.Get(ctx, "draft:a")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	raw, err := mr.Get("test:draft:a")
	require.NoError(t, err)
	assert.Equal(t, "value", raw)
	assert.Equal(t, time.Minute, mr.TTL("test:draft:a"))
}

func TestManager_GetMissing(t *testing.T) {
	_, manager := setupTestRedis(t)

	_, err := manager.Get(context.Background(), "missing")
	assert.True(t, IsCacheMiss(err))

	var dest map[string]any
	err = manager.GetJSON(context.Background(), "missing", &dest)
	assert.True(t, IsCacheMiss(err))
}

func TestManager_JSON(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	type draft struct {
		Name  string `json:"name"`
		Nodes int    `json:"nodes"`
	}

	require.NoError(t, manager.SetJSON(ctx, "d", draft{Name: "flow", Nodes: 3}, time.Minute))

	var got draft
	require.NoError(t, manager.GetJSON(ctx, "d", &got))
	assert.Equal(t, draft{Name: "flow", Nodes: 3}, got)

	assert.Error(t, manager.SetJSON(ctx, "bad", make(chan int), 0))

	require.NoError(t, manager.Set(ctx, "not-json", "{", 0))
	assert.Error(t, manager.GetJSON(ctx, "not-json", &got))
}

func TestManager_DeleteAndKeys(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	for _, k := range []string{"draft:a", "draft:b", "other"} {
		require.NoError(t, manager.Set(ctx, k, "v", 0))
	}

	keys, err := manager.Keys(ctx, "draft:*")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"draft:a", "draft:b"}, keys)

	require.NoError(t, manager.Delete(ctx, "draft:a"))
	require.NoError(t, manager.Delete(ctx))

	keys, err = manager.Keys(ctx, "draft:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"draft:b"}, keys)
}

func TestManager_Expiry(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "short", "v", 10*time.Second))
	ttl, err := manager.TTL(ctx, "short")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, ttl)

	mr.FastForward(11 * time.Second)

	_, err = manager.Get(ctx, "short")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_Closed(t *testing.T) {
	_, manager := setupTestRedis(t)
	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	ctx := context.Background()
	assert.ErrorIs(t, manager.Ping(ctx), ErrClosed)
	assert.ErrorIs(t, manager.Set(ctx, "k", "v", 0), ErrClosed)
	_, err := manager.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewManager_Unreachable(t *testing.T) {
	manager, err := NewManager(Config{Addr: "127.0.0.1:1"}, nil)
	assert.Nil(t, manager)
	assert.Error(t, err)
}

func TestManager_ConcurrentOperations(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("concurrent-%d", id)
			assert.NoError(t, manager.Set(ctx, key, "value", time.Minute))
			value, err := manager.Get(ctx, key)
			assert.NoError(t, err)
			assert.Equal(t, "value", value)
		}(i)
	}
	wg.Wait()
}
