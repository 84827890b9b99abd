package history

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/agentstudio/internal/cache"
	"github.com/BaSui01/agentstudio/types"
	"github.com/BaSui01/agentstudio/workflow"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Store[workflow.Snapshot]) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewManager(cache.Config{Addr: mr.Addr(), KeyPrefix: "studio:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return mr, NewStore[workflow.Snapshot](c, time.Hour, nil)
}

func TestStore_SaveAndLoad(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	m := New(workflow.EmptySnapshot())
	m.Commit(func(s workflow.Snapshot) workflow.Snapshot {
		s = s.Clone()
		s.Nodes = append(s.Nodes, workflow.Node{
			ID:         "n1",
			Type:       "prompt_template",
			Label:      "Prompt",
			Parameters: workflow.Params{"text": workflow.String("Hi {{name}}"), "temperature": workflow.Number(0.3)},
			Position:   &workflow.Position{X: 10, Y: 20},
		})
		return s
	}, true)

	require.NoError(t, store.Save(ctx, "flow-1", m.State()))
	assert.True(t, mr.Exists("studio:draft:flow-1"))
	assert.Equal(t, time.Hour, mr.TTL("studio:draft:flow-1"))

	loaded, err := store.Load(ctx, "flow-1")
	require.NoError(t, err)
	require.Len(t, loaded.Past, 1)
	assert.Empty(t, loaded.Past[0].Nodes)
	require.Len(t, loaded.Present.Nodes, 1)

	node := loaded.Present.Nodes[0]
	assert.Equal(t, "n1", node.ID)
	assert.Equal(t, &workflow.Position{X: 10, Y: 20}, node.Position)
	text, _ := node.Parameters.String("text")
	assert.Equal(t, "Hi {{name}}", text)

	restored := New(workflow.EmptySnapshot())
	restored.Restore(loaded)
	require.True(t, restored.Undo())
	assert.Empty(t, restored.Present().Nodes)
}

func TestStore_LoadMissing(t *testing.T) {
	_, store := newTestStore(t)

	_, err := store.Load(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))
}

func TestStore_ListAndDelete(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b"} {
		require.NoError(t, store.Save(ctx, key, State[workflow.Snapshot]{Present: workflow.EmptySnapshot()}))
	}

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	require.NoError(t, store.Delete(ctx, "a"))
	keys, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.NewManager(cache.Config{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	store := NewStore[workflow.Snapshot](c, 0, nil)

	err = store.Save(context.Background(), "k", State[workflow.Snapshot]{})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrStoreUnavailable))
}
