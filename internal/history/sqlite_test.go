// ABOUTME: Tests for the SQLite transcript cache.
// ABOUTME: Covers replace-load round trips, non-confirmed filtering, and clear.

package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmajedshbeir/neora-client/internal/chat"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_ReplaceAllAndLoad(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []chat.Message{
		{ID: "m1", Kind: chat.KindConfirmed, Role: chat.RoleUser, Text: "hello", CreatedAt: created},
		{ID: "m2", Kind: chat.KindConfirmed, Role: chat.RoleAssistant, Text: "hi there", AudioURL: "https://cdn.example/a.ogg", CreatedAt: created.Add(time.Second)},
	}
	require.NoError(t, c.ReplaceAll(ctx, msgs))

	loaded, err := c.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "m1", loaded[0].ID)
	assert.Equal(t, chat.RoleUser, loaded[0].Role)
	assert.Equal(t, "hello", loaded[0].Text)
	assert.Equal(t, "m2", loaded[1].ID)
	assert.Equal(t, "https://cdn.example/a.ogg", loaded[1].AudioURL)
	assert.Equal(t, chat.KindConfirmed, loaded[1].Kind)
	assert.True(t, loaded[1].CreatedAt.Equal(created.Add(time.Second)))
}

func TestCache_ReplaceAllDropsNonConfirmed(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	msgs := []chat.Message{
		{ID: "m1", Kind: chat.KindConfirmed, Role: chat.RoleUser, Text: "kept"},
		{ID: "tmp", Kind: chat.KindOptimistic, Role: chat.RoleUser, Text: "in flight"},
		{ID: "ph", Kind: chat.KindPlaceholder, Role: chat.RoleAssistant},
	}
	require.NoError(t, c.ReplaceAll(ctx, msgs))

	loaded, err := c.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "m1", loaded[0].ID)
}

func TestCache_ReplaceAllOverwrites(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.ReplaceAll(ctx, []chat.Message{
		{ID: "old", Kind: chat.KindConfirmed, Role: chat.RoleUser, Text: "stale"},
	}))
	require.NoError(t, c.ReplaceAll(ctx, []chat.Message{
		{ID: "new1", Kind: chat.KindConfirmed, Role: chat.RoleUser, Text: "fresh"},
		{ID: "new2", Kind: chat.KindConfirmed, Role: chat.RoleAssistant, Text: "reply"},
	}))

	loaded, err := c.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "new1", loaded[0].ID)
}

func TestCache_LoadEmpty(t *testing.T) {
	c := openTestCache(t)

	loaded, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestCache_Clear(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.ReplaceAll(ctx, []chat.Message{
		{ID: "m1", Kind: chat.KindConfirmed, Role: chat.RoleUser, Text: "hello"},
	}))
	require.NoError(t, c.Clear(ctx))

	loaded, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
