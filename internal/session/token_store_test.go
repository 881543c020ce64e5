package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore("")

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Save(ctx, "abc"))
	token, _ = store.Load(ctx)
	assert.Equal(t, "abc", token)

	require.NoError(t, store.Clear(ctx))
	token, _ = store.Load(ctx)
	assert.Empty(t, token)
}

func TestFileTokenStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "token")
	store := NewFileTokenStore(path)
	assert.Equal(t, path, store.Path())

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Save(ctx, "jwt-value"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jwt-value", token)

	require.NoError(t, store.Save(ctx, "rotated"))
	token, _ = store.Load(ctx)
	assert.Equal(t, "rotated", token)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRedisTokenStoreUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisTokenStore(client, "rbac-console:token")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Load(ctx)
	assert.Error(t, err)
	assert.Error(t, store.Save(ctx, "x"))
	assert.Error(t, store.Clear(ctx))
}

func TestDefaultTokenFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	path, err := DefaultTokenFile()
	require.NoError(t, err)
	assert.Equal(t, "token", filepath.Base(path))
	assert.Equal(t, "rbac-console", filepath.Base(filepath.Dir(path)))
}
