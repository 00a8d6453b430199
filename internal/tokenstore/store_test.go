package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T) (*Store, *FileTier, *FileTier) {
	t.Helper()
	directory := t.TempDir()
	durable := NewFileTier(filepath.Join(directory, "config", "token.json"))
	session := NewFileTier(filepath.Join(directory, "runtime", "token.json"))
	return New(durable, session), durable, session
}

func TestSaveReplacesTokenAcrossTiers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, durable, session := newFileStore(t)

	require.NoError(t, store.Save(ctx, "tok", true))
	require.NoError(t, store.Save(ctx, "tok2", false))

	token, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok2", token)

	_, ok, err = durable.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "durable tier must be cleared")

	stored, ok, err := session.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok2", stored)
}

func TestSaveDurableClearsSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	durable, session := NewMemoryTier(), NewMemoryTier()
	store := New(durable, session)

	require.NoError(t, store.Save(ctx, "first", false))
	require.NoError(t, store.Save(ctx, "second", true))

	_, ok, _ := session.Get(ctx)
	assert.False(t, ok)
	token, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", token)
}

func TestLoadEmpty(t *testing.T) {
	t.Parallel()
	store, _, _ := newFileStore(t)

	token, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, token)
}

func TestClearRemovesBothTiers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, durable, session := newFileStore(t)

	// Write to both directly to prove Clear is unconditional.
	require.NoError(t, durable.Set(ctx, "a"))
	require.NoError(t, session.Set(ctx, "b"))

	require.NoError(t, store.Clear(ctx))
	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Clearing again is a no-op.
	require.NoError(t, store.Clear(ctx))
}

func TestFileTierPermissions(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	tier := NewFileTier(path)
	require.NoError(t, tier.Set(context.Background(), "secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())
}

func TestFileTierRejectsCorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	_, _, err := NewFileTier(path).Get(context.Background())
	assert.Error(t, err)
}

func TestRedisTier(t *testing.T) {
	addr := os.Getenv("ROLLBOOK_TEST_REDIS")
	if addr == "" {
		t.Skip("ROLLBOOK_TEST_REDIS not set")
	}
	ctx := context.Background()
	tier := NewRedisTier(addr, "rollbook:test:token")
	defer tier.Close()
	require.True(t, tier.Healthy(ctx))

	store := New(tier, NewMemoryTier())
	require.NoError(t, store.Save(ctx, "redis-token", true))
	token, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "redis-token", token)

	require.NoError(t, store.Clear(ctx))
	_, ok, err = tier.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
