package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

const testDims = 3

// setupTestStore connects to SHEETDEX_TEST_POSTGRES_DSN or skips.
func setupTestStore(t *testing.T) *EmbeddingStore {
	t.Helper()

	dsn := os.Getenv("SHEETDEX_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set SHEETDEX_TEST_POSTGRES_DSN to run postgres embedding store tests")
	}

	ctx := context.Background()
	store, err := Open(ctx, dsn, testDims)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

// uniqueHash keeps concurrent runs against a shared database apart.
func uniqueHash(t *testing.T, name string) string {
	return fmt.Sprintf("%s-%s-%d", t.Name(), name, time.Now().UnixNano())
}

func TestNewPool_EmptyDSN(t *testing.T) {
	_, err := NewPool(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEnsureSchema_InvalidDimensions(t *testing.T) {
	err := EnsureSchema(context.Background(), nil, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPutIfAbsent_DimensionMismatch(t *testing.T) {
	store := NewEmbeddingStore(nil, testDims)

	_, err := store.PutIfAbsent(context.Background(), "h", []float32{1})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestEmbeddingStore_PutAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	hash := uniqueHash(t, "a")

	wrote, err := store.PutIfAbsent(ctx, hash, []float32{1, 0, 0.5})
	require.NoError(t, err)
	assert.True(t, wrote)

	got, ok, err := store.Get(ctx, hash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0.5}, got)
}

func TestEmbeddingStore_PutIfAbsent_KeepsFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	hash := uniqueHash(t, "a")

	_, err := store.PutIfAbsent(ctx, hash, []float32{1, 1, 1})
	require.NoError(t, err)
	wrote, err := store.PutIfAbsent(ctx, hash, []float32{2, 2, 2})
	require.NoError(t, err)
	assert.False(t, wrote)

	got, _, err := store.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1}, got)
}

func TestEmbeddingStore_GetMissing(t *testing.T) {
	store := setupTestStore(t)

	got, ok, err := store.Get(context.Background(), uniqueHash(t, "missing"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestEmbeddingStore_GetMany(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	a, b := uniqueHash(t, "a"), uniqueHash(t, "b")

	_, err := store.PutIfAbsent(ctx, a, []float32{1, 0, 0})
	require.NoError(t, err)
	_, err = store.PutIfAbsent(ctx, b, []float32{0, 1, 0})
	require.NoError(t, err)

	got, err := store.GetMany(ctx, []string{a, b, uniqueHash(t, "c")})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []float32{0, 1, 0}, got[b])

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)
}

func TestEmbeddingStore_GetMany_Empty(t *testing.T) {
	store := NewEmbeddingStore(nil, testDims)

	got, err := store.GetMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
