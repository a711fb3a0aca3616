package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingStore_PutIfAbsent_KeepsFirst(t *testing.T) {
	store := NewEmbeddingStore()
	ctx := context.Background()

	stored, err := store.PutIfAbsent(ctx, "h1", []float32{1, 0})
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = store.PutIfAbsent(ctx, "h1", []float32{0, 1})
	require.NoError(t, err)
	assert.False(t, stored)

	v, ok, err := store.Get(ctx, "h1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0}, v)
}

func TestEmbeddingStore_CopiesInput(t *testing.T) {
	store := NewEmbeddingStore()
	ctx := context.Background()
	vec := []float32{0.5, 0.5}

	_, err := store.PutIfAbsent(ctx, "h", vec)
	require.NoError(t, err)
	vec[0] = 9

	v, _, _ := store.Get(ctx, "h")
	assert.Equal(t, float32(0.5), v[0])
}

func TestEmbeddingStore_GetMissing(t *testing.T) {
	store := NewEmbeddingStore()

	v, ok, err := store.Get(context.Background(), "nope")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestEmbeddingStore_GetManyAndCount(t *testing.T) {
	store := NewEmbeddingStore()
	ctx := context.Background()
	_, _ = store.PutIfAbsent(ctx, "a", []float32{1})
	_, _ = store.PutIfAbsent(ctx, "b", []float32{2})

	got, err := store.GetMany(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []float32{2}, got["b"])

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, store.Close())
}

func TestEmbeddingStore_ConcurrentPutIfAbsent(t *testing.T) {
	store := NewEmbeddingStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	wins := make(chan bool, 20)
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stored, err := store.PutIfAbsent(ctx, "shared", []float32{float32(i)})
			assert.NoError(t, err)
			wins <- stored
		}(i)
	}
	wg.Wait()
	close(wins)

	var count int
	for w := range wins {
		if w {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
