package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sheetdex/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

func newTestEmbedder(t *testing.T, svc *mockEmbeddingService, cfg EmbedderConfig) (*Embedder, *memory.EmbeddingStore) {
	t.Helper()
	store := memory.NewEmbeddingStore()
	if cfg.Dimensions == 0 {
		cfg.Dimensions = testDims
	}
	if cfg.BatchWindow == 0 {
		cfg.BatchWindow = 5 * time.Millisecond
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = time.Millisecond
	}
	var e *Embedder
	if svc == nil {
		e = NewEmbedder(nil, store, newTestPool(t, "ingest", 2), newTestPool(t, "query", 2), cfg)
	} else {
		e = NewEmbedder(svc, store, newTestPool(t, "ingest", 2), newTestPool(t, "query", 2), cfg)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e, store
}

func TestEmbedder_Embed_CachesResults(t *testing.T) {
	svc := newMockEmbeddingService()
	e, store := newTestEmbedder(t, svc, EmbedderConfig{BatchSize: 4, MaxAttempts: 1})
	ctx := context.Background()

	texts := map[string]string{"h1": "north revenue", "h2": "south revenue"}
	res, err := e.Embed(ctx, texts)
	require.NoError(t, err)
	assert.Len(t, res.Vectors, 2)
	assert.Equal(t, 2, res.Embedded)
	assert.Equal(t, 0, res.CacheHits)
	assert.Empty(t, res.Failed)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	calls := svc.callCount()
	res, err = e.Embed(ctx, texts)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CacheHits)
	assert.Equal(t, 0, res.Embedded)
	assert.Equal(t, calls, svc.callCount(), "cached hashes never reach the provider")
}

func TestEmbedder_Embed_Batches(t *testing.T) {
	svc := newMockEmbeddingService()
	e, _ := newTestEmbedder(t, svc, EmbedderConfig{BatchSize: 4, BatchWindow: 20 * time.Millisecond, MaxAttempts: 1})

	texts := make(map[string]string)
	for i := 0; i < 10; i++ {
		texts[fmt.Sprintf("h%02d", i)] = fmt.Sprintf("text %d", i)
	}
	res, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)

	assert.Len(t, res.Vectors, 10)
	assert.Equal(t, 10, svc.embeddedTexts())
	assert.GreaterOrEqual(t, svc.callCount(), 3, "10 texts in batches of at most 4")
}

func TestEmbedder_Embed_DeduplicatesConcurrentCallers(t *testing.T) {
	svc := newMockEmbeddingService()
	svc.delay = 20 * time.Millisecond
	e, _ := newTestEmbedder(t, svc, EmbedderConfig{BatchSize: 16, MaxAttempts: 1})

	texts := map[string]string{"shared": "same content"}
	var wg sync.WaitGroup
	results := make([]*EmbedResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.Embed(context.Background(), texts)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, svc.embeddedTexts(), "one provider request per distinct hash")
	embedded := 0
	for _, r := range results {
		require.NotNil(t, r)
		assert.Len(t, r.Vectors, 1)
		embedded += r.Embedded
	}
	assert.LessOrEqual(t, embedded, 1)
}

func TestEmbedder_Embed_RetriesTransientFailures(t *testing.T) {
	svc := newMockEmbeddingService()
	svc.failFirst = 2
	e, _ := newTestEmbedder(t, svc, EmbedderConfig{BatchSize: 4, MaxAttempts: 3})

	res, err := e.Embed(context.Background(), map[string]string{"h": "text"})
	require.NoError(t, err)

	assert.Len(t, res.Vectors, 1)
	assert.Equal(t, 3, svc.callCount())
}

func TestEmbedder_Embed_ExhaustedRetriesFailHashes(t *testing.T) {
	svc := newMockEmbeddingService()
	svc.err = errors.New("provider down")
	e, store := newTestEmbedder(t, svc, EmbedderConfig{BatchSize: 4, MaxAttempts: 2})

	res, err := e.Embed(context.Background(), map[string]string{"h1": "a", "h2": "b"})
	require.NoError(t, err, "provider failures are per hash, not fatal")

	assert.Empty(t, res.Vectors)
	require.Len(t, res.Failed, 2)
	var perr *domain.EmbeddingProviderError
	require.True(t, errors.As(res.Failed["h1"], &perr))
	assert.Equal(t, 2, perr.Attempts)
	assert.True(t, errors.Is(res.Failed["h1"], domain.ErrEmbeddingProvider))

	n, _ := store.Count(context.Background())
	assert.Equal(t, 0, n)
}

func TestEmbedder_Embed_DimensionMismatchIsPermanent(t *testing.T) {
	svc := newMockEmbeddingService()
	svc.dims = testDims + 1
	e, _ := newTestEmbedder(t, svc, EmbedderConfig{Dimensions: testDims, BatchSize: 4, MaxAttempts: 4})

	res, err := e.Embed(context.Background(), map[string]string{"h": "text"})
	require.NoError(t, err)

	assert.True(t, errors.Is(res.Failed["h"], domain.ErrDimensionMismatch))
	assert.Equal(t, 1, svc.callCount(), "mismatched vectors are not retried")
}

func TestEmbedder_Embed_ClientErrorIsPermanent(t *testing.T) {
	svc := newMockEmbeddingService()
	svc.err = &domain.ProviderStatusError{Provider: "openai", Status: 401, Body: "bad key"}
	e, _ := newTestEmbedder(t, svc, EmbedderConfig{BatchSize: 4, MaxAttempts: 4})

	res, err := e.Embed(context.Background(), map[string]string{"h": "text"})
	require.NoError(t, err)

	var serr *domain.ProviderStatusError
	require.True(t, errors.As(res.Failed["h"], &serr))
	assert.Equal(t, 401, serr.Status)
	assert.Equal(t, 1, svc.callCount(), "client errors are not retried")
}

func TestEmbedder_Embed_RateLimitIsRetried(t *testing.T) {
	svc := newMockEmbeddingService()
	svc.err = &domain.ProviderStatusError{Provider: "openai", Status: 429}
	e, _ := newTestEmbedder(t, svc, EmbedderConfig{BatchSize: 4, MaxAttempts: 3})

	res, err := e.Embed(context.Background(), map[string]string{"h": "text"})
	require.NoError(t, err)

	assert.Len(t, res.Failed, 1)
	assert.Equal(t, 3, svc.callCount())
}

func TestEmbedder_Embed_NoProvider(t *testing.T) {
	e, store := newTestEmbedder(t, nil, EmbedderConfig{})
	ctx := context.Background()
	_, err := store.PutIfAbsent(ctx, "cached", make([]float32, testDims))
	require.NoError(t, err)

	res, err := e.Embed(ctx, map[string]string{"cached": "x", "miss": "y"})
	require.NoError(t, err)

	assert.False(t, e.Available())
	assert.Len(t, res.Vectors, 1)
	assert.Equal(t, 1, res.CacheHits)
	assert.True(t, errors.Is(res.Failed["miss"], domain.ErrEmbeddingUnavailable))
}

func TestEmbedder_Embed_AfterClose(t *testing.T) {
	svc := newMockEmbeddingService()
	e, _ := newTestEmbedder(t, svc, EmbedderConfig{})
	require.NoError(t, e.Close())

	res, err := e.Embed(context.Background(), map[string]string{"h": "text"})
	require.NoError(t, err)
	assert.True(t, errors.Is(res.Failed["h"], ErrEmbedderClosed))
}

func TestEmbedder_Embed_Empty(t *testing.T) {
	e, _ := newTestEmbedder(t, newMockEmbeddingService(), EmbedderConfig{})

	res, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Vectors)
	assert.Empty(t, res.Failed)
}

func TestEmbedder_EmbedQuery(t *testing.T) {
	svc := newMockEmbeddingService()
	e, store := newTestEmbedder(t, svc, EmbedderConfig{})

	vec, err := e.EmbedQuery(context.Background(), "q1 revenue")
	require.NoError(t, err)
	assert.Len(t, vec, testDims)

	n, _ := store.Count(context.Background())
	assert.Equal(t, 0, n, "query embeddings are not cached")
}

func TestEmbedder_EmbedQuery_NoProvider(t *testing.T) {
	e, _ := newTestEmbedder(t, nil, EmbedderConfig{})

	_, err := e.EmbedQuery(context.Background(), "q")
	assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))
}

func TestEmbedder_EmbedQuery_SharedCallOutlivesFirstCaller(t *testing.T) {
	svc := newMockEmbeddingService()
	svc.delay = 100 * time.Millisecond
	e, _ := newTestEmbedder(t, svc, EmbedderConfig{})

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	firstErr := make(chan error, 1)
	go func() {
		_, err := e.EmbedQuery(short, "north revenue")
		firstErr <- err
	}()
	time.Sleep(5 * time.Millisecond)

	vec, err := e.EmbedQuery(context.Background(), "north revenue")
	require.NoError(t, err, "a caller with a longer deadline keeps the shared result")
	assert.Len(t, vec, testDims)

	assert.ErrorIs(t, <-firstErr, context.DeadlineExceeded)
	assert.Equal(t, 1, svc.callCount(), "identical queries share one provider call")
}

func TestEmbedder_EmbedQuery_ContextCancelled(t *testing.T) {
	svc := newMockEmbeddingService()
	svc.delay = time.Second
	e, _ := newTestEmbedder(t, svc, EmbedderConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := e.EmbedQuery(ctx, "slow")
	assert.Error(t, err)
}
