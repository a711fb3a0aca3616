package services

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sheetdex/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
	"github.com/custodia-labs/sheetdex/internal/index"
	"github.com/custodia-labs/sheetdex/internal/workerpool"
)

const testDims = 16

// --- Mock implementations ---

// mockEmbeddingService produces bag-of-words vectors so that texts sharing
// terms are close under cosine similarity.
type mockEmbeddingService struct {
	mu        sync.Mutex
	calls     int
	texts     []string
	failFirst int   // number of calls that fail before succeeding
	err       error // when set, every call fails
	dims      int
	delay     time.Duration
}

func newMockEmbeddingService() *mockEmbeddingService {
	return &mockEmbeddingService{dims: testDims}
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	m.calls++
	if m.err != nil {
		m.mu.Unlock()
		return nil, m.err
	}
	if m.failFirst > 0 {
		m.failFirst--
		m.mu.Unlock()
		return nil, errors.New("503 service unavailable")
	}
	m.texts = append(m.texts, texts...)
	dims := m.dims
	m.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bagVector(t, dims)
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int              { return m.dims }
func (m *mockEmbeddingService) ModelName() string            { return "mock-embed" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

func (m *mockEmbeddingService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockEmbeddingService) embeddedTexts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

func (m *mockEmbeddingService) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

var _ driven.EmbeddingService = (*mockEmbeddingService)(nil)

func bagVector(text string, dims int) []float32 {
	v := make([]float32, dims)
	for _, tok := range index.Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[h.Sum32()%uint32(dims)]++
	}
	v[dims-1] += 0.01
	return v
}

// mockReranker scores by a fixed table keyed on chunk text, or fails.
type mockReranker struct {
	mu     sync.Mutex
	scores map[string]float64
	err    error
	calls  int
}

func (m *mockReranker) Score(_ context.Context, _, text string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	return m.scores[text], nil
}

func (m *mockReranker) ModelName() string            { return "mock-rerank" }
func (m *mockReranker) Ping(_ context.Context) error { return nil }
func (m *mockReranker) Close() error                 { return nil }

var _ driven.Reranker = (*mockReranker)(nil)

// --- Fixtures ---

func newTestPool(t *testing.T, name string, size int) *workerpool.Pool {
	t.Helper()
	p, err := workerpool.New(name, workerpool.Config{Size: size})
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

// testEnv wires an ingest and query service over memory stores.
type testEnv struct {
	svc        *mockEmbeddingService
	chunks     *memory.ChunkStore
	embeddings *memory.EmbeddingStore
	embedder   *Embedder
	index      *index.Dual
	ingest     *IngestService
	query      *QueryService
}

func newTestEnv(t *testing.T, svc *mockEmbeddingService, reranker driven.Reranker) *testEnv {
	t.Helper()
	env := &testEnv{
		svc:        svc,
		chunks:     memory.NewChunkStore(),
		embeddings: memory.NewEmbeddingStore(),
		index:      index.New(index.Config{Dimensions: testDims}),
	}

	var provider driven.EmbeddingService
	if svc != nil {
		provider = svc
	}
	env.embedder = NewEmbedder(provider, env.embeddings,
		newTestPool(t, "ingest", 2), newTestPool(t, "query", 4),
		EmbedderConfig{
			Dimensions:     testDims,
			BatchSize:      8,
			BatchWindow:    5 * time.Millisecond,
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
		})
	t.Cleanup(func() { _ = env.embedder.Close() })

	env.ingest = NewIngestService(env.chunks, env.embeddings, env.embedder, env.index)
	env.query = NewQueryService(env.index, env.embedder,
		NewReranker(reranker, newTestPool(t, "rerank", 4)),
		domain.QuerySettings{TopK: 10, Timeout: 5 * time.Second}, 20)
	return env
}

func (e *testEnv) mustIngest(t *testing.T, id string, wb *domain.ParsedWorkbook) *domain.IngestReport {
	t.Helper()
	report, err := e.ingest.Ingest(context.Background(), id, wb)
	require.NoError(t, err)
	return report
}

// salesWorkbook has a Sales sheet with three rows in one section and an
// Inventory sheet whose rows mention revenue more often than Sales does.
func salesWorkbook() *domain.ParsedWorkbook {
	return &domain.ParsedWorkbook{
		Name:   "Q1.xlsx",
		Source: "/tmp/Q1.xlsx",
		Sheets: []domain.ParsedSheet{
			{
				Name:    "Sales",
				Headers: []string{"Region", "Quarter", "Revenue"},
				Rows: [][]string{
					{"North", "Q1", "1200"},
					{"South", "Q2", "900"},
					{"East", "Q3", "700"},
				},
			},
			{
				Name:    "Inventory",
				Headers: []string{"Item", "Notes"},
				Rows: [][]string{
					{"Widget", "Q1 revenue, Q1 revenue"},
					{"Gadget", "restock in Q1 for revenue"},
				},
			},
		},
	}
}

// salesOnly is salesWorkbook with the Inventory sheet deleted.
func salesOnly() *domain.ParsedWorkbook {
	wb := salesWorkbook()
	wb.Sheets = wb.Sheets[:1]
	return wb
}

func chunkByText(chunks []domain.Chunk, text string) (domain.Chunk, bool) {
	for _, c := range chunks {
		if c.Text == text {
			return c, true
		}
	}
	return domain.Chunk{}, false
}

func rowChunks(chunks []domain.Chunk) []domain.Chunk {
	var rows []domain.Chunk
	for _, c := range chunks {
		if c.Level == domain.LevelRow {
			rows = append(rows, c)
		}
	}
	return rows
}
