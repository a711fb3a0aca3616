package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

func keywordOnly() *domain.Weights {
	return &domain.Weights{Vector: 0, Keyword: 1}
}

func resultIDs(r *domain.RetrievalResult) []string {
	ids := make([]string, len(r.Results))
	for i, rc := range r.Results {
		ids[i] = rc.Chunk.ID
	}
	return ids
}

func TestQueryService_KeywordOnly_RanksByTermOverlap(t *testing.T) {
	for _, tc := range []struct {
		name string
		svc  *mockEmbeddingService
	}{
		{"with embeddings", newMockEmbeddingService()},
		{"without embeddings", nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, tc.svc, nil)
			env.mustIngest(t, "wb1", salesOnly())

			res, err := env.query.Query(context.Background(), domain.Query{
				Text:    "Q1 revenue",
				TopK:    2,
				Weights: keywordOnly(),
			})
			require.NoError(t, err)

			require.Len(t, res.Results, 2)
			assert.Equal(t, "Region: North | Quarter: Q1 | Revenue: 1200", res.Results[0].Chunk.Text)
			assert.Equal(t, domain.LevelWorkbook, res.Results[1].Chunk.Level)
			for _, rc := range res.Results {
				require.NotNil(t, rc.KeywordScore)
				assert.Nil(t, rc.VectorScore, "vector search does not run at weight 0")
			}
			assert.Greater(t, res.Results[0].FusedScore, res.Results[1].FusedScore)
			assert.False(t, res.Partial)
			assert.Empty(t, res.Warnings)
		})
	}
}

func TestQueryService_Filter_ExcludesOtherSheets(t *testing.T) {
	env := newTestEnv(t, newMockEmbeddingService(), nil)
	env.mustIngest(t, "wb1", salesWorkbook())
	ctx := context.Background()

	unfiltered, err := env.query.Query(ctx, domain.Query{Text: "Q1 revenue", Weights: keywordOnly()})
	require.NoError(t, err)
	require.NotEmpty(t, unfiltered.Results)
	assert.Equal(t, "Inventory", unfiltered.Results[0].Chunk.SheetName(), "Inventory scores higher unfiltered")

	for _, weights := range []*domain.Weights{keywordOnly(), nil} {
		res, err := env.query.Query(ctx, domain.Query{
			Text:    "Q1 revenue",
			Filter:  domain.Filter{domain.MetaSheetName: "Sales"},
			Weights: weights,
		})
		require.NoError(t, err)
		require.NotEmpty(t, res.Results)
		for _, rc := range res.Results {
			assert.Equal(t, "Sales", rc.Chunk.SheetName())
		}
		assert.Equal(t, 5, res.Candidates, "sheet, section and three rows")
	}
}

func TestQueryService_Hybrid_UsesBothSignals(t *testing.T) {
	env := newTestEnv(t, newMockEmbeddingService(), nil)
	env.mustIngest(t, "wb1", salesOnly())

	res, err := env.query.Query(context.Background(), domain.Query{Text: "North Q1 revenue", TopK: 3})
	require.NoError(t, err)

	require.NotEmpty(t, res.Results)
	top := res.Results[0]
	assert.Equal(t, "Region: North | Quarter: Q1 | Revenue: 1200", top.Chunk.Text)
	assert.NotNil(t, top.VectorScore)
	assert.NotNil(t, top.KeywordScore)
	assert.Equal(t, "Q1.xlsx > Sales > section 1 > row 1", top.Citation)
	assert.Len(t, top.Ancestors, 3)
	assert.Contains(t, top.Context, "Revenue: 1200")
	for i := 1; i < len(res.Results); i++ {
		assert.GreaterOrEqual(t, res.Results[i-1].FusedScore, res.Results[i].FusedScore)
	}
}

func TestQueryService_Deterministic(t *testing.T) {
	env := newTestEnv(t, newMockEmbeddingService(), nil)
	env.mustIngest(t, "wb1", salesWorkbook())
	q := domain.Query{Text: "revenue forecast", TopK: 10}

	first, err := env.query.Query(context.Background(), q)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := env.query.Query(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, resultIDs(first), resultIDs(again))
		for j := range first.Results {
			assert.Equal(t, first.Results[j].FusedScore, again.Results[j].FusedScore)
		}
	}
}

func TestQueryService_EmptyQuery(t *testing.T) {
	env := newTestEnv(t, newMockEmbeddingService(), nil)
	env.mustIngest(t, "wb1", salesOnly())
	calls := env.svc.callCount()

	res, err := env.query.Query(context.Background(), domain.Query{Text: "   "})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.NotNil(t, res.Results)
	assert.Equal(t, calls, env.svc.callCount(), "nothing is embedded for an empty query")
}

func TestQueryService_EmptyIndex(t *testing.T) {
	env := newTestEnv(t, newMockEmbeddingService(), nil)

	res, err := env.query.Query(context.Background(), domain.Query{Text: "revenue"})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Equal(t, 0, res.Candidates)
}

func TestQueryService_InvalidInput(t *testing.T) {
	env := newTestEnv(t, newMockEmbeddingService(), nil)
	ctx := context.Background()

	_, err := env.query.Query(ctx, domain.Query{Text: "x", Weights: &domain.Weights{}})
	assert.True(t, errors.Is(err, domain.ErrInvalidWeights))

	_, err = env.query.Query(ctx, domain.Query{Text: "x", Weights: &domain.Weights{Vector: -1, Keyword: 1}})
	assert.True(t, errors.Is(err, domain.ErrInvalidWeights))

	_, err = env.query.Query(ctx, domain.Query{Text: "x", Filter: domain.Filter{"colour": "red"}})
	assert.True(t, errors.Is(err, domain.ErrInvalidFilter))

	_, err = env.query.Query(ctx, domain.Query{Text: "x", Normalization: "softmax"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestQueryService_NoEmbedder_FallsBackToKeyword(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.mustIngest(t, "wb1", salesOnly())

	res, err := env.query.Query(context.Background(), domain.Query{Text: "North"})
	require.NoError(t, err)

	require.NotEmpty(t, res.Results)
	assert.Equal(t, "Region: North | Quarter: Q1 | Revenue: 1200", res.Results[0].Chunk.Text)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "keyword-only")
	assert.False(t, env.query.VectorEnabled())
}

func TestQueryService_QueryEmbeddingFailure_Degrades(t *testing.T) {
	svc := newMockEmbeddingService()
	env := newTestEnv(t, svc, nil)
	env.mustIngest(t, "wb1", salesOnly())
	svc.setErr(errors.New("provider down"))

	res, err := env.query.Query(context.Background(), domain.Query{Text: "North"})
	require.NoError(t, err)

	assert.True(t, res.Partial)
	require.NotEmpty(t, res.Results)
	assert.Nil(t, res.Results[0].VectorScore)
	assert.NotNil(t, res.Results[0].KeywordScore)
}

func TestQueryService_Timeout_ReturnsPartial(t *testing.T) {
	svc := newMockEmbeddingService()
	env := newTestEnv(t, svc, nil)
	env.mustIngest(t, "wb1", salesOnly())
	svc.delay = time.Second

	res, err := env.query.Query(context.Background(), domain.Query{Text: "North", Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	assert.True(t, res.Partial)
	assert.NotEmpty(t, res.Warnings)
}

func TestQueryService_PendingChunks(t *testing.T) {
	svc := newMockEmbeddingService()
	svc.err = errors.New("provider down")
	env := newTestEnv(t, svc, nil)
	report := env.mustIngest(t, "wb1", salesOnly())
	require.Equal(t, domain.IngestPartial, report.Status)
	svc.setErr(nil)

	res, err := env.query.Query(context.Background(), domain.Query{Text: "North"})
	require.NoError(t, err)

	require.NotEmpty(t, res.Results, "pending chunks stay keyword-searchable")
	for _, rc := range res.Results {
		assert.Nil(t, rc.VectorScore, "pending chunks never appear in vector results")
	}
}

func TestQueryService_Rerank(t *testing.T) {
	reranker := &mockReranker{scores: map[string]float64{
		"Region: East | Quarter: Q3 | Revenue: 700": 0.99,
	}}
	env := newTestEnv(t, newMockEmbeddingService(), reranker)
	env.mustIngest(t, "wb1", salesOnly())

	res, err := env.query.Query(context.Background(), domain.Query{Text: "revenue", TopK: 2, Rerank: true})
	require.NoError(t, err)

	assert.True(t, res.Reranked)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "Region: East | Quarter: Q3 | Revenue: 700", res.Results[0].Chunk.Text)
	require.NotNil(t, res.Results[0].RerankScore)
	assert.Equal(t, 0.99, *res.Results[0].RerankScore)
	assert.True(t, env.query.RerankEnabled())
}

func TestQueryService_RerankUnavailable(t *testing.T) {
	env := newTestEnv(t, newMockEmbeddingService(), nil)
	env.mustIngest(t, "wb1", salesOnly())

	plain, err := env.query.Query(context.Background(), domain.Query{Text: "revenue", TopK: 2})
	require.NoError(t, err)
	res, err := env.query.Query(context.Background(), domain.Query{Text: "revenue", TopK: 2, Rerank: true})
	require.NoError(t, err)

	assert.False(t, res.Reranked)
	assert.Equal(t, resultIDs(plain), resultIDs(res))
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[len(res.Warnings)-1], "rerank")
}
