package services

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
	"github.com/custodia-labs/sheetdex/internal/logger"
	"github.com/custodia-labs/sheetdex/internal/workerpool"
)

// Reranker re-scores fused candidates with a cross-encoder style provider.
type Reranker struct {
	provider driven.Reranker
	pool     *workerpool.Pool
}

// NewReranker creates a reranker. provider may be nil, in which case every
// call falls back to the fused order.
func NewReranker(provider driven.Reranker, pool *workerpool.Pool) *Reranker {
	return &Reranker{provider: provider, pool: pool}
}

// Available returns true if a provider is configured.
func (r *Reranker) Available() bool {
	return r != nil && r.provider != nil
}

// Rerank scores every (query, chunk) pair and returns the top topK by
// rerank score. On any failure the fused ranking is returned truncated,
// with a warning and reranked=false.
func (r *Reranker) Rerank(ctx context.Context, query string, ranked []domain.RankedChunk, topK int) (out []domain.RankedChunk, reranked bool, warning string) {
	fallback := truncate(ranked, topK)
	if !r.Available() {
		return fallback, false, domain.ErrRerankUnavailable.Error() + "; fused ranking returned"
	}
	if len(ranked) == 0 {
		return fallback, false, ""
	}

	scores := make([]float64, len(ranked))
	g, gctx := errgroup.WithContext(ctx)
	for i := range ranked {
		g.Go(func() error {
			return r.pool.Do(gctx, func(ctx context.Context) error {
				s, err := r.provider.Score(ctx, query, ranked[i].Chunk.Text)
				if err != nil {
					return fmt.Errorf("score %s: %w", ranked[i].Chunk.ID, err)
				}
				scores[i] = s
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warn("Rerank skipped: %v", err)
		return fallback, false, fmt.Sprintf("rerank skipped (%v); fused ranking returned", err)
	}

	out = make([]domain.RankedChunk, len(ranked))
	copy(out, ranked)
	for i := range out {
		s := scores[i]
		out[i].RerankScore = &s
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if *a.RerankScore != *b.RerankScore {
			return *a.RerankScore > *b.RerankScore
		}
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		if a.Chunk.Level != b.Chunk.Level {
			return a.Chunk.Level < b.Chunk.Level
		}
		return a.Chunk.ID < b.Chunk.ID
	})
	logger.Debug("Reranked %d candidates with %s", len(out), r.provider.ModelName())
	return truncate(out, topK), true, ""
}

func truncate(ranked []domain.RankedChunk, n int) []domain.RankedChunk {
	if n > 0 && len(ranked) > n {
		return ranked[:n]
	}
	return ranked
}
