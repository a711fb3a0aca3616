package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driving"
	"github.com/custodia-labs/sheetdex/internal/index"
	"github.com/custodia-labs/sheetdex/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService answers retrieval queries: planner, optional reranker and
// context assembly.
type QueryService struct {
	index     *index.Dual
	planner   *Planner
	reranker  *Reranker
	assembler *ContextAssembler
	defaults  domain.QuerySettings

	rerankCandidates int
}

// NewQueryService creates a query service. embedder and reranker may be nil.
func NewQueryService(
	idx *index.Dual,
	embedder QueryEmbedder,
	reranker *Reranker,
	defaults domain.QuerySettings,
	rerankCandidates int,
) *QueryService {
	if defaults.TopK <= 0 {
		defaults.TopK = domain.DefaultAppSettings().Query.TopK
	}
	if defaults.Normalization == "" {
		defaults.Normalization = domain.NormalizationMinMax
	}
	if defaults.Weights == (domain.Weights{}) {
		defaults.Weights = domain.DefaultWeights()
	}
	return &QueryService{
		index:            idx,
		planner:          NewPlanner(idx, embedder),
		reranker:         reranker,
		assembler:        NewContextAssembler(),
		defaults:         defaults,
		rerankCandidates: rerankCandidates,
	}
}

// VectorEnabled returns true if an embedding service is configured.
func (s *QueryService) VectorEnabled() bool {
	return s.planner.embedder != nil && s.planner.embedder.Available()
}

// RerankEnabled returns true if a reranker is configured.
func (s *QueryService) RerankEnabled() bool {
	return s.reranker.Available()
}

// Query runs hybrid retrieval for q.
func (s *QueryService) Query(ctx context.Context, q domain.Query) (*domain.RetrievalResult, error) {
	start := time.Now()
	logger.Section("Query Execution")
	logger.Debug("Query: %q", q.Text)

	req := PlanRequest{
		Text:          strings.TrimSpace(q.Text),
		Filter:        q.Filter,
		Weights:       s.defaults.Weights,
		Normalization: s.defaults.Normalization,
	}
	if q.Weights != nil {
		req.Weights = *q.Weights
	}
	if q.Normalization != "" {
		req.Normalization = q.Normalization
	}
	if err := s.planner.Validate(req); err != nil {
		logger.Warn("Query rejected: %v", err)
		return nil, err
	}

	result := &domain.RetrievalResult{Query: req.Text, Results: []domain.RankedChunk{}}

	// Return empty for empty query
	if req.Text == "" {
		logger.Debug("Empty query, returning no results")
		result.Took = time.Since(start)
		return result, nil
	}

	topK := q.TopK
	if topK <= 0 {
		topK = s.defaults.TopK
	}
	req.Limit = topK
	rerank := q.Rerank
	if rerank && s.rerankCandidates > topK {
		req.Limit = s.rerankCandidates
	}
	logger.Debug("TopK: %d, planner limit: %d, weights: vector=%g keyword=%g, normalization: %s",
		topK, req.Limit, req.Weights.Vector, req.Weights.Keyword, req.Normalization)

	timeout := q.Timeout
	if timeout <= 0 {
		timeout = s.defaults.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	plan, err := s.planner.Plan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("plan query: %w", err)
	}
	result.Candidates = plan.Candidates
	result.Partial = plan.Partial
	result.Warnings = append(result.Warnings, plan.Warnings...)

	ranked := plan.Ranked
	if rerank {
		done := logger.Timed("Rerank")
		var warning string
		ranked, result.Reranked, warning = s.reranker.Rerank(ctx, req.Text, ranked, topK)
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
		done()
	} else {
		ranked = truncate(ranked, topK)
	}

	assembled, err := s.assemble(ranked)
	if err != nil {
		logger.Error("Context assembly failed: %v", err)
		return nil, err
	}
	result.Results = assembled
	result.Took = time.Since(start)

	logger.Info("Final results: %d (candidates=%d, partial=%t, reranked=%t) in %s",
		len(result.Results), result.Candidates, result.Partial, result.Reranked, result.Took)
	return result, nil
}

// assemble resolves ancestors under one read view. Chunks removed by a
// concurrent ingestion since planning are dropped.
func (s *QueryService) assemble(ranked []domain.RankedChunk) ([]domain.RankedChunk, error) {
	out := make([]domain.RankedChunk, 0, len(ranked))
	err := s.index.View(func(v *index.View) error {
		for _, rc := range ranked {
			current, ok := v.Get(rc.Chunk.ID)
			if !ok {
				logger.Debug("Chunk %s removed during query, dropping", rc.Chunk.ID)
				continue
			}
			rc.Chunk = current
			if err := s.assembler.Assemble(v, &rc); err != nil {
				return err
			}
			out = append(out, rc)
		}
		return nil
	})
	if err != nil {
		var ie *domain.IntegrityError
		if errors.As(err, &ie) {
			return nil, err
		}
		return nil, fmt.Errorf("assemble context: %w", err)
	}
	return out, nil
}
