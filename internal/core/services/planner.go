package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/index"
	"github.com/custodia-labs/sheetdex/internal/logger"
)

// QueryEmbedder embeds query text. Implemented by Embedder.
type QueryEmbedder interface {
	Available() bool
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// PlanResult is the fused ranking produced by the planner.
type PlanResult struct {
	Ranked     []domain.RankedChunk
	Candidates int
	Partial    bool
	Warnings   []string
}

// PlanRequest is a validated planner input.
type PlanRequest struct {
	Text          string
	Filter        domain.Filter
	Weights       domain.Weights
	Normalization domain.Normalization
	// Limit is the number of fused results to return.
	Limit int
}

// Planner runs the metadata pre-filter, both sub-searches, per-list
// normalisation and weighted fusion.
type Planner struct {
	index    *index.Dual
	embedder QueryEmbedder
}

// NewPlanner creates a planner. embedder may be nil.
func NewPlanner(idx *index.Dual, embedder QueryEmbedder) *Planner {
	return &Planner{index: idx, embedder: embedder}
}

// Validate rejects invalid weights, filters or normalisation before any
// search runs.
func (p *Planner) Validate(req PlanRequest) error {
	if err := req.Weights.Validate(); err != nil {
		return err
	}
	if err := req.Filter.Validate(); err != nil {
		return err
	}
	if !req.Normalization.IsValid() {
		return fmt.Errorf("%w: unknown normalization %q", domain.ErrInvalidInput, req.Normalization)
	}
	return nil
}

// Plan returns the fused top-Limit ranking for the request.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if err := p.Validate(req); err != nil {
		return nil, err
	}

	res := &PlanResult{}
	w := req.Weights
	runVector := w.Vector > 0
	runKeyword := w.Keyword > 0

	var queryVec []float32
	if runVector {
		queryVec = p.queryVector(ctx, req.Text, res)
	}

	var vectorScores, keywordScores map[string]float64
	var candidates []string
	chunks := make(map[string]domain.Chunk)

	err := p.index.View(func(v *index.View) error {
		candidates = v.Candidates(req.Filter)
		res.Candidates = len(candidates)
		logger.Debug("Filter %s: %d candidates", req.Filter, len(candidates))

		var vectorErr, keywordErr error
		var wg sync.WaitGroup
		if queryVec != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer logger.Timed("Vector search")()
				vectorScores, vectorErr = v.VectorSearch(ctx, queryVec, candidates)
			}()
		}
		if runKeyword {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer logger.Timed("Keyword search")()
				keywordScores, keywordErr = v.KeywordSearch(ctx, req.Text, candidates)
			}()
		}
		wg.Wait()

		if vectorErr != nil {
			p.degrade(res, "vector", vectorErr)
			vectorScores = nil
		}
		if keywordErr != nil {
			p.degrade(res, "keyword", keywordErr)
			keywordScores = nil
		}
		logger.Debug("Sub-searches: %d vector hits, %d keyword hits", len(vectorScores), len(keywordScores))

		for id := range vectorScores {
			chunks[id], _ = v.Get(id)
		}
		for id := range keywordScores {
			if _, ok := chunks[id]; !ok {
				chunks[id], _ = v.Get(id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	normVector := Normalize(vectorScores, req.Normalization)
	normKeyword := Normalize(withMisses(keywordScores, candidates), req.Normalization)

	ranked := make([]domain.RankedChunk, 0, len(chunks))
	for id, c := range chunks {
		rc := domain.RankedChunk{Chunk: c}
		var nv, nk float64
		if s, ok := vectorScores[id]; ok {
			raw := s
			rc.VectorScore = &raw
			nv = normVector[id]
		}
		if s, ok := keywordScores[id]; ok {
			raw := s
			rc.KeywordScore = &raw
			nk = normKeyword[id]
		}
		rc.FusedScore = Fuse(w, nv, nk)
		ranked = append(ranked, rc)
	}

	SortRanked(ranked)
	if req.Limit > 0 && len(ranked) > req.Limit {
		ranked = ranked[:req.Limit]
	}
	res.Ranked = ranked
	return res, nil
}

// withMisses returns the keyword scores with a zero for every candidate
// that matched no query term, so that the weakest match normalises above
// a miss. With no matches at all the scores are returned unchanged.
func withMisses(scores map[string]float64, candidates []string) map[string]float64 {
	if len(scores) == 0 || len(scores) == len(candidates) {
		return scores
	}
	out := make(map[string]float64, len(candidates))
	for _, id := range candidates {
		out[id] = scores[id]
	}
	return out
}

// queryVector embeds the query, recording a warning and returning nil
// when vector search must be skipped.
func (p *Planner) queryVector(ctx context.Context, text string, res *PlanResult) []float32 {
	if p.embedder == nil || !p.embedder.Available() {
		res.Warnings = append(res.Warnings, "vector search unavailable: no embedding provider configured; keyword-only results")
		logger.Warn("Vector search unavailable: embedding service is nil")
		return nil
	}
	vec, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		p.degrade(res, "vector", err)
		return nil
	}
	logger.Debug("Query embedding: %d dimensions", len(vec))
	return vec
}

// degrade records a skipped sub-search. Deadline overruns mark the result
// partial; other failures fall back to the remaining signal.
func (p *Planner) degrade(res *PlanResult, which string, err error) {
	if errors.Is(err, domain.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		res.Partial = true
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s search did not complete: %v", which, domain.ErrTimeout))
		logger.Warn("%s search timed out: %v", capitalize(which), err)
		return
	}
	other := "vector"
	if which == "vector" {
		other = "keyword"
	}
	res.Partial = true
	res.Warnings = append(res.Warnings, fmt.Sprintf("%s search failed (%v); %s-only results", which, err, other))
	logger.Warn("%s search failed, using %s results only: %v", capitalize(which), other, err)
}

// SortRanked orders by fused score descending, then shallower level, then ID.
func SortRanked(ranked []domain.RankedChunk) {
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		if a.Chunk.Level != b.Chunk.Level {
			return a.Chunk.Level < b.Chunk.Level
		}
		return a.Chunk.ID < b.Chunk.ID
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
