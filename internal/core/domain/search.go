package domain

import (
	"fmt"
	"math"
	"time"
)

// Normalization selects how each score list is rescaled before fusion.
type Normalization string

// Available normalisations.
const (
	// NormalizationMinMax rescales to [0,1] over the candidate results.
	NormalizationMinMax Normalization = "minmax"

	// NormalizationZScore centres on the mean in units of standard deviation.
	NormalizationZScore Normalization = "zscore"

	// NormalizationNone uses raw scores.
	NormalizationNone Normalization = "none"
)

// IsValid returns true if the normalisation is recognised.
func (n Normalization) IsValid() bool {
	switch n {
	case NormalizationMinMax, NormalizationZScore, NormalizationNone:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (n Normalization) String() string {
	return string(n)
}

// Weights are the fusion weights for the two sub-searches.
type Weights struct {
	Vector  float64
	Keyword float64
}

// DefaultWeights returns the 0.5/0.5 split.
func DefaultWeights() Weights {
	return Weights{Vector: 0.5, Keyword: 0.5}
}

// Validate requires finite, non-negative weights with a positive sum.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Vector, w.Keyword} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: weights must be finite (vector=%g, keyword=%g)",
				ErrInvalidWeights, w.Vector, w.Keyword)
		}
	}
	if w.Vector < 0 || w.Keyword < 0 {
		return fmt.Errorf("%w: weights must be non-negative (vector=%g, keyword=%g)",
			ErrInvalidWeights, w.Vector, w.Keyword)
	}
	if w.Vector+w.Keyword <= 0 {
		return fmt.Errorf("%w: weights must sum to a positive number", ErrInvalidWeights)
	}
	return nil
}

// Query is a retrieval request.
type Query struct {
	// Text is the natural-language query.
	Text string

	// Filter restricts candidates by exact metadata match. Nil matches all.
	Filter Filter

	// TopK is the number of results to return (default from settings).
	TopK int

	// Weights overrides the default fusion weights when non-nil.
	Weights *Weights

	// Rerank requests the re-rank stage.
	Rerank bool

	// Normalization overrides the configured normalisation when set.
	Normalization Normalization

	// Timeout bounds the whole query when positive.
	Timeout time.Duration
}

// RankedChunk is one entry of a retrieval result.
type RankedChunk struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// FusedScore is the weighted sum of normalised sub-scores.
	FusedScore float64

	// VectorScore is the raw cosine similarity, when the chunk had one.
	VectorScore *float64

	// KeywordScore is the raw BM25 score, when the chunk matched.
	KeywordScore *float64

	// RerankScore is set when the re-rank stage ran.
	RerankScore *float64

	// Ancestors is the chain from the workbook root down to the parent.
	Ancestors []Chunk

	// Context is the citation-ready block for answer generation.
	Context string

	// Citation is a short human-readable location, e.g. "Q1.xlsx › Sales › row 3".
	Citation string
}

// RetrievalResult is the ranked answer to a Query.
type RetrievalResult struct {
	// Query echoes the query text.
	Query string

	// Results are ordered best first.
	Results []RankedChunk

	// Candidates is the number of chunks that passed the filter.
	Candidates int

	// Partial is set when a sub-search did not complete (timeout or failure).
	Partial bool

	// Reranked is set when the re-rank stage reordered results.
	Reranked bool

	// Warnings explains degradations (skipped rerank, keyword-only, timeout).
	Warnings []string

	// Took is the wall-clock duration of the query.
	Took time.Duration
}
