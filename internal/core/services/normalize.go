package services

import (
	"math"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// Normalize rescales one sub-search's scores so lists from different
// scorers can be fused. Equal scores (including a single result) all
// normalise to 1.
func Normalize(scores map[string]float64, method domain.Normalization) map[string]float64 {
	out := make(map[string]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	switch method {
	case domain.NormalizationNone:
		for id, s := range scores {
			out[id] = s
		}

	case domain.NormalizationZScore:
		var sum float64
		for _, s := range scores {
			sum += s
		}
		mean := sum / float64(len(scores))
		var variance float64
		for _, s := range scores {
			variance += (s - mean) * (s - mean)
		}
		std := math.Sqrt(variance / float64(len(scores)))
		for id, s := range scores {
			if std == 0 {
				out[id] = 1
				continue
			}
			out[id] = (s - mean) / std
		}

	default: // min-max
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, s := range scores {
			lo = math.Min(lo, s)
			hi = math.Max(hi, s)
		}
		for id, s := range scores {
			if hi == lo {
				out[id] = 1
				continue
			}
			out[id] = (s - lo) / (hi - lo)
		}
	}
	return out
}

// Fuse combines normalised scores. A missing signal contributes 0.
func Fuse(w domain.Weights, vector, keyword float64) float64 {
	return w.Vector*vector + w.Keyword*keyword
}
