package driven

import "context"

// Reranker scores a (query, passage) pair with a cross-encoder style model.
// This is an optional service - when nil, the re-rank stage is skipped.
type Reranker interface {
	// Score returns the relevance of text to query. Higher is better.
	Score(ctx context.Context, query, text string) (float64, error)

	// ModelName returns the name of the rerank model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
