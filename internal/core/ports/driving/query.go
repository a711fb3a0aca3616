package driving

import (
	"context"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// QueryService answers retrieval queries.
type QueryService interface {
	// Query runs hybrid retrieval, optional re-ranking and context assembly.
	// Invalid weights or filters are rejected before any search runs.
	Query(ctx context.Context, q domain.Query) (*domain.RetrievalResult, error)

	// VectorEnabled returns true if an embedding service is configured.
	VectorEnabled() bool

	// RerankEnabled returns true if a reranker is configured.
	RerankEnabled() bool
}
