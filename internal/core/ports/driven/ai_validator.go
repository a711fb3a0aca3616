package driven

import "github.com/custodia-labs/sheetdex/internal/core/domain"

// AIConfigValidator probes provider settings before they are saved.
// Both methods return nil when the provider is not configured.
type AIConfigValidator interface {
	// ValidateEmbedding pings the provider and embeds a probe row. A vector
	// whose length differs from config.Dimensions yields
	// domain.ErrDimensionMismatch.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateRerank checks the rerank endpoint settings.
	ValidateRerank(config *domain.RerankSettings) error
}
