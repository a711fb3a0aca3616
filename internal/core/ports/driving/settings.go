package driving

import "github.com/custodia-labs/sheetdex/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetRerankProvider configures the rerank endpoint.
	SetRerankProvider(provider domain.AIProvider, baseURL, model, apiKey string) error

	// SetWeights updates the default fusion weights.
	SetWeights(w domain.Weights) error

	// Validate checks that current settings are usable.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error

	// ValidateRerankConfig validates the current rerank configuration by pinging the endpoint.
	ValidateRerankConfig() error
}
