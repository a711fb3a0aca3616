package services

import (
	"fmt"
	"time"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyEmbedDims        = "embedding.dimensions"
	keyEmbedBatchSize   = "embedding.batch_size"
	keyEmbedBatchWindow = "embedding.batch_window_ms"
	keyEmbedAttempts    = "embedding.max_attempts"
	keyEmbedRateLimit   = "embedding.rate_limit"
	keyRerankProvider   = "rerank.provider"
	keyRerankBaseURL    = "rerank.base_url"
	keyRerankModel      = "rerank.model"
	keyRerankAPIKey     = "rerank.api_key"
	keyRerankCandidates = "rerank.candidates"
	keyQueryTopK        = "query.top_k"
	keyQueryVectorW     = "query.vector_weight"
	keyQueryKeywordW    = "query.keyword_weight"
	keyQueryNorm        = "query.normalization"
	keyQueryTimeout     = "query.timeout_ms"
	keyBM25K1           = "bm25.k1"
	keyBM25B            = "bm25.b"
	keyPoolIngestSize   = "pool.ingest_size"
	keyPoolIngestQueue  = "pool.ingest_queue"
	keyPoolQuerySize    = "pool.query_size"
	keyPoolQueryQueue   = "pool.query_queue"
	keyPoolNonblocking  = "pool.nonblocking"
	keyStorageBackend   = "storage.backend"
	keyStorageDataDir   = "storage.data_dir"
	keyCacheBackend     = "embedding_cache.backend"
	keyCachePostgresDSN = "embedding_cache.postgres_dsn"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:    s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:       s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:     s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:      s.configStore.GetString(keyEmbedAPIKey),
			Dimensions:  s.getInt(keyEmbedDims, defaults.Embedding.Dimensions),
			BatchSize:   s.getInt(keyEmbedBatchSize, defaults.Embedding.BatchSize),
			BatchWindow: s.getMillis(keyEmbedBatchWindow, defaults.Embedding.BatchWindow),
			MaxAttempts: s.getInt(keyEmbedAttempts, defaults.Embedding.MaxAttempts),
			RateLimit:   s.getFloat(keyEmbedRateLimit, defaults.Embedding.RateLimit),
		},
		Rerank: domain.RerankSettings{
			Provider:   s.getProvider(keyRerankProvider, defaults.Rerank.Provider),
			BaseURL:    s.configStore.GetString(keyRerankBaseURL),
			Model:      s.configStore.GetString(keyRerankModel),
			APIKey:     s.configStore.GetString(keyRerankAPIKey),
			Candidates: s.getInt(keyRerankCandidates, defaults.Rerank.Candidates),
		},
		Query: domain.QuerySettings{
			TopK: s.getInt(keyQueryTopK, defaults.Query.TopK),
			Weights: domain.Weights{
				Vector:  s.getFloatOrZero(keyQueryVectorW, defaults.Query.Weights.Vector),
				Keyword: s.getFloatOrZero(keyQueryKeywordW, defaults.Query.Weights.Keyword),
			},
			Normalization: s.getNormalization(defaults.Query.Normalization),
			Timeout:       s.getMillis(keyQueryTimeout, defaults.Query.Timeout),
		},
		BM25: domain.BM25Settings{
			K1: s.getFloat(keyBM25K1, defaults.BM25.K1),
			B:  s.getFloatOrZero(keyBM25B, defaults.BM25.B),
		},
		Pool: domain.PoolSettings{
			IngestSize:  s.getInt(keyPoolIngestSize, defaults.Pool.IngestSize),
			IngestQueue: s.getInt(keyPoolIngestQueue, defaults.Pool.IngestQueue),
			QuerySize:   s.getInt(keyPoolQuerySize, defaults.Pool.QuerySize),
			QueryQueue:  s.getInt(keyPoolQueryQueue, defaults.Pool.QueryQueue),
			Nonblocking: s.getBool(keyPoolNonblocking, defaults.Pool.Nonblocking),
		},
		Storage: domain.StorageSettings{
			Backend:        s.getBackend(keyStorageBackend, defaults.Storage.Backend),
			DataDir:        s.configStore.GetString(keyStorageDataDir),
			EmbeddingCache: s.getBackend(keyCacheBackend, defaults.Storage.EmbeddingCache),
			PostgresDSN:    s.configStore.GetString(keyCachePostgresDSN),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyEmbedBatchWindow, settings.Embedding.BatchWindow.Milliseconds()},
		{keyEmbedAttempts, settings.Embedding.MaxAttempts},
		{keyEmbedRateLimit, settings.Embedding.RateLimit},
		{keyRerankProvider, settings.Rerank.Provider.String()},
		{keyRerankBaseURL, settings.Rerank.BaseURL},
		{keyRerankModel, settings.Rerank.Model},
		{keyRerankCandidates, settings.Rerank.Candidates},
		{keyQueryTopK, settings.Query.TopK},
		{keyQueryVectorW, settings.Query.Weights.Vector},
		{keyQueryKeywordW, settings.Query.Weights.Keyword},
		{keyQueryNorm, settings.Query.Normalization.String()},
		{keyQueryTimeout, settings.Query.Timeout.Milliseconds()},
		{keyBM25K1, settings.BM25.K1},
		{keyBM25B, settings.BM25.B},
		{keyPoolIngestSize, settings.Pool.IngestSize},
		{keyPoolIngestQueue, settings.Pool.IngestQueue},
		{keyPoolQuerySize, settings.Pool.QuerySize},
		{keyPoolQueryQueue, settings.Pool.QueryQueue},
		{keyPoolNonblocking, settings.Pool.Nonblocking},
		{keyStorageBackend, string(settings.Storage.Backend)},
		{keyStorageDataDir, settings.Storage.DataDir},
		{keyCacheBackend, string(settings.Storage.EmbeddingCache)},
		{keyCachePostgresDSN, settings.Storage.PostgresDSN},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// API keys are only written when set so an empty form never erases them.
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if settings.Rerank.APIKey != "" {
		if err := s.configStore.Set(keyRerankAPIKey, settings.Rerank.APIKey); err != nil {
			return fmt.Errorf("save rerank api_key: %w", err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	valid := false
	for _, p := range domain.AllEmbeddingProviders() {
		if p == provider {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	// The index dimension follows the model.
	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = d
	}

	return s.Save(settings)
}

// SetRerankProvider configures the rerank endpoint.
func (s *SettingsService) SetRerankProvider(provider domain.AIProvider, baseURL, model, apiKey string) error {
	if provider != domain.AIProviderHTTP && provider != domain.AIProviderNone {
		return fmt.Errorf("provider %s does not support reranking", provider)
	}
	if provider == domain.AIProviderHTTP && baseURL == "" {
		return fmt.Errorf("base URL required for %s rerank provider", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Rerank.Provider = provider
	settings.Rerank.BaseURL = baseURL
	settings.Rerank.Model = model
	settings.Rerank.APIKey = apiKey

	return s.Save(settings)
}

// SetWeights updates the default fusion weights.
func (s *SettingsService) SetWeights(w domain.Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Query.Weights = w

	return s.Save(settings)
}

// Validate checks that current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if err := settings.Query.Weights.Validate(); err != nil {
		return err
	}
	if !settings.Query.Normalization.IsValid() {
		return fmt.Errorf("invalid normalization: %s", settings.Query.Normalization)
	}
	if settings.Embedding.Provider != domain.AIProviderNone && !settings.Embedding.IsConfigured() {
		return fmt.Errorf("embedding provider %q is not fully configured", settings.Embedding.Provider.Description())
	}
	if settings.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", settings.Embedding.Dimensions)
	}
	if settings.Rerank.Provider == domain.AIProviderHTTP && !settings.Rerank.IsConfigured() {
		return fmt.Errorf("rerank provider %q requires rerank.base_url", settings.Rerank.Provider.Description())
	}
	if settings.Storage.EmbeddingCache == domain.StoragePostgres && settings.Storage.PostgresDSN == "" {
		return fmt.Errorf("embedding_cache.backend postgres requires embedding_cache.postgres_dsn")
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateRerankConfig validates the current rerank configuration by pinging the endpoint.
func (s *SettingsService) ValidateRerankConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateRerank(&settings.Rerank)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val := s.configStore.GetFloat(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

// getFloatOrZero accepts an explicit zero, which is meaningful for weights.
func (s *SettingsService) getFloatOrZero(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getMillis(key string, defaultVal time.Duration) time.Duration {
	ms := s.configStore.GetInt(key)
	if ms <= 0 {
		return defaultVal
	}
	return time.Duration(ms) * time.Millisecond
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if provider != domain.AIProviderNone && !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getNormalization(defaultVal domain.Normalization) domain.Normalization {
	val := s.configStore.GetString(keyQueryNorm)
	if val == "" {
		return defaultVal
	}
	n := domain.Normalization(val)
	if !n.IsValid() {
		return defaultVal
	}
	return n
}

func (s *SettingsService) getBackend(key string, defaultVal domain.StorageBackend) domain.StorageBackend {
	switch b := domain.StorageBackend(s.configStore.GetString(key)); b {
	case domain.StorageSQLite, domain.StorageMemory, domain.StoragePostgres:
		return b
	default:
		return defaultVal
	}
}
