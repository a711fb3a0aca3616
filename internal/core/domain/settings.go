package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies a provider for embeddings or re-ranking.
type AIProvider string

// Available AI providers.
const (
	// AIProviderNone disables the capability.
	AIProviderNone AIProvider = "none"

	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API or a compatible server.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderHTTP is a generic /rerank endpoint (Cohere, Jina, TEI).
	AIProviderHTTP AIProvider = "http"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderHTTP:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderNone:
		return "Disabled"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderHTTP:
		return "HTTP rerank endpoint"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider and batching configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the fixed vector size D of the index.
	Dimensions int

	// BatchSize is the maximum number of texts per provider call.
	BatchSize int

	// BatchWindow is how long the batcher waits to fill a batch.
	BatchWindow time.Duration

	// MaxAttempts bounds retries per batch.
	MaxAttempts int

	// RateLimit caps provider calls per second (0 = unlimited).
	RateLimit float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if e.Provider != AIProviderOllama && e.Provider != AIProviderOpenAI {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// RerankSettings holds re-rank provider configuration.
type RerankSettings struct {
	// Provider is the rerank provider (http or none).
	Provider AIProvider

	// Model is passed through to the endpoint.
	Model string

	// BaseURL is the endpoint base, e.g. http://localhost:8080.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Candidates is N, the number of fused results handed to the re-ranker.
	Candidates int
}

// IsConfigured returns true if a rerank endpoint is set up.
func (r RerankSettings) IsConfigured() bool {
	return r.Provider == AIProviderHTTP && r.BaseURL != ""
}

// QuerySettings holds query defaults.
type QuerySettings struct {
	// TopK is the default number of results.
	TopK int

	// Weights are the default fusion weights.
	Weights Weights

	// Normalization is the default score normalisation.
	Normalization Normalization

	// Timeout bounds a query when the caller sets none.
	Timeout time.Duration
}

// BM25Settings holds keyword scoring parameters.
type BM25Settings struct {
	K1 float64
	B  float64
}

// PoolSettings sizes the external-call worker pools.
type PoolSettings struct {
	// IngestSize is the number of concurrent embedding calls.
	IngestSize int

	// IngestQueue is the number of callers allowed to wait for an ingest worker.
	IngestQueue int

	// QuerySize is the number of concurrent query-time calls.
	QuerySize int

	// QueryQueue is the number of callers allowed to wait for a query worker.
	QueryQueue int

	// Nonblocking rejects submissions instead of waiting when a queue is full.
	Nonblocking bool
}

// StorageBackend selects where chunks or embeddings persist.
type StorageBackend string

// Available storage backends.
const (
	StorageSQLite   StorageBackend = "sqlite"
	StorageMemory   StorageBackend = "memory"
	StoragePostgres StorageBackend = "postgres"
)

// StorageSettings selects persistence backends.
type StorageSettings struct {
	// Backend stores chunks and workbook records (sqlite or memory).
	Backend StorageBackend

	// DataDir is where the sqlite database lives.
	DataDir string

	// EmbeddingCache stores embeddings (sqlite, postgres or memory).
	EmbeddingCache StorageBackend

	// PostgresDSN is used when EmbeddingCache is postgres.
	PostgresDSN string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	Rerank    RerankSettings
	Query     QuerySettings
	BM25      BM25Settings
	Pool      PoolSettings
	Storage   StorageSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// The embedding provider is left unconfigured; keyword search works without it.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:    AIProviderNone,
			Dimensions:  768, // nomic-embed-text default
			BatchSize:   32,
			BatchWindow: 50 * time.Millisecond,
			MaxAttempts: 4,
		},
		Rerank: RerankSettings{
			Provider:   AIProviderNone,
			Candidates: 20,
		},
		Query: QuerySettings{
			TopK:          10,
			Weights:       DefaultWeights(),
			Normalization: NormalizationMinMax,
			Timeout:       10 * time.Second,
		},
		BM25: BM25Settings{
			K1: 1.2,
			B:  0.75,
		},
		Pool: PoolSettings{
			IngestSize:  4,
			IngestQueue: 64,
			QuerySize:   16,
			QueryQueue:  256,
		},
		Storage: StorageSettings{
			Backend:        StorageSQLite,
			EmbeddingCache: StorageSQLite,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
