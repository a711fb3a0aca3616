// Package ai builds the embedding and rerank adapters from settings and
// probes them before the services use them.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/sheetdex/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/sheetdex/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/sheetdex/internal/adapters/driven/rerank/httprerank"
	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
)

const pingTimeout = 5 * time.Second

// pinger is the probe surface shared by embedders and rerankers.
type pinger interface {
	Ping(ctx context.Context) error
	Close() error
}

// probe pings p under pingTimeout and closes it when unreachable.
func probe(p pinger) error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		_ = p.Close()
		return err
	}
	return nil
}

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	Reranker         driven.Reranker
	Warnings         []string // Non-fatal issues that caused fallback.
	FellBack         bool     // True if fell back to keyword-only mode.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.Reranker != nil {
		r.Reranker.Close()
	}
}

// Init creates and validates both providers. Failures never abort startup:
// the provider is left nil and a warning explains the fallback.
func Init(settings *domain.AppSettings) *InitResult {
	result := &InitResult{}

	embed, err := CreateAndValidateEmbeddingService(&settings.Embedding)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
		result.FellBack = true
	}
	result.EmbeddingService = embed

	rerank, err := CreateAndValidateReranker(&settings.Rerank)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	}
	result.Reranker = rerank

	return result
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'sheetdex settings embedding' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}

	if svc == nil {
		return nil, nil
	}

	if err := probe(svc); err != nil {
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'sheetdex settings embedding' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}

	return svc, nil
}

// CreateAndValidateReranker creates a reranker and validates connectivity.
func CreateAndValidateReranker(settings *domain.RerankSettings) (driven.Reranker, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	r, err := CreateReranker(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRerankUnavailable, err)
	}
	if r == nil {
		return nil, nil
	}

	if err := probe(r); err != nil {
		return nil, fmt.Errorf("%w: endpoint unreachable (%w). Run 'sheetdex settings rerank' to fix",
			domain.ErrRerankUnavailable, err)
	}
	return r, nil
}

// ValidateRerankConfig validates a rerank configuration by creating a reranker and pinging it.
func ValidateRerankConfig(settings *domain.RerankSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	r, err := CreateReranker(settings)
	if err != nil {
		return err
	}
	if err := probe(r); err != nil {
		return err
	}
	return r.Close()
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)

	case domain.AIProviderHTTP:
		return nil, fmt.Errorf("http provider only supports reranking, use ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateReranker creates the reranker for the configured provider.
// Returns nil if reranking is not configured.
func CreateReranker(settings *domain.RerankSettings) (driven.Reranker, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderHTTP:
		r, err := httprerank.NewReranker(httprerank.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
			APIKey:  settings.APIKey,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported rerank provider: %s", settings.Provider)
	}
}

// dimensionsFor prefers the configured dimension, then the known model size.
func dimensionsFor(settings *domain.EmbeddingSettings) int {
	if settings.Dimensions > 0 {
		return settings.Dimensions
	}
	return domain.EmbeddingDimensions()[settings.Model]
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := dimensionsFor(settings)
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensionsFor(settings),
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}
