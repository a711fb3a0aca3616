package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// probeText is embedded once to confirm the model's vector size.
const probeText = "Region: North | Quarter: Q1 | Revenue: 1200"

// ConfigValidator checks provider settings before they are saved.
type ConfigValidator struct {
	timeout time.Duration
}

// NewConfigValidator creates a validator using the startup ping timeout.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{timeout: pingTimeout}
}

// ValidateEmbedding pings the provider, then embeds a sample row and
// compares the vector length with the configured index dimension. A model
// that disagrees would have every vector rejected at ingest time.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	if config == nil || !config.IsConfigured() {
		return nil
	}

	svc, err := CreateEmbeddingService(config)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		return err
	}
	vec, err := svc.Embed(ctx, probeText)
	if err != nil {
		return fmt.Errorf("probe embedding: %w", err)
	}
	if want := svc.Dimensions(); len(vec) != want {
		return fmt.Errorf("%w: model %s returns %d dimensions, settings expect %d",
			domain.ErrDimensionMismatch, svc.ModelName(), len(vec), want)
	}
	return nil
}

// ValidateRerank pings the rerank endpoint.
func (v *ConfigValidator) ValidateRerank(config *domain.RerankSettings) error {
	return ValidateRerankConfig(config)
}
