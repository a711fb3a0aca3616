package ai

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// ollamaStub answers /api/tags and /api/embed with a vector of dims values.
func ollamaStub(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"all-minilm:latest"}]}`))
		case "/api/embed":
			vec := "["
			for i := range dims {
				if i > 0 {
					vec += ","
				}
				vec += "0.1"
			}
			_, _ = w.Write([]byte(`{"embeddings":[` + vec + `]]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConfigValidator_ValidateEmbedding_NotConfigured(t *testing.T) {
	validator := NewConfigValidator()

	assert.NoError(t, validator.ValidateEmbedding(nil))
	assert.NoError(t, validator.ValidateEmbedding(&domain.EmbeddingSettings{Model: "test-model"}))
}

func TestConfigValidator_ValidateEmbedding_MatchingDimensions(t *testing.T) {
	srv := ollamaStub(t, 4)

	err := NewConfigValidator().ValidateEmbedding(&domain.EmbeddingSettings{
		Provider:   domain.AIProviderOllama,
		Model:      "all-minilm",
		BaseURL:    srv.URL,
		Dimensions: 4,
	})

	assert.NoError(t, err)
}

func TestConfigValidator_ValidateEmbedding_DimensionMismatch(t *testing.T) {
	srv := ollamaStub(t, 3)

	err := NewConfigValidator().ValidateEmbedding(&domain.EmbeddingSettings{
		Provider:   domain.AIProviderOllama,
		Model:      "all-minilm",
		BaseURL:    srv.URL,
		Dimensions: 384,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "returns 3 dimensions, settings expect 384")
}

func TestConfigValidator_ValidateEmbedding_Unreachable(t *testing.T) {
	err := NewConfigValidator().ValidateEmbedding(&domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		Model:    "all-minilm",
		BaseURL:  "http://127.0.0.1:1",
	})

	assert.Error(t, err)
}

func TestConfigValidator_ValidateRerank(t *testing.T) {
	validator := NewConfigValidator()

	assert.NoError(t, validator.ValidateRerank(nil))
	// Without a base URL the provider is not configured, so nothing is checked.
	assert.NoError(t, validator.ValidateRerank(&domain.RerankSettings{Provider: domain.AIProviderHTTP}))
}
