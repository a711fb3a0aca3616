// Package httprerank provides a reranker adapter for /rerank endpoints
// in the Cohere, Jina and Text Embeddings Inference formats.
package httprerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// Default configuration values.
const (
	DefaultTimeout = 15 * time.Second
	DefaultPath    = "/rerank"
)

// Config holds configuration for the HTTP reranker.
type Config struct {
	// BaseURL is the endpoint base, e.g. http://localhost:8080 or https://api.cohere.com/v2.
	BaseURL string

	// Model is passed through in the request body when set.
	Model string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout is the request timeout (default: 15s).
	Timeout time.Duration
}

// Reranker scores passages against a query through an HTTP /rerank endpoint.
type Reranker struct {
	client *http.Client
	url    string
	model  string
	apiKey string
}

// rerankRequest covers Cohere/Jina (documents) and TEI (texts).
type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Texts     []string `json:"texts"`
	TopN      int      `json:"top_n,omitempty"`
}

// rerankResult is one scored document. Cohere and Jina use relevance_score,
// TEI uses score.
type rerankResult struct {
	Index          int      `json:"index"`
	RelevanceScore *float64 `json:"relevance_score"`
	Score          *float64 `json:"score"`
}

// cohereResponse wraps results in an object.
type cohereResponse struct {
	Results []rerankResult `json:"results"`
}

// NewReranker creates a new HTTP reranker.
func NewReranker(cfg Config) (*Reranker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rerank: base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	url := strings.TrimRight(cfg.BaseURL, "/")
	if !strings.HasSuffix(url, DefaultPath) {
		url += DefaultPath
	}

	return &Reranker{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		url:    url,
		model:  cfg.Model,
		apiKey: cfg.APIKey,
	}, nil
}

// Score returns the relevance of text to query.
func (r *Reranker) Score(ctx context.Context, query, text string) (float64, error) {
	docs := []string{text}
	jsonBody, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: docs,
		Texts:     docs,
		TopN:      1,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(jsonBody))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, &domain.ProviderStatusError{Provider: "rerank", Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	results, err := decodeResults(body)
	if err != nil {
		return 0, err
	}
	for _, res := range results {
		if res.Index != 0 {
			continue
		}
		switch {
		case res.RelevanceScore != nil:
			return *res.RelevanceScore, nil
		case res.Score != nil:
			return *res.Score, nil
		}
	}
	return 0, fmt.Errorf("rerank: no score returned")
}

// decodeResults accepts either a bare array (TEI) or {"results": [...]}.
func decodeResults(body []byte) ([]rerankResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var results []rerankResult
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return results, nil
	}

	var resp cohereResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resp.Results, nil
}

// ModelName returns the configured model, or the endpoint URL when unset.
func (r *Reranker) ModelName() string {
	if r.model == "" {
		return r.url
	}
	return r.model
}

// Ping scores a trivial pair to validate the endpoint and credentials.
func (r *Reranker) Ping(ctx context.Context) error {
	if _, err := r.Score(ctx, "ping", "ping"); err != nil {
		return fmt.Errorf("rerank: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (r *Reranker) Close() error {
	return nil
}
