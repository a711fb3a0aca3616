package driven

import "context"

// EmbeddingService turns chunk text into vectors for the vector index.
// It is optional: with no provider configured every chunk is indexed for
// keyword search only and stays pending until RetryPending runs with one.
//
// Adapters live under adapters/driven/embedding (ollama, openai).
type EmbeddingService interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order.
	// Failures should be domain.ProviderStatusError where the provider
	// reported a status, so callers can tell retryable errors apart.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the configured vector length. The index rejects others.
	Dimensions() int

	ModelName() string

	// Ping checks the provider is reachable and serves the model.
	Ping(ctx context.Context) error

	Close() error
}
