package driven

import "context"

// EmbeddingStore caches embeddings keyed by chunk content hash.
// Identical content across chunks and workbooks shares one entry.
type EmbeddingStore interface {
	// Get returns the vector for a content hash.
	// The boolean is false when the hash is not cached.
	Get(ctx context.Context, hash string) ([]float32, bool, error)

	// GetMany returns the cached vectors for the given hashes.
	// Missing hashes are absent from the result.
	GetMany(ctx context.Context, hashes []string) (map[string][]float32, error)

	// PutIfAbsent stores a vector unless the hash is already present.
	// Returns true when this call wrote the entry.
	PutIfAbsent(ctx context.Context, hash string, vector []float32) (bool, error)

	// Count returns the number of cached embeddings.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}
