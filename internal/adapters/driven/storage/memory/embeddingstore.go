package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
)

// Ensure EmbeddingStore implements the interface.
var _ driven.EmbeddingStore = (*EmbeddingStore)(nil)

// EmbeddingStore is an in-memory implementation of driven.EmbeddingStore.
type EmbeddingStore struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewEmbeddingStore creates a new in-memory embedding store.
func NewEmbeddingStore() *EmbeddingStore {
	return &EmbeddingStore{vectors: make(map[string][]float32)}
}

// Get returns the vector for a content hash.
func (s *EmbeddingStore) Get(_ context.Context, hash string) ([]float32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vectors[hash]
	return v, ok, nil
}

// GetMany returns the cached vectors for the given hashes.
func (s *EmbeddingStore) GetMany(_ context.Context, hashes []string) (map[string][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]float32, len(hashes))
	for _, h := range hashes {
		if v, ok := s.vectors[h]; ok {
			out[h] = v
		}
	}
	return out, nil
}

// PutIfAbsent stores a vector unless the hash is already present.
func (s *EmbeddingStore) PutIfAbsent(_ context.Context, hash string, vector []float32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vectors[hash]; ok {
		return false, nil
	}
	cp := make([]float32, len(vector))
	copy(cp, vector)
	s.vectors[hash] = cp
	return true, nil
}

// Count returns the number of cached embeddings.
func (s *EmbeddingStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

// Close is a no-op for the memory store.
func (s *EmbeddingStore) Close() error {
	return nil
}
