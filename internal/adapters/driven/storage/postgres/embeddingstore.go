package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.EmbeddingStore = (*EmbeddingStore)(nil)

// EmbeddingStore caches embeddings in a pgvector column.
type EmbeddingStore struct {
	pool       *pgxpool.Pool
	dimensions int
	ownsPool   bool
}

// NewPool opens a connection pool for dsn.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is empty", domain.ErrInvalidInput)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the vector extension and the embeddings table.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive", domain.ErrInvalidInput)
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sheetdex_embeddings (
			hash TEXT PRIMARY KEY,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimensions),
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}

// Open connects to dsn, ensures the schema and returns a store that
// closes the pool on Close.
func Open(ctx context.Context, dsn string, dimensions int) (*EmbeddingStore, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, pool, dimensions); err != nil {
		pool.Close()
		return nil, err
	}
	s := NewEmbeddingStore(pool, dimensions)
	s.ownsPool = true
	return s, nil
}

// NewEmbeddingStore wraps an existing pool. The caller keeps ownership.
func NewEmbeddingStore(pool *pgxpool.Pool, dimensions int) *EmbeddingStore {
	return &EmbeddingStore{pool: pool, dimensions: dimensions}
}

// Get returns the vector for a content hash.
func (s *EmbeddingStore) Get(ctx context.Context, hash string) ([]float32, bool, error) {
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx,
		"SELECT embedding FROM sheetdex_embeddings WHERE hash = $1", hash).Scan(&vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get embedding: %w", err)
	}
	return vec.Slice(), true, nil
}

// GetMany returns the cached vectors for the given hashes.
func (s *EmbeddingStore) GetMany(ctx context.Context, hashes []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(hashes))
	if len(hashes) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		"SELECT hash, embedding FROM sheetdex_embeddings WHERE hash = ANY($1)", hashes)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		var vec pgvector.Vector
		if err := rows.Scan(&hash, &vec); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		out[hash] = vec.Slice()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return out, nil
}

// PutIfAbsent stores a vector unless the hash is already present.
func (s *EmbeddingStore) PutIfAbsent(ctx context.Context, hash string, vector []float32) (bool, error) {
	if s.dimensions > 0 && len(vector) != s.dimensions {
		return false, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vector), s.dimensions)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO sheetdex_embeddings (hash, embedding) VALUES ($1, $2)
		ON CONFLICT (hash) DO NOTHING
	`, hash, pgvector.NewVector(vector))
	if err != nil {
		return false, fmt.Errorf("insert embedding: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Count returns the number of cached embeddings.
func (s *EmbeddingStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM sheetdex_embeddings").Scan(&n); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

// Close releases the pool when the store opened it.
func (s *EmbeddingStore) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}
