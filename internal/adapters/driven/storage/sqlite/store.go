package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sheetdex/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
	"github.com/custodia-labs/sheetdex/internal/logger"
)

// dbFile is the database file name inside the data directory.
const dbFile = "sheetdex.db"

// Store is a unified SQLite-based storage that provides access to
// the chunk and embedding store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sheetdex/data/sheetdex.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sheetdex", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)

	// WAL for concurrent readers; foreign_keys is per connection so it goes in the DSN.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ChunkStore returns a ChunkStore interface backed by this store.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// EmbeddingStore returns an EmbeddingStore interface backed by this store.
func (s *Store) EmbeddingStore() driven.EmbeddingStore {
	return &embeddingStore{store: s}
}

// migrate applies every migration newer than the recorded schema version.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	pending, err := migrations.Pending(currentVersion)
	if err != nil {
		return err
	}
	for _, m := range pending {
		logger.Debug("Applying migration %s", m.Name)
		if err := s.applyMigration(m.Version, m.SQL); err != nil {
			return fmt.Errorf("executing migration %s: %w", m.Name, err)
		}
	}

	return nil
}

func (s *Store) applyMigration(version int, content string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(content); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Chunk Store ====================

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertWorkbookSQL = `
	INSERT INTO workbooks (id, name, source, root_id, ingested_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		source = excluded.source,
		root_id = excluded.root_id,
		updated_at = excluded.updated_at
`

const upsertChunkSQL = `
	INSERT INTO chunks (id, workbook_id, level, text, parent_id, ordinal, metadata, content_hash, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		workbook_id = excluded.workbook_id,
		level = excluded.level,
		text = excluded.text,
		parent_id = excluded.parent_id,
		ordinal = excluded.ordinal,
		metadata = excluded.metadata,
		content_hash = excluded.content_hash
`

const selectChunkColumns = `
	SELECT id, workbook_id, level, text, parent_id, ordinal, metadata, content_hash, created_at
	FROM chunks
`

// SaveWorkbook creates or updates a workbook record.
func (s *chunkStore) SaveWorkbook(ctx context.Context, wb *domain.WorkbookRecord) error {
	if err := saveWorkbook(ctx, s.store.db, wb); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func saveWorkbook(ctx context.Context, db execer, wb *domain.WorkbookRecord) error {
	if wb == nil {
		return fmt.Errorf("%w: nil workbook record", domain.ErrInvalidInput)
	}
	now := time.Now().UTC()
	ingestedAt := wb.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = now
	}
	updatedAt := wb.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	_, err := db.ExecContext(ctx, upsertWorkbookSQL,
		wb.ID, wb.Name, wb.Source, wb.RootID, ingestedAt, updatedAt)
	return err
}

// GetWorkbook retrieves a workbook record by ID.
func (s *chunkStore) GetWorkbook(ctx context.Context, id string) (*domain.WorkbookRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, source, root_id, ingested_at, updated_at
		FROM workbooks WHERE id = ?
	`, id)

	wb, err := scanWorkbook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning workbook: %w", err)
	}
	return wb, nil
}

// ListWorkbooks returns all workbook records ordered by ID.
func (s *chunkStore) ListWorkbooks(ctx context.Context) ([]domain.WorkbookRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, source, root_id, ingested_at, updated_at
		FROM workbooks ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying workbooks: %w", err)
	}
	defer rows.Close()

	var workbooks []domain.WorkbookRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		wb, err := scanWorkbook(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning workbook: %w", err)
		}
		workbooks = append(workbooks, *wb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workbooks: %w", err)
	}
	return workbooks, nil
}

// DeleteWorkbook removes a workbook record and all its chunks.
func (s *chunkStore) DeleteWorkbook(ctx context.Context, id string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE workbook_id = ?", id); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM workbooks WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting workbook: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ApplyChanges saves the record, removes and upserts chunks in one transaction.
func (s *chunkStore) ApplyChanges(
	ctx context.Context,
	wb *domain.WorkbookRecord,
	upserts []domain.Chunk,
	removedIDs []string,
) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if wb != nil {
		if err := saveWorkbook(ctx, tx, wb); err != nil {
			return fmt.Errorf("saving workbook: %w", err)
		}
	}

	if len(removedIDs) > 0 {
		del, err := tx.PrepareContext(ctx, "DELETE FROM chunks WHERE id = ?")
		if err != nil {
			return fmt.Errorf("preparing delete: %w", err)
		}
		defer del.Close()
		for _, id := range removedIDs {
			if _, err := del.ExecContext(ctx, id); err != nil {
				return fmt.Errorf("removing chunk %s: %w", id, err)
			}
		}
	}

	if len(upserts) > 0 {
		stmt, err := tx.PrepareContext(ctx, upsertChunkSQL)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for i := range upserts {
			c := &upserts[i]
			metadataJSON, err := json.Marshal(c.Metadata)
			if err != nil {
				return fmt.Errorf("marshalling metadata: %w", err)
			}
			createdAt := c.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			if _, err := stmt.ExecContext(ctx, c.ID, c.WorkbookID, int(c.Level), c.Text,
				c.ParentID, c.Ordinal, string(metadataJSON), c.ContentHash, createdAt); err != nil {
				return fmt.Errorf("saving chunk %s: %w", c.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListChunks returns every chunk of a workbook ordered by level then ID.
func (s *chunkStore) ListChunks(ctx context.Context, workbookID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx,
		selectChunkColumns+" WHERE workbook_id = ? ORDER BY level, id", workbookID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// Close is a no-op; the owning Store closes the connection.
func (s *chunkStore) Close() error {
	return nil
}

// ==================== Embedding Store ====================

// embeddingStore implements driven.EmbeddingStore.
type embeddingStore struct {
	store *Store
}

var _ driven.EmbeddingStore = (*embeddingStore)(nil)

// lookupBatch bounds the number of placeholders in one IN clause.
const lookupBatch = 500

// Get returns the vector for a content hash.
func (s *embeddingStore) Get(ctx context.Context, hash string) ([]float32, bool, error) {
	var blob []byte
	err := s.store.db.QueryRowContext(ctx,
		"SELECT vector FROM embeddings WHERE hash = ?", hash).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("getting embedding: %w", err)
	}
	return bytesToFloat32Slice(blob), true, nil
}

// GetMany returns the cached vectors for the given hashes.
func (s *embeddingStore) GetMany(ctx context.Context, hashes []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(hashes))
	for start := 0; start < len(hashes); start += lookupBatch {
		end := min(start+lookupBatch, len(hashes))
		batch := hashes[start:end]

		args := make([]any, len(batch))
		for i, h := range batch {
			args[i] = h
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")

		rows, err := s.store.db.QueryContext(ctx,
			"SELECT hash, vector FROM embeddings WHERE hash IN ("+placeholders+")", args...)
		if err != nil {
			return nil, fmt.Errorf("querying embeddings: %w", err)
		}
		for rows.Next() {
			var hash string
			var blob []byte
			if err := rows.Scan(&hash, &blob); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning embedding: %w", err)
			}
			out[hash] = bytesToFloat32Slice(blob)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterating embeddings: %w", err)
		}
	}
	return out, nil
}

// PutIfAbsent stores a vector unless the hash is already present.
func (s *embeddingStore) PutIfAbsent(ctx context.Context, hash string, vector []float32) (bool, error) {
	if len(vector) == 0 {
		return false, fmt.Errorf("%w: empty vector for %s", domain.ErrInvalidInput, hash)
	}
	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO embeddings (hash, dims, vector) VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, len(vector), float32SliceToBytes(vector))
	if err != nil {
		return false, fmt.Errorf("saving embedding: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of cached embeddings.
func (s *embeddingStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return n, nil
}

// Close is a no-op; the owning Store closes the connection.
func (s *embeddingStore) Close() error {
	return nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanWorkbook(row scanner) (*domain.WorkbookRecord, error) {
	var wb domain.WorkbookRecord
	var ingestedAt, updatedAt sql.NullTime
	if err := row.Scan(&wb.ID, &wb.Name, &wb.Source, &wb.RootID, &ingestedAt, &updatedAt); err != nil {
		return nil, err
	}
	if ingestedAt.Valid {
		wb.IngestedAt = ingestedAt.Time.UTC()
	}
	if updatedAt.Valid {
		wb.UpdatedAt = updatedAt.Time.UTC()
	}
	return &wb, nil
}

func scanChunk(row scanner) (*domain.Chunk, error) {
	var c domain.Chunk
	var level int
	var metadataJSON string
	var createdAt sql.NullTime
	if err := row.Scan(&c.ID, &c.WorkbookID, &level, &c.Text, &c.ParentID,
		&c.Ordinal, &metadataJSON, &c.ContentHash, &createdAt); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	c.Level = domain.Level(level)
	if createdAt.Valid {
		c.CreatedAt = createdAt.Time.UTC()
	}

	if err := json.Unmarshal([]byte(metadataJSON), &c.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	restoreIntegers(c.Metadata)
	return &c, nil
}

// restoreIntegers turns whole JSON numbers back into ints so row_number
// round-trips with the type the builder wrote.
func restoreIntegers(meta map[string]any) {
	for k, v := range meta {
		f, ok := v.(float64)
		if !ok {
			continue
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			meta[k] = int(f)
		}
	}
}
