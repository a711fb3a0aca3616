package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
)

// Ensure ChunkStore implements the interface.
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore is an in-memory implementation of driven.ChunkStore.
type ChunkStore struct {
	mu        sync.RWMutex
	workbooks map[string]domain.WorkbookRecord
	chunks    map[string]map[string]domain.Chunk // workbook ID -> chunk ID -> chunk
}

// NewChunkStore creates a new in-memory chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		workbooks: make(map[string]domain.WorkbookRecord),
		chunks:    make(map[string]map[string]domain.Chunk),
	}
}

// SaveWorkbook stores or updates a workbook record.
func (s *ChunkStore) SaveWorkbook(_ context.Context, wb *domain.WorkbookRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workbooks[wb.ID] = *wb
	return nil
}

// GetWorkbook retrieves a workbook record by ID.
func (s *ChunkStore) GetWorkbook(_ context.Context, id string) (*domain.WorkbookRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wb, ok := s.workbooks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &wb, nil
}

// ListWorkbooks returns all workbook records ordered by ID.
func (s *ChunkStore) ListWorkbooks(_ context.Context) ([]domain.WorkbookRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.WorkbookRecord, 0, len(s.workbooks))
	for _, wb := range s.workbooks {
		out = append(out, wb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteWorkbook removes a workbook record and its chunks.
func (s *ChunkStore) DeleteWorkbook(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workbooks, id)
	delete(s.chunks, id)
	return nil
}

// ApplyChanges saves the record when non-nil and applies chunk upserts and
// removals. The store lock makes the whole change atomic.
func (s *ChunkStore) ApplyChanges(_ context.Context, wb *domain.WorkbookRecord, upserts []domain.Chunk, removedIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wb != nil {
		s.workbooks[wb.ID] = *wb
	}
	for _, c := range upserts {
		chunks, ok := s.chunks[c.WorkbookID]
		if !ok {
			chunks = make(map[string]domain.Chunk)
			s.chunks[c.WorkbookID] = chunks
		}
		chunks[c.ID] = c.Clone()
	}
	for _, id := range removedIDs {
		for _, chunks := range s.chunks {
			delete(chunks, id)
		}
	}
	return nil
}

// ListChunks returns every chunk of a workbook ordered by level then ID.
func (s *ChunkStore) ListChunks(_ context.Context, workbookID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := s.chunks[workbookID]
	out := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Close is a no-op for the memory store.
func (s *ChunkStore) Close() error {
	return nil
}
