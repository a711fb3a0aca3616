package driven

import (
	"context"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// ChunkStore persists workbook records and their chunk trees.
// It is the durable copy of the arena the dual index is rebuilt from.
type ChunkStore interface {
	// SaveWorkbook creates or updates a workbook record.
	SaveWorkbook(ctx context.Context, wb *domain.WorkbookRecord) error

	// GetWorkbook retrieves a workbook record by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetWorkbook(ctx context.Context, id string) (*domain.WorkbookRecord, error)

	// ListWorkbooks returns all workbook records ordered by ID.
	ListWorkbooks(ctx context.Context) ([]domain.WorkbookRecord, error)

	// DeleteWorkbook removes a workbook record and all its chunks.
	DeleteWorkbook(ctx context.Context, id string) error

	// ApplyChanges saves the workbook record, upserts and removes chunks in
	// one transaction. Either every change is stored or none is.
	ApplyChanges(ctx context.Context, wb *domain.WorkbookRecord, upserts []domain.Chunk, removedIDs []string) error

	// ListChunks returns every chunk of a workbook ordered by level then ID.
	ListChunks(ctx context.Context, workbookID string) ([]domain.Chunk, error)

	// Close releases resources.
	Close() error
}
