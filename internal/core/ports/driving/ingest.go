package driving

import (
	"context"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// IngestService brings parsed workbooks into the index.
type IngestService interface {
	// Ingest builds the chunk tree for a workbook, diffs it against the
	// stored generation, embeds changed content and applies the result.
	// A StructuralError leaves the index untouched.
	Ingest(ctx context.Context, workbookID string, wb *domain.ParsedWorkbook) (*domain.IngestReport, error)

	// Remove deletes a workbook and all of its chunks.
	Remove(ctx context.Context, workbookID string) (*domain.IngestReport, error)

	// RetryPending re-attempts embeddings for every EmbeddingPending chunk.
	RetryPending(ctx context.Context) (*domain.PendingReport, error)

	// Restore rebuilds the index from the stores.
	// Returns an IntegrityError if a stored chunk has no stored parent.
	Restore(ctx context.Context) error

	// Check scans the index for orphans and missing ancestors.
	Check(ctx context.Context) (*domain.IntegrityReport, error)

	// Workbooks lists ingested workbooks with index statistics.
	Workbooks(ctx context.Context) ([]domain.WorkbookSummary, error)
}
