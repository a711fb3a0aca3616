package domain

import "time"

// IngestStatus summarises the outcome of an ingestion.
type IngestStatus string

// Ingestion outcomes.
const (
	// IngestSuccess means every changed chunk was indexed with an embedding.
	IngestSuccess IngestStatus = "success"

	// IngestPartial means the index was updated but some chunks are EmbeddingPending.
	IngestPartial IngestStatus = "partial"

	// IngestFailed means nothing was changed.
	IngestFailed IngestStatus = "failed"
)

// IngestReport is returned by the ingestion entry point.
type IngestReport struct {
	// RunID identifies this ingestion run in logs.
	RunID string

	// WorkbookID is the external workbook identifier.
	WorkbookID string

	// Status is success, partial or failed.
	Status IngestStatus

	// Added, Changed, Touched, Unchanged and Removed count chunks per diff class.
	Added     int
	Changed   int
	Touched   int
	Unchanged int
	Removed   int

	// Embedded is the number of distinct content hashes sent to the provider.
	Embedded int

	// CacheHits is the number of distinct content hashes served from the cache.
	CacheHits int

	// PendingIDs lists chunks left in EmbeddingPending state.
	PendingIDs []string

	// Duration is the wall-clock time of the ingestion.
	Duration time.Duration
}

// PendingReport is returned by a retry pass over pending chunks.
type PendingReport struct {
	// Attempted is the number of pending chunks considered.
	Attempted int

	// Resolved is the number that now have embeddings.
	Resolved int

	// StillPending lists chunks that remain pending.
	StillPending []string
}

// IntegrityReport lists invariant violations found by a consistency check.
type IntegrityReport struct {
	// Chunks is the number of chunks inspected.
	Chunks int

	// Problems holds one IntegrityError per violation.
	Problems []IntegrityError
}

// OK returns true when no problems were found.
func (r IntegrityReport) OK() bool {
	return len(r.Problems) == 0
}
