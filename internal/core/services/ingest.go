package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driving"
	"github.com/custodia-labs/sheetdex/internal/index"
	"github.com/custodia-labs/sheetdex/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService coordinates the hierarchy builder, embedder, stores and
// dual index. Distinct workbooks ingest in parallel; the same workbook is
// serialised.
type IngestService struct {
	chunks     driven.ChunkStore
	embeddings driven.EmbeddingStore
	embedder   *Embedder
	index      *index.Dual
	builder    *HierarchyBuilder
	locks      *keyedLock
	now        func() time.Time
}

// NewIngestService creates an ingest service.
func NewIngestService(
	chunks driven.ChunkStore,
	embeddings driven.EmbeddingStore,
	embedder *Embedder,
	idx *index.Dual,
) *IngestService {
	return &IngestService{
		chunks:     chunks,
		embeddings: embeddings,
		embedder:   embedder,
		index:      idx,
		builder:    NewHierarchyBuilder(),
		locks:      newKeyedLock(),
		now:        time.Now,
	}
}

// Ingest builds, diffs, embeds, persists and indexes one workbook.
func (s *IngestService) Ingest(ctx context.Context, workbookID string, wb *domain.ParsedWorkbook) (*domain.IngestReport, error) {
	start := s.now()
	report := &domain.IngestReport{
		RunID:      uuid.NewString(),
		WorkbookID: workbookID,
		Status:     domain.IngestFailed,
	}
	logger.Section("Ingest " + workbookID)
	logger.Debug("Run %s", report.RunID)

	unlock := s.locks.Lock(workbookID)
	defer unlock()

	tree, err := s.builder.Build(workbookID, wb)
	if err != nil {
		logger.Error("Ingest %s: %v", workbookID, err)
		return s.finish(report, start), err
	}

	previous, err := s.chunks.ListChunks(ctx, workbookID)
	if err != nil {
		return s.finish(report, start), fmt.Errorf("load previous generation: %w", err)
	}

	cs := s.builder.Diff(previous, tree)
	report.Added = len(cs.Added)
	report.Changed = len(cs.Changed)
	report.Touched = len(cs.Touched)
	report.Unchanged = len(cs.Unchanged)
	report.Removed = len(cs.Removed)
	logger.Debug("Diff: added=%d changed=%d touched=%d unchanged=%d removed=%d",
		report.Added, report.Changed, report.Touched, report.Unchanged, report.Removed)

	// Unchanged chunks still pending from an earlier run get another try.
	var retry []domain.Chunk
	for _, c := range cs.Unchanged {
		if s.index.IsPending(c.ID) {
			retry = append(retry, c)
		}
	}

	upserts := cs.Upserts()
	texts := make(map[string]string)
	for _, c := range upserts {
		texts[c.ContentHash] = c.Text
	}
	for _, c := range retry {
		texts[c.ContentHash] = c.Text
	}

	emb, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return s.finish(report, start), err
	}
	report.CacheHits = emb.CacheHits
	report.Embedded = emb.Embedded
	for h, ferr := range emb.Failed {
		logger.Debug("Embedding %s pending: %v", h, ferr)
	}

	// Past this point a cancelled caller still commits, leaving chunks pending.
	wctx := context.WithoutCancel(ctx)

	if !cs.Empty() || len(previous) == 0 {
		rec, err := s.workbookRecord(wctx, workbookID, wb, tree)
		if err != nil {
			return s.finish(report, start), err
		}
		if err := s.chunks.ApplyChanges(wctx, rec, upserts, cs.RemovedIDs()); err != nil {
			return s.finish(report, start), fmt.Errorf("persist chunks: %w", err)
		}
	}

	updates := make([]index.Update, len(upserts))
	for i, c := range upserts {
		updates[i] = index.Update{Chunk: c, Vector: emb.Vectors[c.ContentHash]}
	}
	if err := s.index.Apply(updates, cs.RemovedIDs()); err != nil {
		logger.Error("Index update for %s failed after persisting: %v", workbookID, err)
		return s.finish(report, start), fmt.Errorf("apply to index: %w", err)
	}
	for _, c := range retry {
		if vec, ok := emb.Vectors[c.ContentHash]; ok {
			if err := s.index.SetVector(c.ID, vec); err != nil {
				logger.Warn("Resolving pending chunk %s: %v", c.ID, err)
			}
		}
	}

	for _, c := range tree.Chunks {
		if s.index.IsPending(c.ID) {
			report.PendingIDs = append(report.PendingIDs, c.ID)
		}
	}
	report.Status = domain.IngestSuccess
	if len(report.PendingIDs) > 0 {
		report.Status = domain.IngestPartial
	}

	s.finish(report, start)
	logger.Info("Ingested %s: %s (%d chunks, %d embedded, %d cached, %d pending) in %s",
		workbookID, report.Status, tree.Len(), report.Embedded, report.CacheHits, len(report.PendingIDs), report.Duration)
	return report, nil
}

// Remove deletes a workbook and all of its chunks.
func (s *IngestService) Remove(ctx context.Context, workbookID string) (*domain.IngestReport, error) {
	start := s.now()
	report := &domain.IngestReport{
		RunID:      uuid.NewString(),
		WorkbookID: workbookID,
		Status:     domain.IngestFailed,
	}

	unlock := s.locks.Lock(workbookID)
	defer unlock()

	if _, err := s.chunks.GetWorkbook(ctx, workbookID); err != nil {
		return s.finish(report, start), fmt.Errorf("workbook %s: %w", workbookID, err)
	}
	if err := s.chunks.DeleteWorkbook(ctx, workbookID); err != nil {
		return s.finish(report, start), fmt.Errorf("delete workbook: %w", err)
	}

	report.Removed = len(s.index.RemoveWorkbook(workbookID))
	report.Status = domain.IngestSuccess
	logger.Info("Removed workbook %s (%d chunks)", workbookID, report.Removed)
	return s.finish(report, start), nil
}

// RetryPending re-attempts embeddings for every pending chunk.
func (s *IngestService) RetryPending(ctx context.Context) (*domain.PendingReport, error) {
	if !s.embedder.Available() {
		return nil, domain.ErrEmbeddingUnavailable
	}

	byWorkbook := make(map[string][]domain.Chunk)
	for _, id := range s.index.Pending() {
		if c, ok := s.index.Get(id); ok {
			byWorkbook[c.WorkbookID] = append(byWorkbook[c.WorkbookID], c)
		}
	}

	report := &domain.PendingReport{}
	for _, wbID := range sortedWorkbookIDs(byWorkbook) {
		if err := s.retryWorkbook(ctx, wbID, report); err != nil {
			return report, err
		}
	}
	sort.Strings(report.StillPending)
	logger.Info("Retry pending: %d attempted, %d resolved, %d still pending",
		report.Attempted, report.Resolved, len(report.StillPending))
	return report, nil
}

func (s *IngestService) retryWorkbook(ctx context.Context, workbookID string, report *domain.PendingReport) error {
	unlock := s.locks.Lock(workbookID)
	defer unlock()

	// Re-read under the lock; an ingestion may have resolved or replaced chunks.
	var pending []domain.Chunk
	for _, c := range s.index.Chunks(workbookID) {
		if s.index.IsPending(c.ID) {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	texts := make(map[string]string, len(pending))
	for _, c := range pending {
		texts[c.ContentHash] = c.Text
	}
	emb, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	report.Attempted += len(pending)
	for _, c := range pending {
		vec, ok := emb.Vectors[c.ContentHash]
		if !ok {
			report.StillPending = append(report.StillPending, c.ID)
			continue
		}
		if err := s.index.SetVector(c.ID, vec); err != nil {
			report.StillPending = append(report.StillPending, c.ID)
			continue
		}
		report.Resolved++
	}
	return nil
}

// Restore rebuilds the index from the chunk and embedding stores. A
// workbook whose stored tree is broken is skipped and reported as an
// IntegrityError; the others are loaded.
func (s *IngestService) Restore(ctx context.Context) error {
	logger.Section("Restore")
	defer logger.Timed("Restore")()
	s.index.Reset()

	records, err := s.chunks.ListWorkbooks(ctx)
	if err != nil {
		return fmt.Errorf("list workbooks: %w", err)
	}

	var problems []error
	for _, rec := range records {
		chunks, err := s.chunks.ListChunks(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("load workbook %s: %w", rec.ID, err)
		}
		if err := verifyStoredTree(chunks); err != nil {
			logger.Error("Workbook %s not restored: %v", rec.ID, err)
			problems = append(problems, err)
			continue
		}

		hashes := make([]string, 0, len(chunks))
		for _, c := range chunks {
			hashes = append(hashes, c.ContentHash)
		}
		vectors, err := s.embeddings.GetMany(ctx, hashes)
		if err != nil {
			return fmt.Errorf("load embeddings for %s: %w", rec.ID, err)
		}

		updates := make([]index.Update, len(chunks))
		for i, c := range chunks {
			vec := vectors[c.ContentHash]
			if len(vec) != s.index.Dimensions() {
				vec = nil
			}
			updates[i] = index.Update{Chunk: c, Vector: vec}
		}
		if err := s.index.Apply(updates, nil); err != nil {
			s.index.RemoveWorkbook(rec.ID)
			problems = append(problems, err)
			continue
		}
		logger.Debug("Restored %s: %d chunks", rec.ID, len(chunks))
	}

	stats := s.index.Stats()
	logger.Info("Restored %d workbooks, %d chunks (%d pending)", stats.Workbooks, stats.Chunks, stats.Pending)
	return errors.Join(problems...)
}

// Check scans the index for invariant violations.
func (s *IngestService) Check(ctx context.Context) (*domain.IntegrityReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.IntegrityReport{
		Chunks:   s.index.Stats().Chunks,
		Problems: s.index.Check(),
	}, nil
}

// Workbooks lists ingested workbooks with index statistics.
func (s *IngestService) Workbooks(ctx context.Context) ([]domain.WorkbookSummary, error) {
	records, err := s.chunks.ListWorkbooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workbooks: %w", err)
	}
	out := make([]domain.WorkbookSummary, len(records))
	for i, rec := range records {
		chunks, pending := s.index.WorkbookStats(rec.ID)
		out[i] = domain.WorkbookSummary{WorkbookRecord: rec, Chunks: chunks, Pending: pending}
	}
	return out, nil
}

func (s *IngestService) workbookRecord(ctx context.Context, workbookID string, wb *domain.ParsedWorkbook, tree *Tree) (*domain.WorkbookRecord, error) {
	now := s.now().UTC()
	rec := &domain.WorkbookRecord{
		ID:         workbookID,
		Name:       wb.Name,
		Source:     wb.Source,
		RootID:     tree.RootID,
		IngestedAt: now,
		UpdatedAt:  now,
	}
	existing, err := s.chunks.GetWorkbook(ctx, workbookID)
	switch {
	case err == nil:
		rec.IngestedAt = existing.IngestedAt
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("load workbook record: %w", err)
	}
	return rec, nil
}

func (s *IngestService) finish(report *domain.IngestReport, start time.Time) *domain.IngestReport {
	report.Duration = s.now().Sub(start)
	return report
}

// verifyStoredTree checks that every stored chunk has its parent stored too.
func verifyStoredTree(chunks []domain.Chunk) error {
	ids := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		ids[c.ID] = true
	}
	for _, c := range chunks {
		if !c.IsRoot() && !ids[c.ParentID] {
			return &domain.IntegrityError{ChunkID: c.ID, MissingID: c.ParentID, Reason: "orphan in stored tree"}
		}
	}
	return nil
}

func sortedWorkbookIDs(m map[string][]domain.Chunk) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
