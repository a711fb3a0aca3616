package mcp

import (
	"context"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	result *domain.RetrievalResult
	err    error
	last   domain.Query
}

func (m *mockQueryService) Query(_ context.Context, q domain.Query) (*domain.RetrievalResult, error) {
	m.last = q
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.RetrievalResult{Query: q.Text, Results: []domain.RankedChunk{}}, nil
	}
	return m.result, nil
}

func (m *mockQueryService) VectorEnabled() bool { return true }

func (m *mockQueryService) RerankEnabled() bool { return false }

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	workbooks []domain.WorkbookSummary
	err       error
}

func (m *mockIngestService) Ingest(
	_ context.Context,
	_ string,
	_ *domain.ParsedWorkbook,
) (*domain.IngestReport, error) {
	return &domain.IngestReport{}, m.err
}

func (m *mockIngestService) Remove(_ context.Context, _ string) (*domain.IngestReport, error) {
	return &domain.IngestReport{}, m.err
}

func (m *mockIngestService) RetryPending(_ context.Context) (*domain.PendingReport, error) {
	return &domain.PendingReport{}, m.err
}

func (m *mockIngestService) Restore(_ context.Context) error {
	return m.err
}

func (m *mockIngestService) Check(_ context.Context) (*domain.IntegrityReport, error) {
	return &domain.IntegrityReport{}, m.err
}

func (m *mockIngestService) Workbooks(_ context.Context) ([]domain.WorkbookSummary, error) {
	return m.workbooks, m.err
}
