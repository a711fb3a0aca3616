package cli

import (
	"context"
	"sync"
	"testing"

	"github.com/spf13/pflag"

	"github.com/custodia-labs/sheetdex/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/services"
	"github.com/custodia-labs/sheetdex/internal/parsers"
)

type ingestCall struct {
	id string
	wb *domain.ParsedWorkbook
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	mu        sync.Mutex
	ingested  []ingestCall
	removed   []string
	report    *domain.IngestReport
	workbooks []domain.WorkbookSummary
	pending   *domain.PendingReport
	integrity *domain.IntegrityReport
	err       error
	removeErr error
}

func (m *mockIngestService) Ingest(
	_ context.Context,
	id string,
	wb *domain.ParsedWorkbook,
) (*domain.IngestReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingested = append(m.ingested, ingestCall{id: id, wb: wb})
	if m.err != nil {
		return nil, m.err
	}
	if m.report != nil {
		return m.report, nil
	}
	return &domain.IngestReport{WorkbookID: id, Status: domain.IngestSuccess, Added: 4}, nil
}

func (m *mockIngestService) Remove(_ context.Context, id string) (*domain.IngestReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, id)
	if m.removeErr != nil {
		return nil, m.removeErr
	}
	return &domain.IngestReport{WorkbookID: id, Status: domain.IngestSuccess, Removed: 10}, nil
}

func (m *mockIngestService) RetryPending(_ context.Context) (*domain.PendingReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.pending == nil {
		return &domain.PendingReport{}, nil
	}
	return m.pending, nil
}

func (m *mockIngestService) Restore(_ context.Context) error {
	return m.err
}

func (m *mockIngestService) Check(_ context.Context) (*domain.IntegrityReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.integrity == nil {
		return &domain.IntegrityReport{}, nil
	}
	return m.integrity, nil
}

func (m *mockIngestService) Workbooks(_ context.Context) ([]domain.WorkbookSummary, error) {
	return m.workbooks, m.err
}

func (m *mockIngestService) calls() []ingestCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ingestCall(nil), m.ingested...)
}

func (m *mockIngestService) removedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removed...)
}

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
	if m.result != nil {
		return m.result, nil
	}
	return &domain.RetrievalResult{Query: q.Text, Results: []domain.RankedChunk{}}, nil
}

func (m *mockQueryService) VectorEnabled() bool { return false }

func (m *mockQueryService) RerankEnabled() bool { return false }

type testServices struct {
	ingest   *mockIngestService
	query    *mockQueryService
	settings *services.SettingsService
}

// setupTestServices installs mocks and a real settings service over an
// in-memory config store. The returned func restores the previous state.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()

	prevIngest, prevQuery, prevSettings, prevParsers := ingestService, queryService, settingsService, parserRegistry

	ts := &testServices{
		ingest:   &mockIngestService{},
		query:    &mockQueryService{},
		settings: services.NewSettingsService(memory.NewConfigStore(), nil),
	}
	SetServices(Services{
		Ingest:   ts.ingest,
		Query:    ts.query,
		Settings: ts.settings,
		Parsers:  parsers.DefaultRegistry(),
	})

	t.Cleanup(func() {
		ingestService, queryService, settingsService, parserRegistry = prevIngest, prevQuery, prevSettings, prevParsers
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		resetFlags()
	})

	return ts
}

// resetFlags restores every command flag to its default so tests sharing
// rootCmd do not leak state into each other.
func resetFlags() {
	queryFilters = map[string]string{}
	for _, c := range append(rootCmd.Commands(), rootCmd) {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Value.Type() != "stringToString" {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
		for _, sub := range c.Commands() {
			sub.Flags().VisitAll(func(f *pflag.Flag) {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			})
		}
	}
}
