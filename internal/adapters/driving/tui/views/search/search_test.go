package search

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// MockQueryService implements driving.QueryService for testing.
type MockQueryService struct {
	QueryFunc func(ctx context.Context, q domain.Query) (*domain.RetrievalResult, error)
	calls     []domain.Query
}

func (m *MockQueryService) Query(ctx context.Context, q domain.Query) (*domain.RetrievalResult, error) {
	m.calls = append(m.calls, q)
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, q)
	}
	return &domain.RetrievalResult{Query: q.Text}, nil
}

func (m *MockQueryService) VectorEnabled() bool { return true }

func (m *MockQueryService) RerankEnabled() bool { return true }

func testResult() *domain.RetrievalResult {
	return &domain.RetrievalResult{
		Query:      "widget",
		Candidates: 9,
		Partial:    true,
		Warnings:   []string{"vector search unavailable: no embedding provider configured; keyword-only results"},
		Results: []domain.RankedChunk{
			{Chunk: domain.Chunk{ID: "c1", Text: "Product: Widget"}, FusedScore: 1, Citation: "Q1.xlsx > Sales > section 1 > row 1"},
			{Chunk: domain.Chunk{ID: "c2", Text: "Product: Gadget"}, FusedScore: 0.3, Citation: "Q1.xlsx > Sales > section 1 > row 2"},
		},
	}
}

func keyRune(r string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(r)}
}

func newReadyView(svc *MockQueryService) *View {
	v := NewView(nil, nil, svc)
	v.SetDimensions(120, 30)
	return v
}

// submit types a query, presses enter and feeds the result back.
func submit(t *testing.T, v *View, text string) {
	t.Helper()
	v.SetQuery(text)
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	v.Update(cmd())
}

func TestNewView(t *testing.T) {
	v := NewView(nil, nil, &MockQueryService{})

	require.NotNil(t, v)
	assert.False(t, v.Ready())
	assert.True(t, v.InputFocused())
	assert.Empty(t, v.Query())
	assert.Nil(t, v.Scope())
	assert.False(t, v.RerankEnabled())
	assert.NotNil(t, v.Init())
	assert.Equal(t, "Initialising...", v.View())
}

func TestView_WithContext(t *testing.T) {
	v := NewView(nil, nil, nil)
	type contextKey string
	ctx := context.WithValue(context.Background(), contextKey("key"), "value")

	assert.Equal(t, v, v.WithContext(ctx))
	assert.Equal(t, ctx, v.ctx)
}

func TestView_TypingGoesToInput(t *testing.T) {
	v := newReadyView(&MockQueryService{})

	v.Update(keyRune("j"))
	v.Update(keyRune("x"))

	assert.Equal(t, "jx", v.Query())
	assert.True(t, v.InputFocused())
}

func TestView_EnterWithEmptyQueryDoesNothing(t *testing.T) {
	svc := &MockQueryService{}
	v := newReadyView(svc)
	v.SetQuery("   ")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.True(t, v.InputFocused())
	assert.Empty(t, svc.calls)
}

func TestView_SubmitQuery(t *testing.T) {
	svc := &MockQueryService{QueryFunc: func(context.Context, domain.Query) (*domain.RetrievalResult, error) {
		return testResult(), nil
	}}
	v := newReadyView(svc)

	submit(t, v, " widget ")

	require.Len(t, svc.calls, 1)
	assert.Equal(t, "widget", svc.calls[0].Text)
	assert.False(t, svc.calls[0].Rerank)
	assert.Nil(t, svc.calls[0].Filter)

	assert.False(t, v.InputFocused())
	assert.Len(t, v.Results(), 2)
	assert.Equal(t, status.StateResults, v.StatusBar().State())
	assert.True(t, v.StatusBar().Partial())
	assert.Contains(t, v.StatusBar().Message(), "keyword-only")

	view := v.View()
	assert.Contains(t, view, "Q1.xlsx > Sales > section 1 > row 1")
	assert.Contains(t, view, "[partial]")
}

func TestView_QueryError(t *testing.T) {
	svc := &MockQueryService{QueryFunc: func(context.Context, domain.Query) (*domain.RetrievalResult, error) {
		return nil, domain.ErrInvalidFilter
	}}
	v := newReadyView(svc)

	submit(t, v, "revenue")

	assert.ErrorIs(t, v.Err(), domain.ErrInvalidFilter)
	assert.Equal(t, status.StateError, v.StatusBar().State())
	assert.Contains(t, v.View(), "invalid filter")
}

func TestView_NilQueryService(t *testing.T) {
	v := NewView(nil, nil, nil)
	v.SetDimensions(120, 30)
	v.SetQuery("revenue")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	msg := cmd()

	assert.Equal(t, messages.ErrorOccurred{Err: ErrNoQueryService}, msg)
	v.Update(msg)
	assert.ErrorIs(t, v.Err(), ErrNoQueryService)
}

func TestView_ResultsNavigationAndOpen(t *testing.T) {
	svc := &MockQueryService{QueryFunc: func(context.Context, domain.Query) (*domain.RetrievalResult, error) {
		return testResult(), nil
	}}
	v := newReadyView(svc)
	submit(t, v, "widget")

	v.Update(keyRune("j"))
	assert.Equal(t, 1, v.SelectedIndex())
	v.Update(tea.KeyMsg{Type: tea.KeyUp})
	v.Update(tea.KeyMsg{Type: tea.KeyDown})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(messages.ResultSelected)
	require.True(t, ok)
	assert.Equal(t, "c2", msg.Result.Chunk.ID)
}

func TestView_NewQuery(t *testing.T) {
	v := newReadyView(&MockQueryService{})
	submit(t, v, "widget")

	v.Update(keyRune("n"))

	assert.True(t, v.InputFocused())
	assert.Empty(t, v.Query())
}

func TestView_RerankToggleRequeries(t *testing.T) {
	svc := &MockQueryService{}
	v := newReadyView(svc)
	submit(t, v, "widget")

	_, cmd := v.Update(keyRune("r"))
	require.NotNil(t, cmd)
	cmd()

	assert.True(t, v.RerankEnabled())
	require.Len(t, svc.calls, 2)
	assert.True(t, svc.calls[1].Rerank)
	assert.Contains(t, v.View(), "Rerank: on")
}

func TestView_ScopeFilter(t *testing.T) {
	svc := &MockQueryService{}
	v := newReadyView(svc)
	v.SetScope(&domain.WorkbookSummary{WorkbookRecord: domain.WorkbookRecord{ID: "/data/Q1.xlsx"}})

	submit(t, v, "widget")

	require.Len(t, svc.calls, 1)
	assert.Equal(t, domain.Filter{domain.MetaWorkbookID: "/data/Q1.xlsx"}, svc.calls[0].Filter)
	assert.Contains(t, v.View(), "Scope: /data/Q1.xlsx")

	// x drops the scope and re-runs the query over every workbook.
	_, cmd := v.Update(keyRune("x"))
	require.NotNil(t, cmd)
	cmd()

	assert.Nil(t, v.Scope())
	require.Len(t, svc.calls, 2)
	assert.Nil(t, svc.calls[1].Filter)
}

func TestView_LevelFilterCycles(t *testing.T) {
	svc := &MockQueryService{}
	v := newReadyView(svc)
	v.SetScope(&domain.WorkbookSummary{WorkbookRecord: domain.WorkbookRecord{ID: "q1"}})
	submit(t, v, "widget")

	_, cmd := v.Update(keyRune("l"))
	require.NotNil(t, cmd)
	cmd()

	require.NotNil(t, v.Level())
	assert.Equal(t, domain.LevelWorkbook, *v.Level())
	require.Len(t, svc.calls, 2)
	assert.Equal(t, domain.Filter{domain.MetaWorkbookID: "q1", domain.MetaLevel: "workbook"}, svc.calls[1].Filter)
	assert.Contains(t, v.View(), "Level: workbook")

	for range 3 {
		v.Update(keyRune("l"))
	}
	require.NotNil(t, v.Level())
	assert.Equal(t, domain.LevelRow, *v.Level())

	v.Update(keyRune("l"))
	assert.Nil(t, v.Level())
}

func TestNextLevel(t *testing.T) {
	got := nextLevel(nil)
	require.NotNil(t, got)
	assert.Equal(t, domain.LevelWorkbook, *got)

	row := domain.LevelRow
	assert.Nil(t, nextLevel(&row))

	unknown := domain.Level(9)
	assert.Nil(t, nextLevel(&unknown))
}

func TestView_EscGoesToMenu(t *testing.T) {
	v := newReadyView(&MockQueryService{})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewMenu}, cmd())
}

func TestView_ErrorOccurred(t *testing.T) {
	v := newReadyView(&MockQueryService{})

	v.Update(messages.ErrorOccurred{Err: errors.New("boom")})

	assert.EqualError(t, v.Err(), "boom")
	assert.Equal(t, "boom", v.StatusBar().Message())
}

func TestView_ResetKeepsScope(t *testing.T) {
	svc := &MockQueryService{QueryFunc: func(context.Context, domain.Query) (*domain.RetrievalResult, error) {
		return testResult(), nil
	}}
	v := newReadyView(svc)
	scope := &domain.WorkbookSummary{WorkbookRecord: domain.WorkbookRecord{ID: "wb", Name: "Budget.csv"}}
	v.SetScope(scope)
	submit(t, v, "widget")

	v.Reset()

	assert.True(t, v.InputFocused())
	assert.Empty(t, v.Results())
	assert.NoError(t, v.Err())
	assert.Equal(t, status.StateReady, v.StatusBar().State())
	assert.Equal(t, scope, v.Scope())
	assert.Contains(t, v.View(), "Scope: Budget.csv")
}
