// Package search provides the query view for the TUI.
package search

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driving"
)

// View represents the query view with input, results list, and status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QueryInput
	list      *list.ResultList
	statusbar *status.Bar

	queryService driving.QueryService
	ctx          context.Context

	scope  *domain.WorkbookSummary
	level  *domain.Level
	rerank bool

	width      int
	height     int
	ready      bool
	err        error
	focusInput bool // true = typing a query, false = navigating results
}

// NewView creates a new query view.
func NewView(s *styles.Styles, km *keymap.KeyMap, queryService driving.QueryService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:       s,
		keymap:       km,
		input:        input.NewQueryInput(s),
		list:         list.NewResultList(s),
		statusbar:    status.NewBar(s, km),
		queryService: queryService,
		ctx:          context.Background(),
		width:        80,
		height:       24,
		focusInput:   true,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the query view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.QueryCompleted:
		v.handleQueryCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}

	if v.focusInput {
		if msg.Type == tea.KeyEnter {
			text := strings.TrimSpace(v.input.Value())
			if text == "" {
				return v, nil
			}
			v.statusbar.SetState(status.StateQuerying)
			v.focusInput = false
			v.input.Blur()
			return v, v.performQuery(text)
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	km := v.keymap
	switch {
	case keymap.Matches(msg, km.Up):
		v.list.MoveUp()
	case keymap.Matches(msg, km.Down):
		v.list.MoveDown()
	case keymap.Matches(msg, km.Open):
		if result := v.list.SelectedResult(); result != nil {
			selected := *result
			return v, func() tea.Msg {
				return messages.ResultSelected{Result: selected}
			}
		}
	case keymap.Matches(msg, km.NewSearch):
		v.focusInput = true
		v.input.SetValue("")
		return v, v.input.Focus()
	case keymap.Matches(msg, km.Rerank):
		v.rerank = !v.rerank
		return v, v.requery()
	case keymap.Matches(msg, km.Level):
		v.level = nextLevel(v.level)
		return v, v.requery()
	case keymap.Matches(msg, km.ClearScope):
		if v.scope != nil {
			v.scope = nil
			return v, v.requery()
		}
	}

	return v, nil
}

// requery reruns the current input after an option changed.
func (v *View) requery() tea.Cmd {
	text := strings.TrimSpace(v.input.Value())
	if text == "" {
		return nil
	}
	v.statusbar.SetState(status.StateQuerying)
	return v.performQuery(text)
}

// levelCycle is the order the level filter steps through; nil means any level.
var levelCycle = []*domain.Level{nil, levelPtr(domain.LevelWorkbook), levelPtr(domain.LevelSheet),
	levelPtr(domain.LevelSection), levelPtr(domain.LevelRow)}

func levelPtr(l domain.Level) *domain.Level { return &l }

func nextLevel(current *domain.Level) *domain.Level {
	for i, l := range levelCycle {
		if (l == nil && current == nil) || (l != nil && current != nil && *l == *current) {
			return levelCycle[(i+1)%len(levelCycle)]
		}
	}
	return nil
}

// buildQuery turns the input and view state into a retrieval request.
func (v *View) buildQuery(text string) domain.Query {
	q := domain.Query{Text: text, Rerank: v.rerank}
	if v.scope != nil || v.level != nil {
		q.Filter = domain.Filter{}
	}
	if v.scope != nil {
		q.Filter[domain.MetaWorkbookID] = v.scope.ID
	}
	if v.level != nil {
		q.Filter[domain.MetaLevel] = v.level.String()
	}
	return q
}

// performQuery runs the query off the update loop.
func (v *View) performQuery(text string) tea.Cmd {
	q := v.buildQuery(text)
	return func() tea.Msg {
		if v.queryService == nil {
			return messages.ErrorOccurred{Err: ErrNoQueryService}
		}
		result, err := v.queryService.Query(v.ctx, q)
		return messages.QueryCompleted{Result: result, Err: err}
	}
}

func (v *View) handleQueryCompleted(msg messages.QueryCompleted) {
	if msg.Err != nil {
		v.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return
	}

	v.err = nil
	result := msg.Result
	if result == nil {
		result = &domain.RetrievalResult{}
	}
	v.list.SetResults(result.Results)
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetResult(len(result.Results), result.Candidates, result.Partial, result.Reranked)
	v.statusbar.SetMessage(strings.Join(result.Warnings, "; "))

	v.focusInput = false
	v.input.Blur()
}

// View renders the query view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 10)
	sections = append(sections, v.styles.Title.Render("sheetdex"), "")
	sections = append(sections, v.input.View(), v.renderOptions(), "")

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}

	sections = append(sections, v.list.View(), "", v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderOptions shows the workbook scope, level filter and rerank toggle.
func (v *View) renderOptions() string {
	scope := "all workbooks"
	if v.scope != nil {
		name := v.scope.Name
		if name == "" {
			name = v.scope.ID
		}
		scope = name
	}
	level := "any"
	if v.level != nil {
		level = v.level.String()
	}
	rerank := "off"
	if v.rerank {
		rerank = "on"
	}
	return v.styles.Muted.Render(fmt.Sprintf("Scope: %s  Level: %s  Rerank: %s", scope, level, rerank))
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-11)
	v.statusbar.SetWidth(width)
}

// SetScope restricts queries to one workbook. Nil searches everything.
func (v *View) SetScope(wb *domain.WorkbookSummary) {
	v.scope = wb
}

// Level returns the level filter, or nil for any level.
func (v *View) Level() *domain.Level {
	return v.level
}

// Scope returns the workbook restriction, if any.
func (v *View) Scope() *domain.WorkbookSummary {
	return v.scope
}

// RerankEnabled reports whether queries request the re-rank stage.
func (v *View) RerankEnabled() bool {
	return v.rerank
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Query returns the current query text.
func (v *View) Query() string {
	return v.input.Value()
}

// SetQuery sets the query text.
func (v *View) SetQuery(text string) {
	v.input.SetValue(text)
}

// Results returns the current ranked chunks.
func (v *View) Results() []domain.RankedChunk {
	return v.list.Results()
}

// SelectedIndex returns the index of the selected result.
func (v *View) SelectedIndex() int {
	return v.list.Selected()
}

// StatusBar exposes the status bar for inspection.
func (v *View) StatusBar() *status.Bar {
	return v.statusbar
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// Reset returns the view to input mode with no results. The scope is kept.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.SetValue("")
	v.list.SetResults(nil)
	v.err = nil
	v.statusbar.Clear()
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}
