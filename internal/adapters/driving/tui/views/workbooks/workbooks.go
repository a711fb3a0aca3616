// Package workbooks provides the workbook list view for the TUI.
package workbooks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driving"
)

// ErrNoIngestService indicates the workbook list is unavailable.
var ErrNoIngestService = errors.New("ingest service not available")

// ActionOption represents a workbook action.
type ActionOption int

const (
	ActionSearch ActionOption = iota
	ActionRemove
	ActionCancel
)

// View is the workbook list view.
type View struct {
	styles        *styles.Styles
	ingestService driving.IngestService
	ctx           context.Context

	workbooks    []domain.WorkbookSummary
	selected     int
	width        int
	height       int
	ready        bool
	err          error
	notice       string
	loading      bool
	showingMenu  bool
	menuSelected ActionOption
	scrollOffset int
}

// NewView creates a new workbooks view.
func NewView(s *styles.Styles, ingestService driving.IngestService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:        s,
		ingestService: ingestService,
		ctx:           context.Background(),
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the workbook list.
func (v *View) Init() tea.Cmd {
	v.loading = true
	v.showingMenu = false
	v.notice = ""
	return v.loadWorkbooks()
}

func (v *View) loadWorkbooks() tea.Cmd {
	return func() tea.Msg {
		if v.ingestService == nil {
			return messages.WorkbooksLoaded{Err: ErrNoIngestService}
		}
		wbs, err := v.ingestService.Workbooks(v.ctx)
		return messages.WorkbooksLoaded{Workbooks: wbs, Err: err}
	}
}

// Update handles messages for the workbooks view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		if v.showingMenu {
			return v.handleMenuKeyMsg(msg)
		}
		return v.handleKeyMsg(msg)

	case messages.WorkbooksLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.workbooks = msg.Workbooks
		if v.selected >= len(v.workbooks) {
			v.selected = max(len(v.workbooks)-1, 0)
		}
		v.adjustScroll()
		return v, nil

	case messages.WorkbookRemoved:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.notice = fmt.Sprintf("Removed %s (%d chunks)", msg.ID, msg.Chunks)
		v.loading = true
		return v, v.loadWorkbooks()

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
			v.adjustScroll()
		}
	case "down", "j":
		if v.selected < len(v.workbooks)-1 {
			v.selected++
			v.adjustScroll()
		}
	case "enter":
		if len(v.workbooks) > 0 {
			v.showingMenu = true
			v.menuSelected = ActionSearch
		}
	case "r":
		v.loading = true
		return v, v.loadWorkbooks()
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}

	return v, nil
}

func (v *View) handleMenuKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.menuSelected > ActionSearch {
			v.menuSelected--
		}
	case "down", "j":
		if v.menuSelected < ActionCancel {
			v.menuSelected++
		}
	case "enter":
		return v.handleMenuSelect()
	case "esc":
		v.showingMenu = false
	}

	return v, nil
}

func (v *View) handleMenuSelect() (*View, tea.Cmd) {
	v.showingMenu = false
	if v.selected >= len(v.workbooks) {
		return v, nil
	}
	wb := v.workbooks[v.selected]

	switch v.menuSelected {
	case ActionSearch:
		return v, func() tea.Msg {
			return messages.WorkbookSelected{Workbook: wb}
		}
	case ActionRemove:
		return v, v.removeWorkbook(wb.ID)
	case ActionCancel:
	}

	return v, nil
}

func (v *View) removeWorkbook(id string) tea.Cmd {
	return func() tea.Msg {
		if v.ingestService == nil {
			return messages.WorkbookRemoved{ID: id, Err: ErrNoIngestService}
		}
		report, err := v.ingestService.Remove(v.ctx, id)
		if err != nil {
			return messages.WorkbookRemoved{ID: id, Err: err}
		}
		return messages.WorkbookRemoved{ID: id, Chunks: report.Removed}
	}
}

// adjustScroll keeps the selected item visible.
func (v *View) adjustScroll() {
	visible := v.visibleItemCount()
	if v.selected < v.scrollOffset {
		v.scrollOffset = v.selected
	} else if v.selected >= v.scrollOffset+visible {
		v.scrollOffset = v.selected - visible + 1
	}
}

func (v *View) visibleItemCount() int {
	available := v.height - 8
	if available < 1 {
		available = 1
	}
	return available
}

// View renders the workbooks view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Workbooks (%d)", len(v.workbooks))))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading workbooks..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
	case len(v.workbooks) == 0:
		b.WriteString(v.styles.Muted.Render("No workbooks ingested. Run 'sheetdex ingest <file>' first."))
	case v.showingMenu:
		b.WriteString(v.renderActionMenu())
		return b.String()
	default:
		visible := v.visibleItemCount()
		for i := v.scrollOffset; i < len(v.workbooks) && i < v.scrollOffset+visible; i++ {
			b.WriteString(v.renderWorkbook(i, &v.workbooks[i]))
			b.WriteString("\n")
		}
		if len(v.workbooks) > visible {
			b.WriteString("\n")
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]",
				v.scrollOffset+1,
				min(v.scrollOffset+visible, len(v.workbooks)),
				len(v.workbooks))))
		}
	}

	if v.notice != "" && !v.loading {
		b.WriteString("\n")
		b.WriteString(v.styles.Success.Render(v.notice))
	}

	b.WriteString("\n\n")
	b.WriteString(v.renderHelp())
	return b.String()
}

func (v *View) renderWorkbook(index int, wb *domain.WorkbookSummary) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}

	name := wb.Name
	if name == "" {
		name = wb.ID
	}
	maxNameLen := v.width/2 - 4
	if maxNameLen < 10 {
		maxNameLen = 10
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen-3] + "..."
	}

	stats := fmt.Sprintf("%d chunks", wb.Chunks)
	if wb.Pending > 0 {
		stats += fmt.Sprintf(", %d pending", wb.Pending)
	}

	if index == v.selected {
		return v.styles.Selected.Render(fmt.Sprintf("%s%-*s  %s", indicator, maxNameLen, name, stats))
	}
	line := v.styles.Normal.Render(fmt.Sprintf("%s%-*s  ", indicator, maxNameLen, name))
	if wb.Pending > 0 {
		return line + v.styles.Warning.Render(stats)
	}
	return line + v.styles.Muted.Render(stats)
}

func (v *View) renderActionMenu() string {
	var b strings.Builder

	if v.selected < len(v.workbooks) {
		wb := v.workbooks[v.selected]
		name := wb.Name
		if name == "" {
			name = wb.ID
		}
		b.WriteString(v.styles.Subtitle.Render(fmt.Sprintf("Actions for: %s", name)))
		b.WriteString("\n\n")
	}

	options := []struct {
		action ActionOption
		label  string
	}{
		{ActionSearch, "Query this workbook"},
		{ActionRemove, "Remove from index"},
		{ActionCancel, "Cancel"},
	}
	for _, opt := range options {
		if v.menuSelected == opt.action {
			b.WriteString(v.styles.Selected.Render("> " + opt.label))
		} else {
			b.WriteString(v.styles.Normal.Render("  " + opt.label))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[↑/↓] navigate  [enter] select  [esc] cancel"))
	return b.String()
}

func (v *View) renderHelp() string {
	return v.styles.Help.Render("[↑/↓] navigate  [enter] actions  [r] reload  [esc] back")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Workbooks returns the loaded workbooks.
func (v *View) Workbooks() []domain.WorkbookSummary {
	return v.workbooks
}

// SelectedIndex returns the currently selected workbook index.
func (v *View) SelectedIndex() int {
	return v.selected
}

// IsShowingMenu returns true if the action menu is visible.
func (v *View) IsShowingMenu() bool {
	return v.showingMenu
}

// Loading reports whether a load is in flight.
func (v *View) Loading() bool {
	return v.loading
}

// Notice returns the last confirmation message.
func (v *View) Notice() string {
	return v.notice
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
