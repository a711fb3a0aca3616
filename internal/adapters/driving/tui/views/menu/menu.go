// Package menu is the landing view: an index summary and the view picker.
package menu

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// Item is one entry of the picker. Key is its digit shortcut.
type Item struct {
	Key   string
	Label string
	Hint  string
	View  messages.ViewType
	Quit  bool
}

// Summary describes the index shown above the picker.
type Summary struct {
	Workbooks int
	Chunks    int
	Pending   int
	Vector    bool
	Rerank    bool
	Loaded    bool
}

// View is the landing view.
type View struct {
	styles   *styles.Styles
	items    []Item
	summary  Summary
	selected int
	width    int
	height   int
	ready    bool
}

// NewView creates the landing view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &View{
		styles: s,
		items: []Item{
			{Key: "1", Label: "Query", Hint: "hybrid search across the index", View: messages.ViewSearch},
			{Key: "2", Label: "Workbooks", Hint: "list, scope or remove workbooks", View: messages.ViewWorkbooks},
			{Key: "3", Label: "Help", Hint: "key bindings", View: messages.ViewHelp},
			{Key: "4", Label: "Quit", Quit: true},
		},
		width:  80,
		height: 24,
	}
}

// Init implements the view lifecycle. The summary is pushed by the app.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the landing view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		switch k := msg.String(); k {
		case "up", "k":
			if v.selected > 0 {
				v.selected--
			}
		case "down", "j":
			if v.selected < len(v.items)-1 {
				v.selected++
			}
		case "enter":
			return v, v.activate(v.items[v.selected])
		case "q":
			return v, tea.Quit
		default:
			for i, item := range v.items {
				if item.Key == k {
					v.selected = i
					return v, v.activate(item)
				}
			}
		}
	}

	return v, nil
}

func (v *View) activate(item Item) tea.Cmd {
	if item.Quit {
		return tea.Quit
	}
	return func() tea.Msg {
		return messages.ViewChanged{View: item.View}
	}
}

// View renders the summary and the picker.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("sheetdex"))
	b.WriteString("  ")
	b.WriteString(v.styles.Muted.Render("Spreadsheet retrieval"))
	b.WriteString("\n\n")
	b.WriteString(v.renderSummary())
	b.WriteString("\n\n")

	for i, item := range v.items {
		label := fmt.Sprintf("%s  %-10s", item.Key, item.Label)
		if i == v.selected {
			b.WriteString("> " + v.styles.Subtitle.Render(label))
		} else {
			b.WriteString("  " + v.styles.Normal.Render(label))
		}
		if item.Hint != "" {
			b.WriteString(" " + v.styles.Muted.Render(item.Hint))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[j/k] Navigate  [1-4] Jump  [Enter] Select  [q] Quit"))

	return b.String()
}

func (v *View) renderSummary() string {
	var parts []string
	if v.summary.Loaded {
		parts = append(parts, v.styles.Normal.Render(
			fmt.Sprintf("%d workbooks, %d chunks", v.summary.Workbooks, v.summary.Chunks)))
		if v.summary.Pending > 0 {
			parts = append(parts, v.styles.Warning.Render(
				fmt.Sprintf("%d pending embeddings", v.summary.Pending)))
		}
	} else {
		parts = append(parts, v.styles.Muted.Render("index size unknown"))
	}
	parts = append(parts, v.capability("vector", v.summary.Vector), v.capability("rerank", v.summary.Rerank))
	return v.styles.Border.Padding(0, 1).Render(strings.Join(parts, "  "))
}

func (v *View) capability(name string, on bool) string {
	if on {
		return v.styles.Success.Render(name + " on")
	}
	return v.styles.Muted.Render(name + " off")
}

// SetCapabilities records which retrieval stages are available.
func (v *View) SetCapabilities(vector, rerank bool) {
	v.summary.Vector = vector
	v.summary.Rerank = rerank
}

// SetWorkbooks totals the listed workbooks into the summary.
func (v *View) SetWorkbooks(wbs []domain.WorkbookSummary) {
	v.summary.Workbooks = len(wbs)
	v.summary.Chunks = 0
	v.summary.Pending = 0
	for _, wb := range wbs {
		v.summary.Chunks += wb.Chunks
		v.summary.Pending += wb.Pending
	}
	v.summary.Loaded = true
}

// Summary returns the current index summary.
func (v *View) Summary() Summary {
	return v.summary
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Selected returns the currently selected index.
func (v *View) Selected() int {
	return v.selected
}

// Items returns the picker entries.
func (v *View) Items() []Item {
	return v.items
}
