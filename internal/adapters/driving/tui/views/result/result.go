// Package result provides the view that shows one ranked chunk in full.
package result

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// View shows the assembled context, scores and ancestry of a result.
type View struct {
	styles *styles.Styles

	result       *domain.RankedChunk
	content      string
	lines        []string
	scrollOffset int
	width        int
	height       int
	ready        bool
}

// NewView creates a new result view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles: s,
		width:  80,
		height: 24,
	}
}

// SetResult replaces the displayed result and scrolls to the top.
func (v *View) SetResult(r domain.RankedChunk) {
	v.result = &r
	v.content = renderContent(&r)
	v.scrollOffset = 0
	v.wrapContent()
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the result view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.scrollOffset > 0 {
			v.scrollOffset--
		}
	case "down", "j":
		if v.scrollOffset < v.maxScrollOffset() {
			v.scrollOffset++
		}
	case "pgup", "ctrl+u":
		v.scrollOffset -= v.visibleLines()
		if v.scrollOffset < 0 {
			v.scrollOffset = 0
		}
	case "pgdown", "ctrl+d":
		v.scrollOffset += v.visibleLines()
		if maxOffset := v.maxScrollOffset(); v.scrollOffset > maxOffset {
			v.scrollOffset = maxOffset
		}
	case "home", "g":
		v.scrollOffset = 0
	case "end", "G":
		v.scrollOffset = v.maxScrollOffset()
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewSearch}
		}
	}

	return v, nil
}

// renderContent lays out the context block followed by scores and lineage.
func renderContent(r *domain.RankedChunk) string {
	var b strings.Builder

	if r.Context != "" {
		b.WriteString(r.Context)
	} else {
		b.WriteString(r.Chunk.Text)
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Fused score: %.4f\n", r.FusedScore)
	if r.VectorScore != nil {
		fmt.Fprintf(&b, "Vector: %.4f\n", *r.VectorScore)
	}
	if r.KeywordScore != nil {
		fmt.Fprintf(&b, "Keyword: %.4f\n", *r.KeywordScore)
	}
	if r.RerankScore != nil {
		fmt.Fprintf(&b, "Rerank: %.4f\n", *r.RerankScore)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Level: %s\n", r.Chunk.Level)
	fmt.Fprintf(&b, "Chunk: %s\n", r.Chunk.ID)
	fmt.Fprintf(&b, "Workbook: %s\n", r.Chunk.WorkbookID)

	if len(r.Ancestors) > 0 {
		b.WriteString("\nAncestors:\n")
		for i, a := range r.Ancestors {
			fmt.Fprintf(&b, "%s%s: %s\n", strings.Repeat("  ", i+1), a.Level, firstLine(a.Text))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// wrapContent wraps the content to fit the view width.
func (v *View) wrapContent() {
	if v.content == "" {
		v.lines = nil
		return
	}

	contentWidth := v.width - 4
	if contentWidth < 20 {
		contentWidth = 20
	}

	raw := strings.Split(v.content, "\n")
	v.lines = make([]string, 0, len(raw))
	for _, line := range raw {
		runes := []rune(line)
		for len(runes) > contentWidth {
			v.lines = append(v.lines, string(runes[:contentWidth]))
			runes = runes[contentWidth:]
		}
		v.lines = append(v.lines, string(runes))
	}
}

// visibleLines returns the number of content lines that fit.
func (v *View) visibleLines() int {
	available := v.height - 6
	if available < 1 {
		available = 1
	}
	return available
}

func (v *View) maxScrollOffset() int {
	maxOffset := len(v.lines) - v.visibleLines()
	if maxOffset < 0 {
		maxOffset = 0
	}
	return maxOffset
}

// View renders the result view.
func (v *View) View() string {
	var b strings.Builder

	title := "Result"
	if v.result != nil && v.result.Citation != "" {
		title = v.result.Citation
	}
	b.WriteString(v.styles.Title.Render(title))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", min(v.width-4, 60)))
	b.WriteString("\n\n")

	if len(v.lines) == 0 {
		b.WriteString(v.styles.Muted.Render("(No result selected)"))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	visible := v.visibleLines()
	for i := v.scrollOffset; i < len(v.lines) && i < v.scrollOffset+visible; i++ {
		b.WriteString(v.styles.Normal.Render(v.lines[i]))
		b.WriteString("\n")
	}

	if len(v.lines) > visible {
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  Line %d-%d of %d",
			v.scrollOffset+1,
			min(v.scrollOffset+visible, len(v.lines)),
			len(v.lines))))
	}

	b.WriteString("\n\n")
	b.WriteString(v.renderHelp())

	return b.String()
}

func (v *View) renderHelp() string {
	return v.styles.Help.Render("[↑/↓/PgUp/PgDn] scroll  [g/G] top/bottom  [esc] back")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.wrapContent()
}

// Result returns the displayed result.
func (v *View) Result() *domain.RankedChunk {
	return v.result
}

// Content returns the unwrapped text being displayed.
func (v *View) Content() string {
	return v.content
}

// ScrollOffset returns the first visible line.
func (v *View) ScrollOffset() int {
	return v.scrollOffset
}
