// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// ResultList displays ranked chunks in a navigable list.
type ResultList struct {
	results  []domain.RankedChunk
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewResultList creates a new result list component.
func NewResultList(s *styles.Styles) *ResultList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &ResultList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the result list.
func (r *ResultList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (r *ResultList) Update(msg tea.Msg) (*ResultList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			r.MoveUp()
		case "down", "j":
			r.MoveDown()
		}
	}
	return r, nil
}

// View renders the result list.
func (r *ResultList) View() string {
	if len(r.results) == 0 {
		return r.styles.Muted.Render("No results")
	}

	lines := make([]string, 0, len(r.results)+2)
	lines = append(lines, r.styles.Subtitle.Render(fmt.Sprintf("Results (%d)", len(r.results))), "")

	// Each result renders as two lines plus a spacer.
	visibleCount := (r.height - 4) / 3
	if visibleCount < 1 {
		visibleCount = 1
	}

	start := 0
	if r.selected >= visibleCount {
		start = r.selected - visibleCount + 1
	}
	end := start + visibleCount
	if end > len(r.results) {
		end = len(r.results)
	}

	for i := start; i < end; i++ {
		lines = append(lines, r.renderResult(i, &r.results[i]))
	}

	return strings.Join(lines, "\n")
}

// renderResult formats the level tag, citation, a score bar relative to the
// top hit and a text preview.
func (r *ResultList) renderResult(index int, result *domain.RankedChunk) string {
	indicator := "  "
	if index == r.selected {
		indicator = "> "
	}

	citation := result.Citation
	if citation == "" {
		citation = result.Chunk.ID
	}
	maxCitationLen := r.width - 34
	if maxCitationLen < 10 {
		maxCitationLen = 10
	}
	citation = truncate(citation, maxCitationLen)

	score := fmt.Sprintf("%.3f", result.FusedScore)
	bar := r.styles.ScoreBar(relativeScore(result.FusedScore, r.results[0].FusedScore), scoreBarWidth)

	var titleLine string
	if index == r.selected {
		titleLine = r.styles.Selected.Render(fmt.Sprintf("%s%-*s  %s", indicator, maxCitationLen, citation, score))
	} else {
		titleLine = r.styles.Citation.Render(fmt.Sprintf("%s%-*s  ", indicator, maxCitationLen, citation)) +
			r.styles.Muted.Render(score)
	}
	titleLine += " " + bar

	preview := strings.ReplaceAll(result.Chunk.Text, "\n", " ")
	maxPreviewLen := r.width - 16
	if maxPreviewLen < 20 {
		maxPreviewLen = 20
	}
	previewLine := "    " + r.styles.LevelTag(result.Chunk.Level) +
		r.styles.Muted.Render(truncate(preview, maxPreviewLen))

	return titleLine + "\n" + previewLine
}

const scoreBarWidth = 8

// relativeScore scales score against the top result so the first bar is full.
func relativeScore(score, top float64) float64 {
	if top <= 0 {
		return 0
	}
	return score / top
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// SetResults replaces the results and selects the first.
func (r *ResultList) SetResults(results []domain.RankedChunk) {
	r.results = results
	r.selected = 0
}

// Results returns the current results.
func (r *ResultList) Results() []domain.RankedChunk {
	return r.results
}

// Selected returns the index of the selected result.
func (r *ResultList) Selected() int {
	return r.selected
}

// SetSelected sets the selected index.
func (r *ResultList) SetSelected(index int) {
	if index >= 0 && index < len(r.results) {
		r.selected = index
	}
}

// SelectedResult returns the currently selected result, or nil if none.
func (r *ResultList) SelectedResult() *domain.RankedChunk {
	if len(r.results) == 0 || r.selected < 0 || r.selected >= len(r.results) {
		return nil
	}
	return &r.results[r.selected]
}

// MoveUp moves selection up.
func (r *ResultList) MoveUp() {
	if r.selected > 0 {
		r.selected--
	}
}

// MoveDown moves selection down.
func (r *ResultList) MoveDown() {
	if r.selected < len(r.results)-1 {
		r.selected++
	}
}

// SetDimensions sets the component dimensions.
func (r *ResultList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}

// Count returns the number of results.
func (r *ResultList) Count() int {
	return len(r.results)
}

// IsEmpty returns whether the list is empty.
func (r *ResultList) IsEmpty() bool {
	return len(r.results) == 0
}
