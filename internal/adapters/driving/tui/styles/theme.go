// Package styles holds the palettes and lipgloss styles used by the TUI.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// Theme is a palette. Level colours tag chunks by hierarchy depth.
type Theme struct {
	Accent  lipgloss.Color
	Link    lipgloss.Color
	Surface lipgloss.Color
	Bar     lipgloss.Color
	Text    lipgloss.Color
	Dim     lipgloss.Color
	Good    lipgloss.Color
	Caution lipgloss.Color
	Bad     lipgloss.Color
	Frame   lipgloss.Color

	Workbook lipgloss.Color
	Sheet    lipgloss.Color
	Section  lipgloss.Color
	Row      lipgloss.Color
}

// DarkTheme is the palette for dark terminals.
func DarkTheme() *Theme {
	return &Theme{
		Accent:   lipgloss.Color("#21A366"),
		Link:     lipgloss.Color("#89B4FA"),
		Surface:  lipgloss.Color("#1E1E2E"),
		Bar:      lipgloss.Color("#181825"),
		Text:     lipgloss.Color("#CDD6F4"),
		Dim:      lipgloss.Color("#6C7086"),
		Good:     lipgloss.Color("#A6E3A1"),
		Caution:  lipgloss.Color("#F9E2AF"),
		Bad:      lipgloss.Color("#F38BA8"),
		Frame:    lipgloss.Color("#45475A"),
		Workbook: lipgloss.Color("#CBA6F7"),
		Sheet:    lipgloss.Color("#74C7EC"),
		Section:  lipgloss.Color("#FAB387"),
		Row:      lipgloss.Color("#BAC2DE"),
	}
}

// LightTheme is the palette for light terminals.
func LightTheme() *Theme {
	return &Theme{
		Accent:   lipgloss.Color("#107C41"),
		Link:     lipgloss.Color("#1E66F5"),
		Surface:  lipgloss.Color("#EFF1F5"),
		Bar:      lipgloss.Color("#DCE0E8"),
		Text:     lipgloss.Color("#4C4F69"),
		Dim:      lipgloss.Color("#8C8FA1"),
		Good:     lipgloss.Color("#40A02B"),
		Caution:  lipgloss.Color("#DF8E1D"),
		Bad:      lipgloss.Color("#D20F39"),
		Frame:    lipgloss.Color("#BCC0CC"),
		Workbook: lipgloss.Color("#8839EF"),
		Sheet:    lipgloss.Color("#209FB5"),
		Section:  lipgloss.Color("#FE640B"),
		Row:      lipgloss.Color("#5C5F77"),
	}
}

// AutoTheme picks the palette matching the terminal background.
func AutoTheme() *Theme {
	if lipgloss.HasDarkBackground() {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles are the rendered styles derived from a Theme.
type Styles struct {
	theme *Theme

	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Normal     lipgloss.Style
	Muted      lipgloss.Style
	Selected   lipgloss.Style
	Citation   lipgloss.Style
	Badge      lipgloss.Style
	Error      lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	InputField lipgloss.Style
	StatusBar  lipgloss.Style
	Help       lipgloss.Style
	Border     lipgloss.Style

	levels  map[domain.Level]lipgloss.Style
	unknown lipgloss.Style
}

// NewStyles derives styles from theme. A nil theme means DarkTheme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DarkTheme()
	}

	tag := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Bold(true).Foreground(c)
	}

	return &Styles{
		theme:    theme,
		Title:    lipgloss.NewStyle().Bold(true).Foreground(theme.Accent),
		Subtitle: lipgloss.NewStyle().Bold(true).Foreground(theme.Link),
		Normal:   lipgloss.NewStyle().Foreground(theme.Text),
		Muted:    lipgloss.NewStyle().Foreground(theme.Dim),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(theme.Surface).Background(theme.Accent),
		Citation: lipgloss.NewStyle().Foreground(theme.Link),
		Badge:    lipgloss.NewStyle().Bold(true).Foreground(theme.Caution),
		Error:    lipgloss.NewStyle().Foreground(theme.Bad),
		Success:  lipgloss.NewStyle().Foreground(theme.Good),
		Warning:  lipgloss.NewStyle().Foreground(theme.Caution),
		InputField: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Frame).
			Padding(0, 1),
		StatusBar: lipgloss.NewStyle().Foreground(theme.Dim).Background(theme.Bar).Padding(0, 1),
		Help:      lipgloss.NewStyle().Foreground(theme.Dim),
		Border:    lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(theme.Frame),
		levels: map[domain.Level]lipgloss.Style{
			domain.LevelWorkbook: tag(theme.Workbook),
			domain.LevelSheet:    tag(theme.Sheet),
			domain.LevelSection:  tag(theme.Section),
			domain.LevelRow:      tag(theme.Row),
		},
		unknown: tag(theme.Dim),
	}
}

// DefaultStyles returns styles for the dark palette.
func DefaultStyles() *Styles {
	return NewStyles(DarkTheme())
}

// Theme returns the palette the styles were built from.
func (s *Styles) Theme() *Theme {
	return s.theme
}

// LevelTag renders a fixed-width tag such as "[sheet]  " for a chunk level.
func (s *Styles) LevelTag(level domain.Level) string {
	style, ok := s.levels[level]
	if !ok {
		style = s.unknown
	}
	return style.Render(padRight("["+level.String()+"]", 10))
}

// ScoreBar renders score in [0,1] as a bar of width cells.
// Out-of-range scores are clamped.
func (s *Styles) ScoreBar(score float64, width int) string {
	if width <= 0 {
		return ""
	}
	switch {
	case score < 0:
		score = 0
	case score > 1:
		score = 1
	}
	filled := int(score*float64(width) + 0.5)
	return s.Success.Render(strings.Repeat("█", filled)) +
		s.Muted.Render(strings.Repeat("░", width-filled))
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
