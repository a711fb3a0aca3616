package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

func TestThemes_LevelColoursAreDistinct(t *testing.T) {
	for name, theme := range map[string]*Theme{"dark": DarkTheme(), "light": LightTheme()} {
		t.Run(name, func(t *testing.T) {
			seen := make(map[lipgloss.Color]bool)
			for _, c := range []lipgloss.Color{theme.Workbook, theme.Sheet, theme.Section, theme.Row} {
				require.NotEmpty(t, string(c))
				assert.False(t, seen[c], "duplicate level colour %s", c)
				seen[c] = true
			}
		})
	}
}

func TestThemes_Differ(t *testing.T) {
	assert.NotEqual(t, DarkTheme().Surface, LightTheme().Surface)
	assert.NotEqual(t, DarkTheme().Text, LightTheme().Text)
}

func TestNewStyles_NilThemeIsDark(t *testing.T) {
	s := NewStyles(nil)

	require.NotNil(t, s)
	assert.Equal(t, DarkTheme(), s.Theme())
}

func TestNewStyles_UsesThemeColours(t *testing.T) {
	theme := LightTheme()
	theme.Link = lipgloss.Color("#123456")

	s := NewStyles(theme)

	assert.Equal(t, lipgloss.Color("#123456"), s.Citation.GetForeground())
	assert.Equal(t, theme.Caution, s.Badge.GetForeground())
	assert.Equal(t, theme.Bar, s.StatusBar.GetBackground())
	assert.True(t, s.Title.GetBold())
}

func TestLevelTag(t *testing.T) {
	s := DefaultStyles()

	tests := []struct {
		level domain.Level
		want  string
	}{
		{domain.LevelWorkbook, "[workbook]"},
		{domain.LevelSheet, "[sheet]   "},
		{domain.LevelSection, "[section] "},
		{domain.LevelRow, "[row]     "},
		{domain.Level(7), "[unknown] "},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Contains(t, s.LevelTag(tt.level), tt.want)
		})
	}
}

func TestScoreBar(t *testing.T) {
	s := DefaultStyles()

	tests := []struct {
		name   string
		score  float64
		filled int
	}{
		{"empty", 0, 0},
		{"half", 0.5, 4},
		{"rounds up", 0.45, 4},
		{"full", 1, 8},
		{"clamped high", 3.2, 8},
		{"clamped low", -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := s.ScoreBar(tt.score, 8)
			assert.Equal(t, tt.filled, strings.Count(bar, "█"))
			assert.Equal(t, 8-tt.filled, strings.Count(bar, "░"))
		})
	}

	assert.Empty(t, s.ScoreBar(0.5, 0))
}
