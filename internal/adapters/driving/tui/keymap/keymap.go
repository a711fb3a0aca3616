// Package keymap holds the TUI key bindings.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap lists every binding the views react to.
// Open, Search and Select share enter; the focused view decides which applies.
type KeyMap struct {
	Quit       key.Binding
	Help       key.Binding
	Back       key.Binding
	Search     key.Binding
	Up         key.Binding
	Down       key.Binding
	Select     key.Binding
	NewSearch  key.Binding
	Open       key.Binding
	ClearScope key.Binding
	Rerank     key.Binding
	Level      key.Binding
}

// Group is a titled block of the help view.
type Group struct {
	Title    string
	Bindings []key.Binding
}

func bind(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

// DefaultKeyMap returns the stock bindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit:       bind("q", "quit", "q", "ctrl+c"),
		Help:       bind("?", "help", "?"),
		Back:       bind("esc", "back", "esc"),
		Search:     bind("enter", "query", "enter"),
		Up:         bind("↑/k", "up", "up", "k"),
		Down:       bind("↓/j", "down", "down", "j"),
		Select:     bind("enter", "select", "enter"),
		NewSearch:  bind("n", "new query", "n"),
		Open:       bind("enter", "context", "enter"),
		ClearScope: bind("x", "all workbooks", "x"),
		Rerank:     bind("r", "rerank", "r"),
		Level:      bind("l", "level filter", "l"),
	}
}

// ShortHelp is shown in the status bar while typing a query.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.Back}
}

// ResultsHelp is shown in the status bar while browsing results.
func (k *KeyMap) ResultsHelp() []key.Binding {
	return []key.Binding{k.NewSearch, k.Open, k.Rerank, k.Level, k.Back}
}

// FullHelp returns the help view blocks.
func (k *KeyMap) FullHelp() []Group {
	return []Group{
		{Title: "Navigation", Bindings: []key.Binding{k.Up, k.Down, k.Select, k.Back}},
		{Title: "Query", Bindings: []key.Binding{k.Search, k.NewSearch, k.Open}},
		{Title: "Refine", Bindings: []key.Binding{k.Rerank, k.Level, k.ClearScope}},
		{Title: "General", Bindings: []key.Binding{k.Help, k.Quit}},
	}
}

// Matches reports whether msg triggers binding.
func Matches(msg tea.KeyMsg, binding key.Binding) bool {
	return key.Matches(msg, binding)
}
