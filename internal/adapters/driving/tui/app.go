package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/views/menu"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/views/result"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/views/search"
	"github.com/custodia-labs/sheetdex/internal/adapters/driving/tui/views/workbooks"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	menuView      *menu.View
	searchView    *search.View
	resultView    *result.View
	workbooksView *workbooks.View

	currentView messages.ViewType

	// err holds the last error that occurred.
	err error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// Option configures an App.
type Option func(*appOptions)

type appOptions struct {
	theme *styles.Theme
}

// WithTheme sets the palette. Without it the dark palette is used.
func WithTheme(theme *styles.Theme) Option {
	return func(o *appOptions) { o.theme = theme }
}

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports, opts ...Option) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := styles.NewStyles(o.theme)
	km := keymap.DefaultKeyMap()

	menuView := menu.NewView(s)
	menuView.SetCapabilities(ports.Query.VectorEnabled(), ports.Query.RerankEnabled())

	return &App{
		ports:         ports,
		ctx:           context.Background(),
		styles:        s,
		keymap:        km,
		menuView:      menuView,
		searchView:    search.NewView(s, km, ports.Query),
		resultView:    result.NewView(s),
		workbooksView: workbooks.NewView(s, ports.Ingest),
		currentView:   messages.ViewMenu,
	}, nil
}

// WithContext sets the context used for service calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.searchView.WithContext(ctx)
	a.workbooksView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tea.SetWindowTitle("sheetdex"),
		a.loadSummary(),
	)
}

// loadSummary fetches the workbook list for the landing view.
func (a *App) loadSummary() tea.Cmd {
	if a.ports.Ingest == nil {
		return nil
	}
	return func() tea.Msg {
		wbs, err := a.ports.Ingest.Workbooks(a.ctx)
		return messages.WorkbooksLoaded{Workbooks: wbs, Err: err}
	}
}

// Update implements tea.Model.
//
//nolint:gocyclo // central message router
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		return a, a.routeToCurrent(msg)

	case messages.ViewChanged:
		return a, a.switchTo(msg.View)

	case messages.QueryCompleted:
		a.searchView, cmd = a.searchView.Update(msg)
		a.err = msg.Err
		return a, cmd

	case messages.ResultSelected:
		a.resultView.SetResult(msg.Result)
		a.currentView = messages.ViewResult
		return a, nil

	case messages.WorkbookSelected:
		wb := msg.Workbook
		a.searchView.SetScope(&wb)
		return a, a.switchTo(messages.ViewSearch)

	case messages.WorkbooksLoaded:
		if msg.Err == nil {
			a.menuView.SetWorkbooks(msg.Workbooks)
		}
		a.workbooksView, cmd = a.workbooksView.Update(msg)
		return a, cmd

	case messages.WorkbookRemoved:
		a.workbooksView, cmd = a.workbooksView.Update(msg)
		return a, cmd

	case messages.ErrorOccurred:
		a.err = msg.Err
		return a, a.routeToCurrent(msg)

	case messages.Quit:
		return a, tea.Quit
	}

	return a, a.routeToCurrent(msg)
}

// switchTo activates a view and runs its initialisation.
// Entering the query view from the menu starts a fresh query;
// returning from a result keeps the list.
func (a *App) switchTo(view messages.ViewType) tea.Cmd {
	previous := a.currentView
	a.currentView = view

	switch view {
	case messages.ViewSearch:
		if previous == messages.ViewResult {
			return nil
		}
		a.searchView.Reset()
		return a.searchView.Init()
	case messages.ViewWorkbooks:
		return a.workbooksView.Init()
	case messages.ViewMenu, messages.ViewResult, messages.ViewHelp:
	}
	return nil
}

// routeToCurrent forwards a message to the active view.
func (a *App) routeToCurrent(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewMenu:
		a.menuView, cmd = a.menuView.Update(msg)
	case messages.ViewSearch:
		a.searchView, cmd = a.searchView.Update(msg)
	case messages.ViewResult:
		a.resultView, cmd = a.resultView.Update(msg)
	case messages.ViewWorkbooks:
		a.workbooksView, cmd = a.workbooksView.Update(msg)
	case messages.ViewHelp:
		if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEsc {
			a.currentView = messages.ViewMenu
		}
	}
	return cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewSearch:
		return a.searchView.View()
	case messages.ViewResult:
		return a.resultView.View()
	case messages.ViewWorkbooks:
		return a.workbooksView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	default:
		return a.menuView.View()
	}
}

// viewHelp renders the keybindings grouped as in the key map.
func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\n")

	for _, group := range a.keymap.FullHelp() {
		b.WriteString(a.styles.Subtitle.Render(group.Title))
		b.WriteString("\n")
		for _, binding := range group.Bindings {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %-10s %s\n", h.Key, h.Desc))
		}
		b.WriteString("\n")
	}

	b.WriteString(a.styles.Muted.Render("Queries combine vector and keyword search over every ingested workbook.\n"))
	b.WriteString(a.styles.Muted.Render("Pick a workbook from Workbooks to restrict the scope, or press l to keep one hierarchy level."))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Help.Render("[esc] back to menu"))
	return b.String()
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// MenuView returns the landing view.
func (a *App) MenuView() *menu.View {
	return a.menuView
}

// SearchView returns the query view.
func (a *App) SearchView() *search.View {
	return a.searchView
}

// ResultView returns the result view.
func (a *App) ResultView() *result.View {
	return a.resultView
}

// WorkbooksView returns the workbooks view.
func (a *App) WorkbooksView() *workbooks.View {
	return a.workbooksView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sizes every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.menuView.SetDimensions(width, height)
	a.searchView.SetDimensions(width, height)
	a.resultView.SetDimensions(width, height)
	a.workbooksView.SetDimensions(width, height)
}
