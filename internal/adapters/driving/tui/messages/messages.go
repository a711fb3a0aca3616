// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// QueryCompleted carries a retrieval result back to the model.
type QueryCompleted struct {
	Result *domain.RetrievalResult
	Err    error
}

// ResultSelected is sent when a ranked chunk is opened.
type ResultSelected struct {
	Result domain.RankedChunk
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewSearch is the query input and results view.
	ViewSearch
	// ViewResult shows the assembled context of one result.
	ViewResult
	// ViewWorkbooks lists ingested workbooks.
	ViewWorkbooks
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewSearch:
		return "search"
	case ViewResult:
		return "result"
	case ViewWorkbooks:
		return "workbooks"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// WorkbooksLoaded carries the workbook list from the ingest service.
type WorkbooksLoaded struct {
	Workbooks []domain.WorkbookSummary
	Err       error
}

// WorkbookSelected scopes subsequent queries to one workbook.
type WorkbookSelected struct {
	Workbook domain.WorkbookSummary
}

// WorkbookRemoved signals a workbook was removed from the index.
type WorkbookRemoved struct {
	ID     string
	Chunks int
	Err    error
}
