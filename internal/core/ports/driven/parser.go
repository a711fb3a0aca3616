package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// WorkbookParser turns an already-decoded workbook document into the
// structure the hierarchy builder consumes. Format decoding (xlsx, ods)
// happens upstream; parsers here read interchange formats.
type WorkbookParser interface {
	// Parse reads one workbook. name is used when the document has none.
	Parse(ctx context.Context, name string, r io.Reader) (*domain.ParsedWorkbook, error)

	// Extensions returns the file extensions this parser handles (e.g. ".json").
	Extensions() []string
}

// ParserRegistry selects a parser by file extension.
type ParserRegistry interface {
	// Register adds a parser for each of its extensions.
	Register(p WorkbookParser)

	// Get returns the parser for a file extension.
	// Returns domain.ErrUnsupportedType when none is registered.
	Get(ext string) (WorkbookParser, error)

	// Extensions returns all registered extensions, sorted.
	Extensions() []string
}
