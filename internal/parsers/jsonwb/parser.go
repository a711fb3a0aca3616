// Package jsonwb parses ParsedWorkbook documents encoded as JSON.
package jsonwb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
)

// Ensure Parser implements the interface.
var _ driven.WorkbookParser = (*Parser)(nil)

// Parser reads {"name": ..., "sheets": [{"name", "headers", "rows", "sections"}]}.
type Parser struct{}

// New creates a JSON workbook parser.
func New() *Parser {
	return &Parser{}
}

// Extensions returns the file extensions this parser handles.
func (p *Parser) Extensions() []string {
	return []string{".json"}
}

// Parse decodes one workbook. name fills in a missing workbook name.
func (p *Parser) Parse(_ context.Context, name string, r io.Reader) (*domain.ParsedWorkbook, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var wb domain.ParsedWorkbook
	if err := dec.Decode(&wb); err != nil {
		return nil, fmt.Errorf("%w: decode json workbook: %v", domain.ErrInvalidInput, err)
	}
	if wb.Name == "" {
		wb.Name = name
	}
	return &wb, nil
}
