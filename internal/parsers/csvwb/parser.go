// Package csvwb parses a CSV file as a single-sheet workbook.
//
// The first non-blank record is the header row. Blank records split the
// remaining rows into sections. A record directly after a blank line that
// has only its first cell filled is taken as the label of the section
// that follows.
package csvwb

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
)

// Ensure Parser implements the interface.
var _ driven.WorkbookParser = (*Parser)(nil)

// Parser reads comma or semicolon separated files.
type Parser struct {
	comma rune
}

// New creates a CSV parser using ',' as separator.
func New() *Parser {
	return &Parser{comma: ','}
}

// NewWithComma creates a CSV parser with a custom separator.
func NewWithComma(comma rune) *Parser {
	return &Parser{comma: comma}
}

// Extensions returns the file extensions this parser handles.
func (p *Parser) Extensions() []string {
	return []string{".csv"}
}

// Parse reads the whole file into one sheet named after the file.
func (p *Parser) Parse(ctx context.Context, name string, r io.Reader) (*domain.ParsedWorkbook, error) {
	reader := csv.NewReader(r)
	reader.Comma = p.comma
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	sheetName := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	sheet := domain.ParsedSheet{Name: sheetName}

	var (
		haveHeaders  bool
		afterBlank   bool
		pendingLabel string
		sectionStart int
		split        bool
	)
	closeSection := func() {
		end := len(sheet.Rows)
		if end > sectionStart {
			sheet.Sections = append(sheet.Sections, domain.SectionHint{
				Start: sectionStart,
				End:   end,
				Label: pendingLabel,
			})
			pendingLabel = ""
		}
		sectionStart = end
	}

	breakSection := func() {
		if haveHeaders {
			closeSection()
			afterBlank = true
			split = true
		}
	}

	// encoding/csv skips empty lines, so gaps in line numbers count as blank rows too.
	prevEnd := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse csv: %v", domain.ErrInvalidInput, err)
		}

		start, _ := reader.FieldPos(0)
		if prevEnd > 0 && start > prevEnd+1 {
			breakSection()
		}
		last := len(record) - 1
		endLine, _ := reader.FieldPos(last)
		prevEnd = endLine + strings.Count(record[last], "\n")

		if isBlank(record) {
			breakSection()
			continue
		}
		if !haveHeaders {
			sheet.Headers = trimAll(record)
			haveHeaders = true
			continue
		}
		if afterBlank && len(sheet.Headers) > 1 && isLabel(record) {
			pendingLabel = strings.TrimSpace(record[0])
			afterBlank = false
			continue
		}
		afterBlank = false
		sheet.Rows = append(sheet.Rows, trimAll(record))
	}

	if split {
		closeSection()
	} else {
		sheet.Sections = nil
	}

	return &domain.ParsedWorkbook{
		Name:   filepath.Base(name),
		Source: name,
		Sheets: []domain.ParsedSheet{sheet},
	}, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// isLabel is true when only the first cell has content.
func isLabel(record []string) bool {
	if strings.TrimSpace(record[0]) == "" {
		return false
	}
	for _, cell := range record[1:] {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimAll(record []string) []string {
	out := make([]string, len(record))
	for i, cell := range record {
		out[i] = strings.TrimSpace(cell)
	}
	return out
}
