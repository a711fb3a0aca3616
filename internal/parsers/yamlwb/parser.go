// Package yamlwb parses ParsedWorkbook documents encoded as YAML.
package yamlwb

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
)

// Ensure Parser implements the interface.
var _ driven.WorkbookParser = (*Parser)(nil)

// Parser reads the same document shape as jsonwb, written as YAML.
type Parser struct{}

// New creates a YAML workbook parser.
func New() *Parser {
	return &Parser{}
}

// Extensions returns the file extensions this parser handles.
func (p *Parser) Extensions() []string {
	return []string{".yaml", ".yml"}
}

// document mirrors domain.ParsedWorkbook with yaml keys.
type document struct {
	Name   string  `yaml:"name"`
	Source string  `yaml:"source"`
	Sheets []sheet `yaml:"sheets"`
}

type sheet struct {
	Name     string     `yaml:"name"`
	Headers  []string   `yaml:"headers"`
	Rows     [][]string `yaml:"rows"`
	Sections []section  `yaml:"sections"`
}

type section struct {
	Start int    `yaml:"start"`
	End   int    `yaml:"end"`
	Label string `yaml:"label"`
}

// Parse decodes one workbook. name fills in a missing workbook name.
func (p *Parser) Parse(_ context.Context, name string, r io.Reader) (*domain.ParsedWorkbook, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode yaml workbook: %v", domain.ErrInvalidInput, err)
	}

	wb := &domain.ParsedWorkbook{
		Name:   doc.Name,
		Source: doc.Source,
		Sheets: make([]domain.ParsedSheet, len(doc.Sheets)),
	}
	if wb.Name == "" {
		wb.Name = name
	}
	for i, s := range doc.Sheets {
		ps := domain.ParsedSheet{
			Name:    s.Name,
			Headers: s.Headers,
			Rows:    s.Rows,
		}
		for _, h := range s.Sections {
			ps.Sections = append(ps.Sections, domain.SectionHint{Start: h.Start, End: h.End, Label: h.Label})
		}
		wb.Sheets[i] = ps
	}
	return wb, nil
}
