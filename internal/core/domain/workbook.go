package domain

// ParsedWorkbook is the structure handed over by an external parser.
// The builder never looks at the original file.
type ParsedWorkbook struct {
	// Name is the display name, usually the file name.
	Name string `json:"name"`

	// Source records where the structure was parsed from.
	Source string `json:"source,omitempty"`

	// Sheets are in workbook order.
	Sheets []ParsedSheet `json:"sheets"`
}

// ParsedSheet is one worksheet: headers, ordered rows and optional
// section boundary hints.
type ParsedSheet struct {
	Name     string        `json:"name"`
	Headers  []string      `json:"headers"`
	Rows     [][]string    `json:"rows"`
	Sections []SectionHint `json:"sections,omitempty"`
}

// SectionHint groups the rows [Start, End) under an optional label.
// Row indices are zero-based positions in ParsedSheet.Rows.
type SectionHint struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label,omitempty"`
}

// Len returns the number of rows covered by the hint.
func (h SectionHint) Len() int {
	return h.End - h.Start
}
