package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// ChunkLookup resolves chunk IDs. Both index.Dual and index.View satisfy it.
type ChunkLookup interface {
	Get(id string) (domain.Chunk, bool)
}

// ContextAssembler resolves ancestor chains and renders citation-ready
// context blocks.
type ContextAssembler struct{}

// NewContextAssembler creates a context assembler.
func NewContextAssembler() *ContextAssembler {
	return &ContextAssembler{}
}

// Ancestors walks parent links to the root and returns the chain root
// first, excluding c itself. Each hop must move to a strictly shallower
// level, so a row reaches the root in at most three hops and cycles are
// impossible to follow. Any break is an IntegrityError.
func (a *ContextAssembler) Ancestors(lookup ChunkLookup, c domain.Chunk) ([]domain.Chunk, error) {
	var chain []domain.Chunk
	seen := map[string]bool{c.ID: true}
	cur := c
	for !cur.IsRoot() {
		parent, ok := lookup.Get(cur.ParentID)
		if !ok {
			return nil, &domain.IntegrityError{ChunkID: c.ID, MissingID: cur.ParentID}
		}
		if seen[parent.ID] {
			return nil, &domain.IntegrityError{ChunkID: c.ID, Reason: "cycle at " + parent.ID}
		}
		if parent.Level >= cur.Level {
			return nil, &domain.IntegrityError{ChunkID: c.ID,
				Reason: fmt.Sprintf("parent %s is a %s, not shallower than %s", parent.ID, parent.Level, cur.Level)}
		}
		seen[parent.ID] = true
		chain = append(chain, parent)
		cur = parent
	}
	if cur.Level != domain.LevelWorkbook {
		return nil, &domain.IntegrityError{ChunkID: c.ID, Reason: "chain ends at a " + cur.Level.String() + ", not a workbook"}
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Assemble fills Ancestors, Context and Citation of a ranked chunk.
func (a *ContextAssembler) Assemble(lookup ChunkLookup, rc *domain.RankedChunk) error {
	chain, err := a.Ancestors(lookup, rc.Chunk)
	if err != nil {
		return err
	}
	rc.Ancestors = chain
	rc.Citation = Citation(chain, rc.Chunk)
	rc.Context = ContextBlock(chain, rc.Chunk)
	return nil
}

// Citation renders a short location such as "Q1.xlsx > Sales > Totals > row 3".
func Citation(chain []domain.Chunk, c domain.Chunk) string {
	parts := make([]string, 0, len(chain)+1)
	for _, anc := range chain {
		if p := locationPart(anc); p != "" {
			parts = append(parts, p)
		}
	}
	if p := locationPart(c); p != "" {
		parts = append(parts, p)
	}
	return strings.Join(parts, " > ")
}

func locationPart(c domain.Chunk) string {
	switch c.Level {
	case domain.LevelWorkbook:
		if name, ok := c.Metadata[domain.MetaWorkbookName].(string); ok && name != "" {
			return name
		}
		return c.WorkbookID
	case domain.LevelSheet:
		return c.SheetName()
	case domain.LevelSection:
		if label := c.SectionLabel(); label != "" {
			return label
		}
		return fmt.Sprintf("section %d", c.Ordinal+1)
	case domain.LevelRow:
		return fmt.Sprintf("row %d", c.RowNumber())
	default:
		return ""
	}
}

// ContextBlock renders the block handed to answer generation:
//
//	[Q1.xlsx > Sales > section 1 > row 3]
//	Columns: Region, Quarter, Revenue
//	Row: 3
//	Region: North | Quarter: Q1 | Revenue: 1200
func ContextBlock(chain []domain.Chunk, c domain.Chunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", Citation(chain, c))
	if h := c.ColumnHeaders(); h != "" {
		fmt.Fprintf(&b, "Columns: %s\n", h)
	}
	if l := c.SectionLabel(); l != "" {
		fmt.Fprintf(&b, "Section: %s\n", l)
	}
	if c.Level == domain.LevelRow {
		fmt.Fprintf(&b, "Row: %d\n", c.RowNumber())
	}
	b.WriteString(c.Text)
	return b.String()
}
