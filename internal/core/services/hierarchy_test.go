package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

func fixedBuilder(at time.Time) *HierarchyBuilder {
	return &HierarchyBuilder{now: func() time.Time { return at }}
}

func TestHierarchyBuilder_Build_Shape(t *testing.T) {
	b := NewHierarchyBuilder()

	tree, err := b.Build("wb1", salesWorkbook())
	require.NoError(t, err)

	// root + 2 sheets + 2 sections + 5 rows
	assert.Equal(t, 10, tree.Len())

	root, ok := tree.Get(tree.RootID)
	require.True(t, ok)
	assert.Equal(t, domain.LevelWorkbook, root.Level)
	assert.True(t, root.IsRoot())
	assert.Equal(t, "Workbook: Q1.xlsx. Sheets: Sales, Inventory", root.Text)
	assert.Equal(t, "Q1.xlsx", root.Metadata[domain.MetaWorkbookName])

	counts := map[domain.Level]int{}
	for i, c := range tree.Chunks {
		counts[c.Level]++
		assert.Equal(t, "wb1", c.WorkbookID)
		assert.Equal(t, "wb1", c.Metadata[domain.MetaWorkbookID])
		assert.NotEmpty(t, c.ContentHash)
		if c.IsRoot() {
			continue
		}
		parent, ok := tree.Get(c.ParentID)
		require.True(t, ok, "parent of %s", c.ID)
		assert.Equal(t, c.Level-1, parent.Level, "parent is exactly one level up")
		for j := i; j < len(tree.Chunks); j++ {
			assert.NotEqual(t, c.ParentID, tree.Chunks[j].ID, "parent must precede child")
		}
	}
	assert.Equal(t, map[domain.Level]int{
		domain.LevelWorkbook: 1,
		domain.LevelSheet:    2,
		domain.LevelSection:  2,
		domain.LevelRow:      5,
	}, counts)
}

func TestHierarchyBuilder_Build_RowText(t *testing.T) {
	tree, err := NewHierarchyBuilder().Build("wb1", salesWorkbook())
	require.NoError(t, err)

	row, ok := chunkByText(tree.Chunks, "Region: North | Quarter: Q1 | Revenue: 1200")
	require.True(t, ok)
	assert.Equal(t, 1, row.RowNumber())
	assert.Equal(t, "Sales", row.SheetName())
	assert.Equal(t, "Region, Quarter, Revenue", row.ColumnHeaders())
	assert.Equal(t, 0, row.Ordinal)

	sheet, ok := chunkByText(tree.Chunks, "Sheet: Sales. Columns: Region, Quarter, Revenue. Rows: 3")
	require.True(t, ok)
	assert.Equal(t, domain.LevelSheet, sheet.Level)
}

func TestRowText(t *testing.T) {
	tests := []struct {
		name     string
		headers  []string
		cells    []string
		expected string
	}{
		{"paired", []string{"A", "B"}, []string{"1", "2"}, "A: 1 | B: 2"},
		{"empty cells skipped", []string{"A", "B", "C"}, []string{"1", " ", "3"}, "A: 1 | C: 3"},
		{"extra cells numbered", []string{"A"}, []string{"1", "2"}, "A: 1 | Column 2: 2"},
		{"whitespace collapsed", []string{"A"}, []string{"  north \t east "}, "A: north east"},
		{"all empty", []string{"A"}, []string{""}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RowText(tt.headers, tt.cells))
		})
	}
}

func TestHierarchyBuilder_Build_SectionHints(t *testing.T) {
	wb := &domain.ParsedWorkbook{
		Name: "budget",
		Sheets: []domain.ParsedSheet{{
			Name:    "Plan",
			Headers: []string{"Item", "Amount"},
			Rows: [][]string{
				{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}, {"e", "5"},
			},
			Sections: []domain.SectionHint{
				{Start: 3, End: 5, Label: "Totals"},
				{Start: 1, End: 2, Label: "Income"},
			},
		}},
	}

	tree, err := NewHierarchyBuilder().Build("wb", wb)
	require.NoError(t, err)

	var sections []domain.Chunk
	for _, c := range tree.Chunks {
		if c.Level == domain.LevelSection {
			sections = append(sections, c)
		}
	}
	// gap [0,1), Income [1,2), gap [2,3), Totals [3,5)
	require.Len(t, sections, 4)
	assert.Equal(t, "", sections[0].SectionLabel())
	assert.Equal(t, "Income", sections[1].SectionLabel())
	assert.Equal(t, "", sections[2].SectionLabel())
	assert.Equal(t, "Totals", sections[3].SectionLabel())
	for i, s := range sections {
		assert.Equal(t, i, s.Ordinal)
	}

	row, ok := chunkByText(tree.Chunks, "Item: e | Amount: 5")
	require.True(t, ok)
	assert.Equal(t, 5, row.RowNumber())
	assert.Equal(t, "Totals", row.SectionLabel())
	assert.Equal(t, 1, row.Ordinal)
	assert.Equal(t, sections[3].ID, row.ParentID)
}

func TestHierarchyBuilder_Build_EmptySheet(t *testing.T) {
	wb := &domain.ParsedWorkbook{Name: "x", Sheets: []domain.ParsedSheet{{Name: "Blank"}}}

	tree, err := NewHierarchyBuilder().Build("wb", wb)
	require.NoError(t, err)

	// root, sheet, one empty section
	require.Equal(t, 3, tree.Len())
	assert.Equal(t, domain.LevelSection, tree.Chunks[2].Level)
	assert.Equal(t, "Section 1 of sheet Blank", tree.Chunks[2].Text)
}

func TestHierarchyBuilder_Build_StructuralErrors(t *testing.T) {
	rows := [][]string{{"a"}, {"b"}, {"c"}}
	tests := []struct {
		name string
		id   string
		wb   *domain.ParsedWorkbook
	}{
		{"empty id", " ", &domain.ParsedWorkbook{}},
		{"nil workbook", "wb", nil},
		{"empty sheet name", "wb", &domain.ParsedWorkbook{Sheets: []domain.ParsedSheet{{Name: "  "}}}},
		{"duplicate sheet", "wb", &domain.ParsedWorkbook{Sheets: []domain.ParsedSheet{{Name: "A"}, {Name: "A "}}}},
		{"hint out of range", "wb", &domain.ParsedWorkbook{Sheets: []domain.ParsedSheet{{
			Name: "A", Rows: rows, Sections: []domain.SectionHint{{Start: 1, End: 4}},
		}}}},
		{"negative start", "wb", &domain.ParsedWorkbook{Sheets: []domain.ParsedSheet{{
			Name: "A", Rows: rows, Sections: []domain.SectionHint{{Start: -1, End: 1}},
		}}}},
		{"empty hint", "wb", &domain.ParsedWorkbook{Sheets: []domain.ParsedSheet{{
			Name: "A", Rows: rows, Sections: []domain.SectionHint{{Start: 1, End: 1}},
		}}}},
		{"overlapping hints", "wb", &domain.ParsedWorkbook{Sheets: []domain.ParsedSheet{{
			Name: "A", Rows: rows, Sections: []domain.SectionHint{{Start: 0, End: 2}, {Start: 1, End: 3}},
		}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := NewHierarchyBuilder().Build(tt.id, tt.wb)
			assert.Nil(t, tree)
			assert.True(t, errors.Is(err, domain.ErrStructural), "got %v", err)
		})
	}
}

func TestHierarchyBuilder_Build_DeterministicIDs(t *testing.T) {
	a, err := fixedBuilder(time.Unix(100, 0)).Build("wb1", salesWorkbook())
	require.NoError(t, err)
	b, err := fixedBuilder(time.Unix(200, 0)).Build("wb1", salesWorkbook())
	require.NoError(t, err)
	other, err := fixedBuilder(time.Unix(100, 0)).Build("wb2", salesWorkbook())
	require.NoError(t, err)

	require.Equal(t, a.Len(), b.Len())
	for i := range a.Chunks {
		assert.Equal(t, a.Chunks[i].ID, b.Chunks[i].ID)
		assert.Equal(t, a.Chunks[i].ContentHash, b.Chunks[i].ContentHash)
		assert.NotEqual(t, a.Chunks[i].ID, other.Chunks[i].ID, "ids are scoped to the workbook")
	}
}

func TestContentHash_IgnoresPositionAndTime(t *testing.T) {
	c := domain.Chunk{
		Level:   domain.LevelRow,
		Text:    "Region: North",
		Ordinal: 1,
		Metadata: map[string]any{
			domain.MetaSheetName: "Sales",
			domain.MetaRowNumber: 2,
			domain.MetaCreatedAt: "2024-01-01T00:00:00Z",
		},
	}
	moved := c.Clone()
	moved.Ordinal = 5
	moved.Metadata[domain.MetaRowNumber] = 9
	moved.Metadata[domain.MetaCreatedAt] = "2025-01-01T00:00:00Z"
	assert.Equal(t, ContentHash(&c), ContentHash(&moved))

	renamed := c.Clone()
	renamed.Metadata[domain.MetaSheetName] = "Inventory"
	assert.NotEqual(t, ContentHash(&c), ContentHash(&renamed))

	edited := c.Clone()
	edited.Text = "Region: South"
	assert.NotEqual(t, ContentHash(&c), ContentHash(&edited))
}

func TestHierarchyBuilder_Diff_Idempotent(t *testing.T) {
	b := fixedBuilder(time.Unix(100, 0))
	first, err := b.Build("wb1", salesWorkbook())
	require.NoError(t, err)

	later := fixedBuilder(time.Unix(500, 0))
	second, err := later.Build("wb1", salesWorkbook())
	require.NoError(t, err)

	cs := later.Diff(first.Chunks, second)
	assert.True(t, cs.Empty())
	assert.Len(t, cs.Unchanged, first.Len())
	for _, c := range cs.Unchanged {
		assert.Equal(t, time.Unix(100, 0).UTC(), c.CreatedAt, "created_at survives re-ingestion")
	}
}

func TestHierarchyBuilder_Diff_SheetDeleted(t *testing.T) {
	b := NewHierarchyBuilder()
	first, err := b.Build("wb1", salesWorkbook())
	require.NoError(t, err)
	second, err := b.Build("wb1", salesOnly())
	require.NoError(t, err)

	cs := b.Diff(first.Chunks, second)

	// Inventory sheet, its section and its two rows go; the root text changes.
	require.Len(t, cs.Removed, 4)
	assert.Equal(t, domain.LevelRow, cs.Removed[0].Level)
	assert.Equal(t, domain.LevelRow, cs.Removed[1].Level)
	assert.Equal(t, domain.LevelSection, cs.Removed[2].Level)
	assert.Equal(t, domain.LevelSheet, cs.Removed[3].Level)
	for _, c := range cs.Removed {
		assert.NotEqual(t, "Sales", c.SheetName())
	}

	require.Len(t, cs.Changed, 1)
	assert.Equal(t, domain.LevelWorkbook, cs.Changed[0].Level)
	assert.Empty(t, cs.Added)
	assert.Len(t, cs.Unchanged, 5, "Sales sheet, section and rows are untouched")
	assert.Equal(t, cs.RemovedIDs()[3], cs.Removed[3].ID)
}

func TestHierarchyBuilder_Diff_ChangedAddedTouched(t *testing.T) {
	b := NewHierarchyBuilder()
	first, err := b.Build("wb1", salesOnly())
	require.NoError(t, err)

	wb := salesOnly()
	wb.Sheets[0].Rows[0][2] = "1300"
	wb.Sheets[0].Rows = append(wb.Sheets[0].Rows, []string{"West", "Q4", "100"})
	second, err := b.Build("wb1", wb)
	require.NoError(t, err)

	cs := b.Diff(first.Chunks, second)

	var changedRows, addedRows int
	for _, c := range cs.Changed {
		if c.Level == domain.LevelRow {
			changedRows++
		}
	}
	for _, c := range cs.Added {
		if c.Level == domain.LevelRow {
			addedRows++
		}
	}
	assert.Equal(t, 1, changedRows)
	assert.Equal(t, 1, addedRows)
	assert.Empty(t, cs.Removed)

	ups := cs.Upserts()
	for i := 1; i < len(ups); i++ {
		assert.LessOrEqual(t, ups[i-1].Level, ups[i].Level, "upserts are parent-first")
	}
}

func TestHierarchyBuilder_Diff_TouchedOnMetadataOnly(t *testing.T) {
	b := NewHierarchyBuilder()
	first, err := b.Build("wb1", salesOnly())
	require.NoError(t, err)

	prev := make([]domain.Chunk, len(first.Chunks))
	for i, c := range first.Chunks {
		prev[i] = c.Clone()
	}
	row := rowChunks(prev)[0]
	for i := range prev {
		if prev[i].ID == row.ID {
			prev[i].Metadata[domain.MetaRowNumber] = 42
		}
	}

	second, err := b.Build("wb1", salesOnly())
	require.NoError(t, err)
	cs := b.Diff(prev, second)

	require.Len(t, cs.Touched, 1)
	assert.Equal(t, row.ID, cs.Touched[0].ID)
	assert.Equal(t, 1, cs.Touched[0].RowNumber())
}
