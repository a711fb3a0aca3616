package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelWorkbook, "workbook"},
		{LevelSheet, "sheet"},
		{LevelSection, "section"},
		{LevelRow, "row"},
		{Level(9), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, l := range []Level{LevelWorkbook, LevelSheet, LevelSection, LevelRow} {
		got, ok := ParseLevel(l.String())
		assert.True(t, ok)
		assert.Equal(t, l, got)
	}

	_, ok := ParseLevel("cell")
	assert.False(t, ok)
}

func TestChunk_Accessors(t *testing.T) {
	c := Chunk{
		ID:       "r1",
		ParentID: "s1",
		Level:    LevelRow,
		Metadata: map[string]any{
			MetaSheetName:     "Sales",
			MetaSectionLabel:  "Q1",
			MetaColumnHeaders: "Region | Revenue",
			MetaRowNumber:     float64(7),
		},
	}

	assert.False(t, c.IsRoot())
	assert.Equal(t, "Sales", c.SheetName())
	assert.Equal(t, "Q1", c.SectionLabel())
	assert.Equal(t, "Region | Revenue", c.ColumnHeaders())
	assert.Equal(t, 7, c.RowNumber())

	root := Chunk{ID: "wb", Level: LevelWorkbook}
	assert.True(t, root.IsRoot())
	assert.Equal(t, 0, root.RowNumber())
	assert.Empty(t, root.SheetName())
}

func TestChunk_Clone(t *testing.T) {
	c := Chunk{ID: "r1", Metadata: map[string]any{MetaSheetName: "Sales"}}

	clone := c.Clone()
	clone.Metadata[MetaSheetName] = "Inventory"

	assert.Equal(t, "Sales", c.Metadata[MetaSheetName])
	assert.Equal(t, "r1", clone.ID)
}

func TestMetadataEqual(t *testing.T) {
	base := map[string]any{
		MetaWorkbookID: "wb1",
		MetaRowNumber:  3,
		MetaCreatedAt:  "2024-01-01T00:00:00Z",
	}

	t.Run("ignores created_at", func(t *testing.T) {
		other := map[string]any{MetaWorkbookID: "wb1", MetaRowNumber: 3, MetaCreatedAt: "2025-06-01T00:00:00Z"}
		assert.True(t, MetadataEqual(base, other))
	})

	t.Run("created_at missing on one side", func(t *testing.T) {
		other := map[string]any{MetaWorkbookID: "wb1", MetaRowNumber: 3}
		assert.True(t, MetadataEqual(base, other))
		assert.True(t, MetadataEqual(other, base))
	})

	t.Run("numeric kinds compare by value", func(t *testing.T) {
		other := map[string]any{MetaWorkbookID: "wb1", MetaRowNumber: float64(3)}
		assert.True(t, MetadataEqual(base, other))
	})

	t.Run("different value", func(t *testing.T) {
		other := map[string]any{MetaWorkbookID: "wb1", MetaRowNumber: 4}
		assert.False(t, MetadataEqual(base, other))
	})

	t.Run("extra key", func(t *testing.T) {
		other := map[string]any{MetaWorkbookID: "wb1", MetaRowNumber: 3, MetaSheetName: "Sales"}
		assert.False(t, MetadataEqual(base, other))
	})
}

func TestSectionHint_Len(t *testing.T) {
	assert.Equal(t, 3, SectionHint{Start: 2, End: 5}.Len())
	assert.Equal(t, 0, SectionHint{Start: 2, End: 2}.Len())
}

func TestIntegrityReport_OK(t *testing.T) {
	assert.True(t, IntegrityReport{Chunks: 4}.OK())
	assert.False(t, IntegrityReport{Problems: []IntegrityError{{ChunkID: "c1"}}}.OK())
}
