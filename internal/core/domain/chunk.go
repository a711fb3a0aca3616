package domain

import "time"

// Level is the depth of a chunk in the workbook hierarchy.
// Lower values are shallower.
type Level int

// Hierarchy levels, root first.
const (
	LevelWorkbook Level = iota
	LevelSheet
	LevelSection
	LevelRow
)

// String returns the lower-case level name.
func (l Level) String() string {
	switch l {
	case LevelWorkbook:
		return "workbook"
	case LevelSheet:
		return "sheet"
	case LevelSection:
		return "section"
	case LevelRow:
		return "row"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name back to a Level.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "workbook":
		return LevelWorkbook, true
	case "sheet":
		return LevelSheet, true
	case "section":
		return LevelSection, true
	case "row":
		return LevelRow, true
	default:
		return 0, false
	}
}

// Metadata keys carried by chunks. Values are always scalars.
const (
	MetaWorkbookID    = "workbook_id"
	MetaSheetName     = "sheet_name"
	MetaSectionLabel  = "section_label"
	MetaRowNumber     = "row_number"
	MetaColumnHeaders = "column_headers"
	MetaCreatedAt     = "created_at"
	MetaLevel         = "level"

	// MetaWorkbookName is carried by the workbook root only.
	MetaWorkbookName = "workbook_name"
)

// Chunk is the atomic retrievable unit of the hierarchy.
type Chunk struct {
	// ID is derived from the workbook ID and the chunk's structural path,
	// so re-ingestion of the same position yields the same ID.
	ID string

	// WorkbookID is the external identifier of the owning workbook.
	WorkbookID string

	// Level is the position in the hierarchy.
	Level Level

	// Text is the normalised, self-describing content.
	Text string

	// ParentID is empty only for the workbook root.
	ParentID string

	// Ordinal is the position among siblings.
	Ordinal int

	// Metadata holds scalar values keyed by the Meta* constants.
	Metadata map[string]any

	// ContentHash fingerprints the text and structural metadata.
	ContentHash string

	// CreatedAt is when this chunk ID first entered the index.
	CreatedAt time.Time
}

// IsRoot returns true for the workbook root chunk.
func (c *Chunk) IsRoot() bool {
	return c.ParentID == ""
}

// SheetName returns the sheet_name metadata value, if any.
func (c *Chunk) SheetName() string {
	return metaString(c.Metadata, MetaSheetName)
}

// SectionLabel returns the section_label metadata value, if any.
func (c *Chunk) SectionLabel() string {
	return metaString(c.Metadata, MetaSectionLabel)
}

// ColumnHeaders returns the joined column headers, if any.
func (c *Chunk) ColumnHeaders() string {
	return metaString(c.Metadata, MetaColumnHeaders)
}

// RowNumber returns the 1-based row number for row chunks, or 0.
func (c *Chunk) RowNumber() int {
	v, ok := c.Metadata[MetaRowNumber]
	if !ok {
		return 0
	}
	f, ok := toFloat(v)
	if !ok {
		return 0
	}
	return int(f)
}

// Clone returns a copy with its own metadata map.
func (c Chunk) Clone() Chunk {
	meta := make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	c.Metadata = meta
	return c
}

func metaString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// WorkbookRecord describes an ingested workbook.
type WorkbookRecord struct {
	// ID is the caller-supplied external identifier.
	ID string

	// Name is the display name from the parser.
	Name string

	// Source is where the parsed structure came from (file path, URI).
	Source string

	// RootID is the chunk ID of the workbook root.
	RootID string

	// IngestedAt is when the workbook was first ingested.
	IngestedAt time.Time

	// UpdatedAt is the time of the latest ingestion.
	UpdatedAt time.Time
}

// WorkbookSummary is a WorkbookRecord with index statistics.
type WorkbookSummary struct {
	WorkbookRecord

	// Chunks is the number of chunks in the index for this workbook.
	Chunks int

	// Pending is the number of chunks in EmbeddingPending state.
	Pending int
}

// MetadataEqual compares two metadata maps, ignoring created_at.
// Numeric values compare by value regardless of their Go type.
func MetadataEqual(a, b map[string]any) bool {
	count := func(m map[string]any) int {
		n := len(m)
		if _, ok := m[MetaCreatedAt]; ok {
			n--
		}
		return n
	}
	if count(a) != count(b) {
		return false
	}
	for k, va := range a {
		if k == MetaCreatedAt {
			continue
		}
		vb, ok := b[k]
		if !ok || !scalarEqual(va, vb) {
			return false
		}
	}
	return true
}
