package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// Tree is one generation of a workbook's chunk hierarchy.
// Chunks are stored parent-first: every chunk appears after its parent.
type Tree struct {
	WorkbookID string
	RootID     string
	Chunks     []domain.Chunk

	byID map[string]int
}

// Get returns the chunk with the given ID.
func (t *Tree) Get(id string) (*domain.Chunk, bool) {
	i, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return &t.Chunks[i], true
}

// Len returns the number of chunks in the tree.
func (t *Tree) Len() int {
	return len(t.Chunks)
}

// HierarchyBuilder turns parsed workbooks into chunk trees and diffs
// successive generations. It is the only writer of parent/child links.
type HierarchyBuilder struct {
	now func() time.Time
}

// NewHierarchyBuilder creates a builder that stamps new chunks with the
// current time.
func NewHierarchyBuilder() *HierarchyBuilder {
	return &HierarchyBuilder{now: time.Now}
}

// Build produces the chunk tree Workbook → Sheet → Section → Row.
// Returns a *domain.StructuralError if the parsed structure is malformed.
func (b *HierarchyBuilder) Build(workbookID string, wb *domain.ParsedWorkbook) (*Tree, error) {
	workbookID = strings.TrimSpace(workbookID)
	if workbookID == "" {
		return nil, &domain.StructuralError{Reason: "workbook id is empty"}
	}
	if wb == nil {
		return nil, &domain.StructuralError{WorkbookID: workbookID, Reason: "no parsed workbook"}
	}

	if err := validateSheets(workbookID, wb.Sheets); err != nil {
		return nil, err
	}

	now := b.now().UTC()
	t := &Tree{WorkbookID: workbookID, byID: make(map[string]int)}

	name := normalizeCell(wb.Name)
	if name == "" {
		name = workbookID
	}
	sheetNames := make([]string, len(wb.Sheets))
	for i, s := range wb.Sheets {
		sheetNames[i] = normalizeCell(s.Name)
	}

	root := newChunk(workbookID, domain.LevelWorkbook, "", 0, "workbook", now)
	root.Text = fmt.Sprintf("Workbook: %s. Sheets: %s", name, strings.Join(sheetNames, ", "))
	root.Metadata[domain.MetaWorkbookName] = name
	t.RootID = root.ID
	t.add(root)

	for si, sheet := range wb.Sheets {
		b.buildSheet(t, root.ID, si, sheet, now)
	}

	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (b *HierarchyBuilder) buildSheet(t *Tree, parentID string, ordinal int, sheet domain.ParsedSheet, now time.Time) {
	sheetName := normalizeCell(sheet.Name)
	headers := make([]string, len(sheet.Headers))
	for i, h := range sheet.Headers {
		headers[i] = normalizeCell(h)
	}
	joinedHeaders := strings.Join(headers, ", ")
	sheetPath := "sheet:" + sheetName

	sc := newChunk(t.WorkbookID, domain.LevelSheet, parentID, ordinal, sheetPath, now)
	sc.Metadata[domain.MetaSheetName] = sheetName
	sc.Metadata[domain.MetaColumnHeaders] = joinedHeaders
	sc.Text = fmt.Sprintf("Sheet: %s. Columns: %s. Rows: %d", sheetName, joinedHeaders, len(sheet.Rows))
	t.add(sc)

	for secOrd, span := range sectionSpans(sheet) {
		secPath := sheetPath + "/section:" + strconv.Itoa(secOrd)
		sec := newChunk(t.WorkbookID, domain.LevelSection, sc.ID, secOrd, secPath, now)
		sec.Metadata[domain.MetaSheetName] = sheetName
		sec.Metadata[domain.MetaColumnHeaders] = joinedHeaders
		label := normalizeCell(span.Label)
		if label != "" {
			sec.Metadata[domain.MetaSectionLabel] = label
		}
		sec.Text = sectionText(sheetName, label, secOrd, span, joinedHeaders)
		t.add(sec)

		for i := span.Start; i < span.End; i++ {
			rowOrd := i - span.Start
			row := newChunk(t.WorkbookID, domain.LevelRow, sec.ID, rowOrd, secPath+"/row:"+strconv.Itoa(rowOrd), now)
			row.Metadata[domain.MetaSheetName] = sheetName
			row.Metadata[domain.MetaColumnHeaders] = joinedHeaders
			row.Metadata[domain.MetaRowNumber] = i + 1
			if label != "" {
				row.Metadata[domain.MetaSectionLabel] = label
			}
			row.Text = RowText(headers, sheet.Rows[i])
			t.add(row)
		}
	}
}

// RowText renders cell values paired with their column headers:
// "Region: North | Quarter: Q1 | Revenue: 1200". Empty cells are skipped
// and cells without a header are labelled by column number.
func RowText(headers, cells []string) string {
	parts := make([]string, 0, len(cells))
	for i, cell := range cells {
		v := normalizeCell(cell)
		if v == "" {
			continue
		}
		h := ""
		if i < len(headers) {
			h = headers[i]
		}
		if h == "" {
			h = "Column " + strconv.Itoa(i+1)
		}
		parts = append(parts, h+": "+v)
	}
	return strings.Join(parts, " | ")
}

func sectionText(sheet, label string, ordinal int, span domain.SectionHint, headers string) string {
	var b strings.Builder
	if label != "" {
		fmt.Fprintf(&b, "Section: %s", label)
	} else {
		fmt.Fprintf(&b, "Section %d", ordinal+1)
	}
	fmt.Fprintf(&b, " of sheet %s", sheet)
	if span.Len() > 0 {
		fmt.Fprintf(&b, ". Rows %d-%d", span.Start+1, span.End)
	}
	if headers != "" {
		fmt.Fprintf(&b, ". Columns: %s", headers)
	}
	return b.String()
}

// sectionSpans turns hints into a complete, ordered partition of the rows.
// Rows not covered by any hint form unlabelled gap sections. A sheet without
// hints is one section; an empty sheet is one empty section.
func sectionSpans(sheet domain.ParsedSheet) []domain.SectionHint {
	n := len(sheet.Rows)
	if len(sheet.Sections) == 0 {
		return []domain.SectionHint{{Start: 0, End: n}}
	}

	hints := make([]domain.SectionHint, len(sheet.Sections))
	copy(hints, sheet.Sections)
	sort.Slice(hints, func(i, j int) bool { return hints[i].Start < hints[j].Start })

	var spans []domain.SectionHint
	next := 0
	for _, h := range hints {
		if h.Start > next {
			spans = append(spans, domain.SectionHint{Start: next, End: h.Start})
		}
		spans = append(spans, h)
		next = h.End
	}
	if next < n {
		spans = append(spans, domain.SectionHint{Start: next, End: n})
	}
	return spans
}

func validateSheets(workbookID string, sheets []domain.ParsedSheet) error {
	seen := make(map[string]bool, len(sheets))
	for i, s := range sheets {
		name := normalizeCell(s.Name)
		path := fmt.Sprintf("sheet[%d]", i)
		if name == "" {
			return &domain.StructuralError{WorkbookID: workbookID, Path: path, Reason: "sheet name is empty"}
		}
		if seen[name] {
			return &domain.StructuralError{WorkbookID: workbookID, Path: path, Reason: fmt.Sprintf("duplicate sheet name %q", name)}
		}
		seen[name] = true

		hints := make([]domain.SectionHint, len(s.Sections))
		copy(hints, s.Sections)
		sort.Slice(hints, func(a, b int) bool { return hints[a].Start < hints[b].Start })
		for j, h := range hints {
			hpath := fmt.Sprintf("%s/section[%d..%d)", name, h.Start, h.End)
			switch {
			case h.Start < 0 || h.End > len(s.Rows):
				return &domain.StructuralError{WorkbookID: workbookID, Path: hpath,
					Reason: fmt.Sprintf("section hint out of range (sheet has %d rows)", len(s.Rows))}
			case h.Len() <= 0:
				return &domain.StructuralError{WorkbookID: workbookID, Path: hpath, Reason: "section hint is empty"}
			case j > 0 && h.Start < hints[j-1].End:
				return &domain.StructuralError{WorkbookID: workbookID, Path: hpath, Reason: "section hints overlap"}
			}
		}
	}
	return nil
}

func (t *Tree) add(c domain.Chunk) {
	c.ContentHash = ContentHash(&c)
	t.byID[c.ID] = len(t.Chunks)
	t.Chunks = append(t.Chunks, c)
}

// validate checks parent existence, parent-first order and sibling ordinals.
func (t *Tree) validate() error {
	if len(t.byID) != len(t.Chunks) {
		return &domain.StructuralError{WorkbookID: t.WorkbookID, Reason: "duplicate chunk id"}
	}
	ordinals := make(map[string]map[int]bool)
	for i, c := range t.Chunks {
		if c.IsRoot() {
			if i != 0 {
				return &domain.StructuralError{WorkbookID: t.WorkbookID, Path: c.ID, Reason: "more than one root"}
			}
			continue
		}
		pi, ok := t.byID[c.ParentID]
		if !ok || pi >= i {
			return &domain.StructuralError{WorkbookID: t.WorkbookID, Path: c.ID, Reason: "orphan chunk: parent " + c.ParentID + " not built"}
		}
		sib, ok := ordinals[c.ParentID]
		if !ok {
			sib = make(map[int]bool)
			ordinals[c.ParentID] = sib
		}
		if sib[c.Ordinal] {
			return &domain.StructuralError{WorkbookID: t.WorkbookID, Path: c.ID, Reason: fmt.Sprintf("duplicate ordinal %d", c.Ordinal)}
		}
		sib[c.Ordinal] = true
	}
	return nil
}

func newChunk(workbookID string, level domain.Level, parentID string, ordinal int, path string, now time.Time) domain.Chunk {
	return domain.Chunk{
		ID:         ChunkID(workbookID, path),
		WorkbookID: workbookID,
		Level:      level,
		ParentID:   parentID,
		Ordinal:    ordinal,
		Metadata: map[string]any{
			domain.MetaWorkbookID: workbookID,
			domain.MetaCreatedAt:  now.Format(time.RFC3339Nano),
		},
		CreatedAt: now,
	}
}

// ChunkID derives a stable chunk ID from the workbook ID and structural path.
func ChunkID(workbookID, path string) string {
	sum := sha256.Sum256([]byte(workbookID + "\x00" + path))
	return hex.EncodeToString(sum[:16])
}

// ContentHash fingerprints the text and the structurally relevant metadata
// of a chunk. Row numbers, ordinals and timestamps are excluded, so moved
// but otherwise identical content keeps its hash and its embedding.
func ContentHash(c *domain.Chunk) string {
	h := sha256.New()
	for _, part := range []string{
		c.Level.String(),
		c.Text,
		c.SheetName(),
		c.SectionLabel(),
		c.ColumnHeaders(),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeCell trims and collapses whitespace.
func normalizeCell(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ChangeSet classifies every chunk of a new generation against the previous one.
type ChangeSet struct {
	// Added chunks have IDs not present before.
	Added []domain.Chunk
	// Changed chunks kept their ID but their content hash differs; they need re-embedding.
	Changed []domain.Chunk
	// Touched chunks have the same hash but moved or had metadata updated.
	Touched []domain.Chunk
	// Unchanged chunks need no write.
	Unchanged []domain.Chunk
	// Removed lists previous chunks that no longer exist, children before parents.
	Removed []domain.Chunk
}

// Upserts returns Added, Changed and Touched chunks in parent-first order.
func (cs *ChangeSet) Upserts() []domain.Chunk {
	out := make([]domain.Chunk, 0, len(cs.Added)+len(cs.Changed)+len(cs.Touched))
	out = append(out, cs.Added...)
	out = append(out, cs.Changed...)
	out = append(out, cs.Touched...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}

// RemovedIDs returns the IDs of removed chunks, children first.
func (cs *ChangeSet) RemovedIDs() []string {
	ids := make([]string, len(cs.Removed))
	for i, c := range cs.Removed {
		ids[i] = c.ID
	}
	return ids
}

// Empty returns true if nothing needs to be written.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Added)+len(cs.Changed)+len(cs.Touched)+len(cs.Removed) == 0
}

// Diff classifies next against the previous generation. Chunks are matched
// by ID, which encodes the (level, ordinal path) identity. Existing chunks
// keep their original creation time.
func (b *HierarchyBuilder) Diff(previous []domain.Chunk, next *Tree) ChangeSet {
	prev := make(map[string]*domain.Chunk, len(previous))
	for i := range previous {
		prev[previous[i].ID] = &previous[i]
	}

	var cs ChangeSet
	seen := make(map[string]bool, next.Len())
	for i := range next.Chunks {
		c := &next.Chunks[i]
		seen[c.ID] = true
		old, ok := prev[c.ID]
		if !ok {
			cs.Added = append(cs.Added, *c)
			continue
		}

		c.CreatedAt = old.CreatedAt
		if v, ok := old.Metadata[domain.MetaCreatedAt]; ok {
			c.Metadata[domain.MetaCreatedAt] = v
		}

		switch {
		case old.ContentHash != c.ContentHash:
			cs.Changed = append(cs.Changed, *c)
		case old.Ordinal != c.Ordinal || old.ParentID != c.ParentID || !domain.MetadataEqual(old.Metadata, c.Metadata):
			cs.Touched = append(cs.Touched, *c)
		default:
			cs.Unchanged = append(cs.Unchanged, *c)
		}
	}

	cs.Removed = cascadeRemoved(previous, seen)
	return cs
}

// cascadeRemoved walks the previous tree from every removed subtree root and
// lists descendants before their parents.
func cascadeRemoved(previous []domain.Chunk, keep map[string]bool) []domain.Chunk {
	byID := make(map[string]*domain.Chunk, len(previous))
	children := make(map[string][]string)
	for i := range previous {
		c := &previous[i]
		byID[c.ID] = c
		if !c.IsRoot() {
			children[c.ParentID] = append(children[c.ParentID], c.ID)
		}
	}
	for _, kids := range children {
		sort.Strings(kids)
	}

	var roots []string
	for i := range previous {
		c := &previous[i]
		if keep[c.ID] {
			continue
		}
		if _, parentKnown := byID[c.ParentID]; c.IsRoot() || !parentKnown || keep[c.ParentID] {
			roots = append(roots, c.ID)
		}
	}
	sort.Strings(roots)

	var out []domain.Chunk
	visited := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, kid := range children[id] {
			walk(kid)
		}
		out = append(out, *byID[id])
	}
	for _, id := range roots {
		walk(id)
	}
	return out
}
