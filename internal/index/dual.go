package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// Config configures a Dual index.
type Config struct {
	// Dimensions is the fixed embedding size D. Vectors of any other size are rejected.
	Dimensions int

	// K1 and B are the BM25 parameters. Zero values select the defaults.
	K1 float64
	B  float64
}

// Update is one IndexEntry write. A nil Vector leaves the chunk in
// EmbeddingPending state: keyword-searchable, invisible to vector search.
type Update struct {
	Chunk  domain.Chunk
	Vector []float32
}

// Stats describes the index contents.
type Stats struct {
	Chunks    int
	Vectors   int
	Pending   int
	Terms     int
	Workbooks int
}

// Dual is the combined vector + keyword index.
type Dual struct {
	mu sync.RWMutex

	entries    map[string]*domain.Chunk
	children   map[string]map[string]struct{} // parent ID -> child IDs
	byWorkbook map[string]map[string]struct{} // workbook ID -> chunk IDs

	vector  *vectorIndex
	keyword *keywordIndex
}

// New creates an empty Dual index.
func New(cfg Config) *Dual {
	k1, b := cfg.K1, cfg.B
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b < 0 || b > 1 {
		b = DefaultB
	}
	return &Dual{
		entries:    make(map[string]*domain.Chunk),
		children:   make(map[string]map[string]struct{}),
		byWorkbook: make(map[string]map[string]struct{}),
		vector:     newVectorIndex(cfg.Dimensions),
		keyword:    newKeywordIndex(k1, b),
	}
}

// Dimensions returns the embedding size of the index.
func (d *Dual) Dimensions() int {
	return d.vector.dims
}

// Upsert inserts or updates one entry. The parent of a non-root chunk must
// already be indexed.
func (d *Dual) Upsert(u Update) error {
	if err := d.checkVector(u.Chunk.ID, u.Vector); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.upsertLocked(u)
}

// Apply writes a batch: upserts parent-first, then removals child-first.
// Each entry is its own write, so concurrent readers may observe a batch
// half-applied but never a chunk without its ancestors.
func (d *Dual) Apply(upserts []Update, removals []string) error {
	for _, u := range upserts {
		if err := d.checkVector(u.Chunk.ID, u.Vector); err != nil {
			return err
		}
	}

	ordered := make([]Update, len(upserts))
	copy(ordered, upserts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Chunk.Level < ordered[j].Chunk.Level
	})
	for _, u := range ordered {
		if err := d.Upsert(u); err != nil {
			return err
		}
	}

	for _, id := range d.childFirst(removals) {
		d.removeOne(id)
	}
	return nil
}

// Remove deletes a chunk and all of its descendants, children first.
// Returns the removed IDs. Removing an unknown ID is a no-op.
func (d *Dual) Remove(id string) []string {
	ids := d.childFirst([]string{id})
	for _, rid := range ids {
		d.removeOne(rid)
	}
	return ids
}

// RemoveWorkbook deletes every chunk of a workbook.
func (d *Dual) RemoveWorkbook(workbookID string) []string {
	d.mu.RLock()
	ids := make([]string, 0, len(d.byWorkbook[workbookID]))
	for id := range d.byWorkbook[workbookID] {
		ids = append(ids, id)
	}
	d.mu.RUnlock()

	ordered := d.childFirst(ids)
	for _, id := range ordered {
		d.removeOne(id)
	}
	return ordered
}

// SetVector attaches an embedding to an indexed chunk, clearing its
// pending state.
func (d *Dual) SetVector(id string, vec []float32) error {
	if err := d.checkVector(id, vec); err != nil {
		return err
	}
	if vec == nil {
		return fmt.Errorf("%w: nil vector for %s", domain.ErrInvalidInput, id)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[id]; !ok {
		return fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	d.vector.put(id, vec)
	return nil
}

// Get returns a copy of an indexed chunk.
func (d *Dual) Get(id string) (domain.Chunk, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.entries[id]
	if !ok {
		return domain.Chunk{}, false
	}
	return c.Clone(), true
}

// IsPending reports whether an indexed chunk lacks an embedding.
func (d *Dual) IsPending(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.entries[id]
	return ok && !d.vector.has(id)
}

// Pending returns the IDs of all chunks in EmbeddingPending state, sorted.
func (d *Dual) Pending() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var ids []string
	for id := range d.entries {
		if !d.vector.has(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Chunks returns copies of every chunk of a workbook, or of the whole index
// when workbookID is empty, sorted by level then ID.
func (d *Dual) Chunks(workbookID string) []domain.Chunk {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []domain.Chunk
	if workbookID == "" {
		out = make([]domain.Chunk, 0, len(d.entries))
		for _, c := range d.entries {
			out = append(out, c.Clone())
		}
	} else {
		for id := range d.byWorkbook[workbookID] {
			out = append(out, d.entries[id].Clone())
		}
	}
	sortChunks(out)
	return out
}

// WorkbookStats returns the chunk and pending counts of one workbook.
func (d *Dual) WorkbookStats(workbookID string) (chunks, pending int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for id := range d.byWorkbook[workbookID] {
		chunks++
		if !d.vector.has(id) {
			pending++
		}
	}
	return chunks, pending
}

// Stats returns index statistics.
func (d *Dual) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Stats{
		Chunks:    len(d.entries),
		Vectors:   len(d.vector.vectors),
		Pending:   len(d.entries) - len(d.vector.vectors),
		Terms:     d.keyword.terms(),
		Workbooks: len(d.byWorkbook),
	}
}

// Reset drops every entry.
func (d *Dual) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = make(map[string]*domain.Chunk)
	d.children = make(map[string]map[string]struct{})
	d.byWorkbook = make(map[string]map[string]struct{})
	d.vector = newVectorIndex(d.vector.dims)
	d.keyword = newKeywordIndex(d.keyword.k1, d.keyword.b)
}

// Check scans the index for orphans, cross-workbook links, duplicate
// sibling ordinals and parent cycles.
func (d *Dual) Check() []domain.IntegrityError {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var problems []domain.IntegrityError
	ids := make([]string, 0, len(d.entries))
	for id := range d.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		c := d.entries[id]
		if c.IsRoot() {
			if c.Level != domain.LevelWorkbook {
				problems = append(problems, domain.IntegrityError{ChunkID: id, Reason: "non-workbook chunk without parent"})
			}
			continue
		}
		parent, ok := d.entries[c.ParentID]
		if !ok {
			problems = append(problems, domain.IntegrityError{ChunkID: id, MissingID: c.ParentID})
			continue
		}
		if parent.WorkbookID != c.WorkbookID {
			problems = append(problems, domain.IntegrityError{ChunkID: id, Reason: "parent belongs to another workbook"})
		}
		if parent.Level >= c.Level {
			problems = append(problems, domain.IntegrityError{ChunkID: id, Reason: "parent is not shallower"})
		}
	}

	for parentID, kids := range d.children {
		seen := make(map[int]string, len(kids))
		for _, kid := range sortedKeys(kids) {
			ord := d.entries[kid].Ordinal
			if other, dup := seen[ord]; dup {
				problems = append(problems, domain.IntegrityError{
					ChunkID: kid,
					Reason:  fmt.Sprintf("ordinal %d duplicates sibling %s under %s", ord, other, parentID),
				})
				continue
			}
			seen[ord] = kid
		}
	}

	sort.SliceStable(problems, func(i, j int) bool { return problems[i].ChunkID < problems[j].ChunkID })
	return problems
}

// View runs fn with a consistent read view of the index. Sub-searches on the
// view may run concurrently but must finish before fn returns.
func (d *Dual) View(fn func(v *View) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return fn(&View{d: d})
}

func (d *Dual) checkVector(id string, vec []float32) error {
	if vec != nil && len(vec) != d.vector.dims {
		return fmt.Errorf("%w: chunk %s has %d dimensions, index expects %d",
			domain.ErrDimensionMismatch, id, len(vec), d.vector.dims)
	}
	return nil
}

func (d *Dual) upsertLocked(u Update) error {
	c := u.Chunk.Clone()
	if !c.IsRoot() {
		if _, ok := d.entries[c.ParentID]; !ok {
			return &domain.IntegrityError{ChunkID: c.ID, MissingID: c.ParentID, Reason: "parent not indexed"}
		}
	}

	if prev, ok := d.entries[c.ID]; ok && prev.ParentID != c.ParentID {
		d.unlinkLocked(prev)
	}

	d.entries[c.ID] = &c
	if !c.IsRoot() {
		kids, ok := d.children[c.ParentID]
		if !ok {
			kids = make(map[string]struct{})
			d.children[c.ParentID] = kids
		}
		kids[c.ID] = struct{}{}
	}
	wb, ok := d.byWorkbook[c.WorkbookID]
	if !ok {
		wb = make(map[string]struct{})
		d.byWorkbook[c.WorkbookID] = wb
	}
	wb[c.ID] = struct{}{}

	d.keyword.put(c.ID, c.Text)
	if u.Vector != nil {
		d.vector.put(c.ID, u.Vector)
	} else {
		d.vector.remove(c.ID)
	}
	return nil
}

func (d *Dual) removeOne(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.entries[id]
	if !ok {
		return
	}
	d.unlinkLocked(c)
	delete(d.entries, id)
	delete(d.children, id)
	d.keyword.remove(id)
	d.vector.remove(id)
}

func (d *Dual) unlinkLocked(c *domain.Chunk) {
	if kids, ok := d.children[c.ParentID]; ok {
		delete(kids, c.ID)
		if len(kids) == 0 {
			delete(d.children, c.ParentID)
		}
	}
	if wb, ok := d.byWorkbook[c.WorkbookID]; ok {
		delete(wb, c.ID)
		if len(wb) == 0 {
			delete(d.byWorkbook, c.WorkbookID)
		}
	}
}

// childFirst expands ids to include all indexed descendants and orders the
// result so every chunk precedes its parent.
func (d *Dual) childFirst(ids []string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []string
	visited := make(map[string]struct{})
	var walk func(id string)
	walk = func(id string) {
		if _, done := visited[id]; done {
			return
		}
		visited[id] = struct{}{}
		for _, kid := range sortedKeys(d.children[id]) {
			walk(kid)
		}
		out = append(out, id)
	}

	roots := make([]string, len(ids))
	copy(roots, ids)
	// Deepest first so an explicit child-first list keeps its order.
	sort.SliceStable(roots, func(i, j int) bool {
		return d.levelOf(roots[i]) > d.levelOf(roots[j])
	})
	for _, id := range roots {
		walk(id)
	}
	return out
}

func (d *Dual) levelOf(id string) domain.Level {
	if c, ok := d.entries[id]; ok {
		return c.Level
	}
	return domain.LevelRow + 1
}

// View is a read-only snapshot handle valid inside Dual.View.
type View struct {
	d *Dual
}

// Len returns the number of indexed chunks.
func (v *View) Len() int {
	return len(v.d.entries)
}

// Get returns a copy of an indexed chunk.
func (v *View) Get(id string) (domain.Chunk, bool) {
	c, ok := v.d.entries[id]
	if !ok {
		return domain.Chunk{}, false
	}
	return c.Clone(), true
}

// IsPending reports whether a chunk lacks an embedding.
func (v *View) IsPending(id string) bool {
	_, ok := v.d.entries[id]
	return ok && !v.d.vector.has(id)
}

// Candidates returns the sorted IDs of chunks matching the filter.
// An empty filter matches every chunk.
func (v *View) Candidates(f domain.Filter) []string {
	pool := v.d.entries
	var ids []string

	if wbID, ok := f[domain.MetaWorkbookID].(string); ok {
		for id := range v.d.byWorkbook[wbID] {
			if f.Match(pool[id]) {
				ids = append(ids, id)
			}
		}
	} else {
		for id, c := range pool {
			if len(f) == 0 || f.Match(c) {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// VectorSearch scores candidates by cosine similarity to query. Pending
// chunks are skipped. If ctx ends first, the partial scores are discarded
// and domain.ErrTimeout is returned.
func (v *View) VectorSearch(ctx context.Context, query []float32, candidates []string) (map[string]float64, error) {
	if len(query) != v.d.vector.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			domain.ErrDimensionMismatch, len(query), v.d.vector.dims)
	}
	scores, done := v.d.vector.score(query, candidates, stopper(ctx))
	if !done {
		return nil, fmt.Errorf("vector search: %w: %w", domain.ErrTimeout, ctx.Err())
	}
	return scores, nil
}

// KeywordSearch scores candidates by BM25 against the query text. Only
// candidates containing at least one query term are returned.
func (v *View) KeywordSearch(ctx context.Context, text string, candidates []string) (map[string]float64, error) {
	var set map[string]struct{}
	if len(candidates) != len(v.d.entries) {
		set = make(map[string]struct{}, len(candidates))
		for _, id := range candidates {
			set[id] = struct{}{}
		}
	}
	scores, done := v.d.keyword.score(Tokenize(text), set, stopper(ctx))
	if !done {
		return nil, fmt.Errorf("keyword search: %w: %w", domain.ErrTimeout, ctx.Err())
	}
	return scores, nil
}

func stopper(ctx context.Context) func() bool {
	return func() bool { return ctx.Err() != nil }
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortChunks(chunks []domain.Chunk) {
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Level != chunks[j].Level {
			return chunks[i].Level < chunks[j].Level
		}
		return chunks[i].ID < chunks[j].ID
	})
}
