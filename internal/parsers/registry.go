package parsers

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
	"github.com/custodia-labs/sheetdex/internal/parsers/csvwb"
	"github.com/custodia-labs/sheetdex/internal/parsers/jsonwb"
	"github.com/custodia-labs/sheetdex/internal/parsers/yamlwb"
)

// Ensure Registry implements the interface.
var _ driven.ParserRegistry = (*Registry)(nil)

// Registry maps file extensions to parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]driven.WorkbookParser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[string]driven.WorkbookParser),
	}
}

// DefaultRegistry returns a registry with every built-in parser.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(jsonwb.New())
	r.Register(yamlwb.New())
	r.Register(csvwb.New())
	return r
}

// Register adds a parser for each of its extensions.
// A later registration for the same extension replaces the earlier one.
func (r *Registry) Register(p driven.WorkbookParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range p.Extensions() {
		r.parsers[normalizeExt(ext)] = p
	}
}

// Get returns the parser for a file extension.
func (r *Registry) Get(ext string) (driven.WorkbookParser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[normalizeExt(ext)]
	if !ok {
		return nil, fmt.Errorf("%w: no parser for %q", domain.ErrUnsupportedType, ext)
	}
	return p, nil
}

// ForPath returns the parser for a file path's extension.
func (r *Registry) ForPath(path string) (driven.WorkbookParser, error) {
	return r.Get(filepath.Ext(path))
}

// Extensions returns all registered extensions, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supports returns true if path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, err := r.ForPath(path)
	return err == nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
