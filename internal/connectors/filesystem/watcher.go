// Package filesystem watches a directory tree for parsed-workbook files.
//
// It reports created, updated and deleted files whose extension the caller
// accepts. Hidden files and directories are skipped.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sheetdex/internal/logger"
)

// ErrClosed is returned by Watch after Close.
var ErrClosed = errors.New("watcher closed")

// ChangeType classifies a file change.
type ChangeType int

// File change kinds.
const (
	ChangeCreated ChangeType = iota
	ChangeUpdated
	ChangeDeleted
)

// String returns the change name.
func (t ChangeType) String() string {
	switch t {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is one file event.
type Change struct {
	Type ChangeType
	Path string
}

// Watcher watches rootPath recursively.
type Watcher struct {
	rootPath string
	accept   func(path string) bool

	mu      sync.Mutex
	closed  bool
	watcher *fsnotify.Watcher
}

// New creates a watcher. accept decides which files are reported;
// nil accepts every regular file.
func New(rootPath string, accept func(path string) bool) *Watcher {
	if accept == nil {
		accept = func(string) bool { return true }
	}
	return &Watcher{
		rootPath: rootPath,
		accept:   accept,
	}
}

// Scan returns every accepted file currently under the root, sorted.
func (w *Watcher) Scan(ctx context.Context) ([]string, error) {
	if err := w.checkRoot(); err != nil {
		return nil, err
	}

	var files []string
	err := filepath.WalkDir(w.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path != w.rootPath && isHidden(w.rel(path)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && w.accept(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", w.rootPath, err)
	}

	sort.Strings(files)
	return files, nil
}

// Watch starts watching and returns a channel of changes.
// The channel is closed when ctx is cancelled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan Change, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if err := w.checkRoot(); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.addTree(fsw, w.rootPath); err != nil {
		fsw.Close() //nolint:errcheck
		return nil, err
	}
	w.watcher = fsw

	changes := make(chan Change, 64)
	go w.loop(ctx, fsw, changes)

	return changes, nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, changes chan<- Change) {
	defer close(changes)
	defer fsw.Close() //nolint:errcheck

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isHidden(w.rel(event.Name)) {
					if err := w.addTree(fsw, event.Name); err != nil {
						logger.Warn("watch: %v", err)
					}
				}
			}
			change := w.handleFsEvent(event)
			if change == nil {
				continue
			}
			select {
			case changes <- *change:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

// handleFsEvent converts an fsnotify event into a Change, or nil when the
// event is not reported.
func (w *Watcher) handleFsEvent(event fsnotify.Event) *Change {
	if isHidden(w.rel(event.Name)) || !w.accept(event.Name) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &Change{Type: ChangeDeleted, Path: event.Name}
	case event.Has(fsnotify.Create):
		if !isRegularFile(event.Name) {
			return nil
		}
		return &Change{Type: ChangeCreated, Path: event.Name}
	case event.Has(fsnotify.Write):
		if !isRegularFile(event.Name) {
			return nil
		}
		return &Change{Type: ChangeUpdated, Path: event.Name}
	default:
		return nil
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) checkRoot() error {
	info, err := os.Stat(w.rootPath)
	if err != nil {
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path error: %s is not a directory", w.rootPath)
	}
	return nil
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.rootPath && isHidden(w.rel(path)) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.rootPath, path)
	if err != nil {
		return path
	}
	return rel
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// isHidden reports whether any component of path starts with a dot.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part != "" && part != "." && part != ".." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
