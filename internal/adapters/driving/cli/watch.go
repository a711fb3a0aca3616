package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sheetdex/internal/connectors/filesystem"
	"github.com/custodia-labs/sheetdex/internal/core/domain"
	"github.com/custodia-labs/sheetdex/internal/logger"
)

var (
	watchDebounce time.Duration
	watchNoScan   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Re-ingest workbook files as they change",
	Long: `Watches a directory tree and keeps the index in step with it.

Existing files are ingested first (unless --no-scan). Afterwards, created
or modified files are re-ingested once they stop changing for the
debounce interval, and deleted files are removed from the index. Only
files with a registered parser extension are considered.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "quiet period before re-ingesting a file")
	watchCmd.Flags().BoolVar(&watchNoScan, "no-scan", false, "skip ingesting existing files at startup")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil || parserRegistry == nil {
		return errors.New("ingest service not configured")
	}

	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := filesystem.New(root, supportedFile)
	defer w.Close() //nolint:errcheck

	if !watchNoScan {
		files, err := w.Scan(ctx)
		if err != nil {
			return err
		}
		for _, path := range files {
			handleWatchChange(ctx, cmd, filesystem.Change{Type: filesystem.ChangeCreated, Path: path})
		}
	}

	changes, err := w.Watch(ctx)
	if err != nil {
		return err
	}

	d := newDebouncer(watchDebounce)
	defer d.stop()

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", root)
	for {
		select {
		case <-ctx.Done():
			cmd.Println("Stopped watching.")
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			logger.Debug("watch: %s %s", c.Type, c.Path)
			d.add(c)
		case c := <-d.ready:
			handleWatchChange(ctx, cmd, c)
		}
	}
}

func supportedFile(path string) bool {
	_, err := parserRegistry.Get(filepath.Ext(path))
	return err == nil
}

// handleWatchChange applies one settled file change. Errors are printed,
// not returned, so one bad file does not stop the watch.
func handleWatchChange(ctx context.Context, cmd *cobra.Command, c filesystem.Change) {
	if c.Type == filesystem.ChangeDeleted {
		report, err := ingestService.Remove(ctx, c.Path)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			cmd.PrintErrf("%s: %v\n", c.Path, err)
		default:
			cmd.Printf("%s: removed (%d chunks)\n", c.Path, report.Removed)
		}
		return
	}

	report, err := ingestFile(ctx, c.Path, "")
	if err != nil {
		cmd.PrintErrf("%s: %v\n", c.Path, err)
		return
	}
	printIngestReport(cmd, c.Path, report)
}

// debouncer delivers the latest change per path once the path has been
// quiet for delay.
type debouncer struct {
	delay time.Duration
	ready chan filesystem.Change
	done  chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
	latest map[string]filesystem.Change
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:  delay,
		ready:  make(chan filesystem.Change, 16),
		done:   make(chan struct{}),
		timers: make(map[string]*time.Timer),
		latest: make(map[string]filesystem.Change),
	}
}

func (d *debouncer) add(c filesystem.Change) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.latest[c.Path] = c
	if t, ok := d.timers[c.Path]; ok {
		t.Reset(d.delay)
		return
	}
	path := c.Path
	d.timers[path] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		change, ok := d.latest[path]
		if !ok {
			d.mu.Unlock()
			return
		}
		delete(d.latest, path)
		delete(d.timers, path)
		d.mu.Unlock()

		select {
		case d.ready <- change:
		case <-d.done:
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.timers {
		t.Stop()
	}
	close(d.done)
}
