package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

var (
	ingestID   string
	ingestJSON bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest parsed workbook files",
	Long: `Parses each file and brings it into the index.

Supported formats:
  .json, .yaml, .yml  parsed-workbook document (sheets, headers, rows, sections)
  .csv                single sheet; blank rows separate sections

Re-ingesting an unchanged file makes no changes and no embedding calls.
Only rows whose content changed are re-embedded. The workbook ID defaults
to the file's absolute path.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "workbook ID (single file only)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output reports as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil || parserRegistry == nil {
		return errors.New("ingest service not configured")
	}
	if ingestID != "" && len(args) > 1 {
		return errors.New("--id can only be used with a single file")
	}

	ctx := cmd.Context()
	reports := make([]*domain.IngestReport, 0, len(args))
	failed := 0

	for _, path := range args {
		report, err := ingestFile(ctx, path, ingestID)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			failed++
			cmd.PrintErrf("%s: %v\n", path, err)
			continue
		}
		if !ingestJSON {
			printIngestReport(cmd, path, report)
		}
	}

	if ingestJSON {
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal reports: %w", err)
		}
		cmd.Println(string(data))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to ingest", failed, len(args))
	}
	return nil
}

// ingestFile parses path and ingests it under id, or under the absolute
// path when id is empty.
func ingestFile(ctx context.Context, path, id string) (*domain.IngestReport, error) {
	wb, abs, err := loadWorkbook(ctx, path)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = abs
	}
	return ingestService.Ingest(ctx, id, wb)
}

// loadWorkbook parses a file with the parser registered for its extension.
func loadWorkbook(ctx context.Context, path string) (*domain.ParsedWorkbook, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", fmt.Errorf("resolving path: %w", err)
	}

	parser, err := parserRegistry.Get(filepath.Ext(abs))
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, "", fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	wb, err := parser.Parse(ctx, filepath.Base(abs), f)
	if err != nil {
		return nil, "", fmt.Errorf("parsing workbook: %w", err)
	}
	if wb.Source == "" {
		wb.Source = abs
	}

	return wb, abs, nil
}

// workbookIDForArg maps a command argument to a workbook ID. Arguments
// with a supported file extension are treated as paths.
func workbookIDForArg(arg string) string {
	if parserRegistry == nil || filepath.Ext(arg) == "" {
		return arg
	}
	if _, err := parserRegistry.Get(filepath.Ext(arg)); err != nil {
		return arg
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return arg
	}
	return abs
}

func printIngestReport(cmd *cobra.Command, label string, r *domain.IngestReport) {
	cmd.Printf("%s: %s (added %d, changed %d, touched %d, unchanged %d, removed %d; embedded %d, cache hits %d) in %s\n",
		label, r.Status, r.Added, r.Changed, r.Touched, r.Unchanged, r.Removed,
		r.Embedded, r.CacheHits, r.Duration.Round(time.Millisecond))
	if n := len(r.PendingIDs); n > 0 {
		cmd.Printf("  %d chunks pending embedding; run 'sheetdex pending' to retry\n", n)
	}
}
