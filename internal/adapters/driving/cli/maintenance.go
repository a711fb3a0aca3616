package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Retry embeddings for pending chunks",
	Long: `Chunks whose embedding failed during ingestion stay searchable by keyword
and are marked pending. This command re-attempts their embeddings so they
join vector search.`,
	Args: cobra.NoArgs,
	RunE: runPending,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check index integrity",
	Long: `Scans the index for orphan chunks and broken ancestor chains.
Exits with an error when problems are found; re-ingest the affected
workbooks to rebuild them.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(checkCmd)
}

func runPending(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	report, err := ingestService.RetryPending(cmd.Context())
	if err != nil {
		return fmt.Errorf("retry failed: %w", err)
	}

	if report.Attempted == 0 {
		cmd.Println("No chunks pending embedding.")
		return nil
	}

	cmd.Printf("Attempted %d, resolved %d, still pending %d.\n",
		report.Attempted, report.Resolved, len(report.StillPending))
	return nil
}

func runCheck(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	report, err := ingestService.Check(cmd.Context())
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	if report.OK() {
		cmd.Printf("Checked %d chunks: OK\n", report.Chunks)
		return nil
	}

	cmd.Printf("Checked %d chunks: %d problems\n", report.Chunks, len(report.Problems))
	for i := range report.Problems {
		cmd.Printf("  %s\n", report.Problems[i].Error())
	}
	return fmt.Errorf("index has %d integrity problems", len(report.Problems))
}
