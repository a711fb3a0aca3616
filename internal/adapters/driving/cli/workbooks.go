package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	workbooksJSON bool
	removeJSON    bool
)

var workbooksCmd = &cobra.Command{
	Use:   "workbooks",
	Short: "List ingested workbooks",
	Long:  `Lists every ingested workbook with its chunk and pending-embedding counts.`,
	Args:  cobra.NoArgs,
	RunE:  runWorkbooks,
}

var removeCmd = &cobra.Command{
	Use:   "remove [workbook-id|file]",
	Short: "Remove a workbook from the index",
	Long: `Deletes a workbook and every sheet, section and row chunk beneath it.
A file path with a supported extension is resolved to its absolute path,
which is the default workbook ID used by 'sheetdex ingest'.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	workbooksCmd.Flags().BoolVar(&workbooksJSON, "json", false, "output as JSON")
	removeCmd.Flags().BoolVar(&removeJSON, "json", false, "output report as JSON")
	rootCmd.AddCommand(workbooksCmd)
	rootCmd.AddCommand(removeCmd)
}

func runWorkbooks(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	workbooks, err := ingestService.Workbooks(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list workbooks: %w", err)
	}

	if workbooksJSON {
		data, err := json.MarshalIndent(workbooks, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal workbooks: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(workbooks) == 0 {
		cmd.Println("No workbooks ingested.")
		return nil
	}

	cmd.Println("Workbooks:")
	cmd.Println()
	for i := range workbooks {
		w := &workbooks[i]
		cmd.Printf("  %s\n", w.Name)
		cmd.Printf("      ID: %s\n", w.ID)
		cmd.Printf("      Chunks: %d", w.Chunks)
		if w.Pending > 0 {
			cmd.Printf(" (%d pending embedding)", w.Pending)
		}
		cmd.Println()
		if !w.UpdatedAt.IsZero() {
			cmd.Printf("      Updated: %s\n", w.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		cmd.Println()
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	id := workbookIDForArg(args[0])
	report, err := ingestService.Remove(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}

	if removeJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Removed workbook %s (%d chunks).\n", id, report.Removed)
	return nil
}
