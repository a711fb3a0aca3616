// Package cli implements the sheetdex command line.
//
// Commands call the driving ports injected with SetServices; they never
// construct adapters themselves.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sheetdex/internal/core/ports/driven"
	"github.com/custodia-labs/sheetdex/internal/core/ports/driving"
	"github.com/custodia-labs/sheetdex/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

var verbose bool

// Services injected by main.
var (
	ingestService   driving.IngestService
	queryService    driving.QueryService
	settingsService driving.SettingsService
	parserRegistry  driven.ParserRegistry
)

// Services holds the ports the commands use.
type Services struct {
	Ingest   driving.IngestService
	Query    driving.QueryService
	Settings driving.SettingsService
	Parsers  driven.ParserRegistry
}

var rootCmd = &cobra.Command{
	Use:   "sheetdex",
	Short: "Hybrid retrieval over spreadsheet workbooks",
	Long: `sheetdex indexes spreadsheet workbooks as a Workbook > Sheet > Section > Row
hierarchy and answers questions with hybrid semantic (vector) and keyword
(BM25) retrieval. Every result carries a citation and a context block that
restores the sheet and column headers around the matched row.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs to stderr")
}

// SetServices injects the services used by the commands.
func SetServices(s Services) {
	ingestService = s.Ingest
	queryService = s.Query
	settingsService = s.Settings
	parserRegistry = s.Parsers
}

// SetVersion sets the version reported by 'sheetdex version'.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
