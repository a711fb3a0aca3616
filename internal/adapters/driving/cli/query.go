package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

var (
	queryTopK          int
	queryWorkbook      string
	querySheet         string
	querySection       string
	queryLevel         string
	queryFilters       map[string]string
	queryVectorWeight  float64
	queryKeywordWeight float64
	queryRerank        bool
	queryNormalization string
	queryTimeout       time.Duration
	queryJSON          bool
	queryContext       bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Query indexed workbooks",
	Long: `Runs hybrid retrieval across all indexed workbooks.
Combines keyword (BM25) and semantic (vector) scores with configurable
weights, optionally re-ranks the top candidates, and prints each result
with its citation.

Without an embedding provider the query runs keyword-only and says so.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.IntVarP(&queryTopK, "top-k", "n", 0, "number of results (default from settings)")
	f.StringVar(&queryWorkbook, "workbook", "", "restrict to a workbook ID")
	f.StringVar(&querySheet, "sheet", "", "restrict to a sheet name")
	f.StringVar(&querySection, "section", "", "restrict to a section label")
	f.StringVar(&queryLevel, "level", "", "restrict to a level (workbook, sheet, section, row)")
	f.StringToStringVar(&queryFilters, "filter", nil, "exact metadata match, key=value (repeatable)")
	f.Float64Var(&queryVectorWeight, "vector-weight", 0, "weight of the vector score")
	f.Float64Var(&queryKeywordWeight, "keyword-weight", 0, "weight of the keyword score")
	f.BoolVar(&queryRerank, "rerank", false, "re-rank the top candidates")
	f.StringVar(&queryNormalization, "normalization", "", "score normalisation (minmax, zscore, none)")
	f.DurationVar(&queryTimeout, "timeout", 0, "query deadline (default from settings)")
	f.BoolVar(&queryJSON, "json", false, "output results as JSON")
	f.BoolVar(&queryContext, "context", false, "print full context blocks")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	q := domain.Query{
		Text:          args[0],
		TopK:          queryTopK,
		Filter:        buildQueryFilter(),
		Rerank:        queryRerank,
		Normalization: domain.Normalization(queryNormalization),
		Timeout:       queryTimeout,
	}
	if q.Normalization != "" && !q.Normalization.IsValid() {
		return fmt.Errorf("invalid normalization %q (use minmax, zscore or none)", queryNormalization)
	}

	flags := cmd.Flags()
	if flags.Changed("vector-weight") || flags.Changed("keyword-weight") {
		w := domain.DefaultWeights()
		if settingsService != nil {
			if s, err := settingsService.Get(); err == nil {
				w = s.Query.Weights
			}
		}
		if flags.Changed("vector-weight") {
			w.Vector = queryVectorWeight
		}
		if flags.Changed("keyword-weight") {
			w.Keyword = queryKeywordWeight
		}
		q.Weights = &w
	}

	result, err := queryService.Query(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	outputQueryResult(cmd, result)
	return nil
}

// buildQueryFilter merges the shortcut flags with --filter entries.
// row_number is matched as a number; everything else as a string.
func buildQueryFilter() domain.Filter {
	f := domain.Filter{}
	for k, v := range queryFilters {
		f[k] = filterValue(k, v)
	}
	if queryWorkbook != "" {
		f[domain.MetaWorkbookID] = queryWorkbook
	}
	if querySheet != "" {
		f[domain.MetaSheetName] = querySheet
	}
	if querySection != "" {
		f[domain.MetaSectionLabel] = querySection
	}
	if queryLevel != "" {
		f[domain.MetaLevel] = queryLevel
	}
	if len(f) == 0 {
		return nil
	}
	return f
}

func filterValue(key, value string) any {
	if key == domain.MetaRowNumber {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return value
}

func outputQueryResult(cmd *cobra.Command, result *domain.RetrievalResult) {
	for _, w := range result.Warnings {
		cmd.Printf("Warning: %s\n", w)
	}

	if len(result.Results) == 0 {
		cmd.Println("No results found.")
		return
	}

	header := fmt.Sprintf("Results (%d of %d candidates, %s)", len(result.Results), result.Candidates,
		result.Took.Round(time.Millisecond))
	if result.Partial {
		header += " [partial]"
	}
	if result.Reranked {
		header += " [reranked]"
	}
	cmd.Println(header + ":")
	cmd.Println()

	for i := range result.Results {
		r := &result.Results[i]
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, r.Citation, r.FusedScore)
		if queryContext {
			for _, line := range strings.Split(r.Context, "\n") {
				cmd.Printf("      %s\n", line)
			}
		} else {
			cmd.Printf("      %s\n", r.Chunk.Text)
		}
		if scores := formatScores(r); scores != "" {
			cmd.Printf("      %s\n", scores)
		}
		cmd.Println()
	}
}

func formatScores(r *domain.RankedChunk) string {
	var parts []string
	if r.VectorScore != nil {
		parts = append(parts, fmt.Sprintf("vector %.3f", *r.VectorScore))
	}
	if r.KeywordScore != nil {
		parts = append(parts, fmt.Sprintf("keyword %.3f", *r.KeywordScore))
	}
	if r.RerankScore != nil {
		parts = append(parts, fmt.Sprintf("rerank %.3f", *r.RerankScore))
	}
	return strings.Join(parts, "  ")
}
