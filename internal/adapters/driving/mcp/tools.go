package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

// QueryInput is the input schema for the query_workbooks tool.
type QueryInput struct {
	Query         string   `json:"query" jsonschema:"natural-language question about the spreadsheets"`
	TopK          int      `json:"top_k,omitempty" jsonschema:"maximum number of results to return (default from settings)"`
	WorkbookID    string   `json:"workbook_id,omitempty" jsonschema:"restrict results to one workbook"`
	Sheet         string   `json:"sheet,omitempty" jsonschema:"restrict results to one sheet name"`
	Section       string   `json:"section,omitempty" jsonschema:"restrict results to one section label"`
	VectorWeight  *float64 `json:"vector_weight,omitempty" jsonschema:"weight of semantic similarity in fusion"`
	KeywordWeight *float64 `json:"keyword_weight,omitempty" jsonschema:"weight of keyword (BM25) relevance in fusion"`
	Rerank        bool     `json:"rerank,omitempty" jsonschema:"re-score the top candidates with the configured reranker"`
}

// QueryOutput is the output schema for the query_workbooks tool.
type QueryOutput struct {
	Results  []ResultOutput `json:"results"`
	Count    int            `json:"count"`
	Partial  bool           `json:"partial,omitempty"`
	Reranked bool           `json:"reranked,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}

// ResultOutput represents a single retrieved chunk.
type ResultOutput struct {
	ChunkID      string   `json:"chunk_id"`
	WorkbookID   string   `json:"workbook_id"`
	Level        string   `json:"level"`
	Citation     string   `json:"citation"`
	Context      string   `json:"context"`
	Score        float64  `json:"score"`
	VectorScore  *float64 `json:"vector_score,omitempty"`
	KeywordScore *float64 `json:"keyword_score,omitempty"`
	RerankScore  *float64 `json:"rerank_score,omitempty"`
}

// ListWorkbooksInput is the input schema for the list_workbooks tool.
type ListWorkbooksInput struct{}

// ListWorkbooksOutput is the output schema for the list_workbooks tool.
type ListWorkbooksOutput struct {
	Workbooks []WorkbookOutput `json:"workbooks"`
	Count     int              `json:"count"`
}

// WorkbookOutput describes one ingested workbook.
type WorkbookOutput struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Source    string `json:"source,omitempty"`
	Chunks    int    `json:"chunks"`
	Pending   int    `json:"pending"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "query_workbooks",
		Description: "Retrieve spreadsheet rows, sections and sheets relevant to a question. " +
			"Each result carries a citation and a context block with its sheet and column headers.",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_workbooks",
		Description: "List ingested workbooks with chunk and pending-embedding counts",
	}, s.handleListWorkbooks)
}

// handleQuery handles the query_workbooks tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	q := domain.Query{
		Text:   input.Query,
		TopK:   input.TopK,
		Filter: buildFilter(input),
		Rerank: input.Rerank,
	}
	if input.VectorWeight != nil || input.KeywordWeight != nil {
		w := domain.DefaultWeights()
		if input.VectorWeight != nil {
			w.Vector = *input.VectorWeight
		}
		if input.KeywordWeight != nil {
			w.Keyword = *input.KeywordWeight
		}
		q.Weights = &w
	}

	result, err := s.ports.Query.Query(ctx, q)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	output := QueryOutput{
		Results:  make([]ResultOutput, len(result.Results)),
		Count:    len(result.Results),
		Partial:  result.Partial,
		Reranked: result.Reranked,
		Warnings: result.Warnings,
	}
	for i := range result.Results {
		r := &result.Results[i]
		output.Results[i] = ResultOutput{
			ChunkID:      r.Chunk.ID,
			WorkbookID:   r.Chunk.WorkbookID,
			Level:        r.Chunk.Level.String(),
			Citation:     r.Citation,
			Context:      r.Context,
			Score:        r.FusedScore,
			VectorScore:  r.VectorScore,
			KeywordScore: r.KeywordScore,
			RerankScore:  r.RerankScore,
		}
	}

	return nil, output, nil
}

// handleListWorkbooks handles the list_workbooks tool invocation.
func (s *Server) handleListWorkbooks(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListWorkbooksInput,
) (*mcp.CallToolResult, ListWorkbooksOutput, error) {
	workbooks, err := s.listWorkbooks(ctx)
	if err != nil {
		return nil, ListWorkbooksOutput{}, err
	}
	return nil, ListWorkbooksOutput{Workbooks: workbooks, Count: len(workbooks)}, nil
}

func (s *Server) listWorkbooks(ctx context.Context) ([]WorkbookOutput, error) {
	if s.ports.Ingest == nil {
		return []WorkbookOutput{}, nil
	}
	summaries, err := s.ports.Ingest.Workbooks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]WorkbookOutput, len(summaries))
	for i := range summaries {
		out[i] = toWorkbookOutput(&summaries[i])
	}
	return out, nil
}

func toWorkbookOutput(w *domain.WorkbookSummary) WorkbookOutput {
	out := WorkbookOutput{
		ID:      w.ID,
		Name:    w.Name,
		Source:  w.Source,
		Chunks:  w.Chunks,
		Pending: w.Pending,
	}
	if !w.UpdatedAt.IsZero() {
		out.UpdatedAt = w.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

// buildFilter turns the optional restriction fields into a metadata filter.
func buildFilter(input QueryInput) domain.Filter {
	f := domain.Filter{}
	if input.WorkbookID != "" {
		f[domain.MetaWorkbookID] = input.WorkbookID
	}
	if input.Sheet != "" {
		f[domain.MetaSheetName] = input.Sheet
	}
	if input.Section != "" {
		f[domain.MetaSectionLabel] = input.Section
	}
	if len(f) == 0 {
		return nil
	}
	return f
}
