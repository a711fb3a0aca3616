package mcp

import (
	"github.com/custodia-labs/sheetdex/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Query answers retrieval queries.
	Query driving.QueryService

	// Ingest lists workbooks. Optional: without it the workbook tool and
	// resources return empty lists.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
