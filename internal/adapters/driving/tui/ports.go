// Package tui provides an interactive terminal browser for the sheetdex index.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/sheetdex/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the TUI.
type Ports struct {
	// Query answers retrieval queries.
	Query driving.QueryService

	// Ingest lists and removes workbooks. Optional; without it the
	// workbooks view reports that listing is unavailable.
	Ingest driving.IngestService
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(query driving.QueryService, ingest driving.IngestService) *Ports {
	return &Ports{
		Query:  query,
		Ingest: ingest,
	}
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
