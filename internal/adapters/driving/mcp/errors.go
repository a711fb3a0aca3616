// Package mcp provides an MCP (Model Context Protocol) server adapter for sheetdex.
// It lets AI assistants retrieve citation-ready spreadsheet context from the
// local index.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")
