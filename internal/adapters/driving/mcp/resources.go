package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// URIScheme is the custom URI scheme for sheetdex resources.
	uriScheme = "sheetdex://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing workbooks.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "workbooks",
		Name:        "workbooks",
		Description: "List of all ingested workbooks",
		MIMEType:    "application/json",
	}, s.handleWorkbooksResource)

	// Template for a single workbook.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "workbooks/{workbookId}",
		Name:        "workbook",
		Description: "Index statistics for one workbook",
		MIMEType:    "application/json",
	}, s.handleWorkbookResource)
}

// handleWorkbooksResource returns a list of all ingested workbooks.
func (s *Server) handleWorkbooksResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	workbooks, err := s.listWorkbooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing workbooks: %w", err)
	}

	data, err := json.MarshalIndent(workbooks, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling workbooks: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleWorkbookResource returns statistics for one workbook.
func (s *Server) handleWorkbookResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract workbookId from URI: sheetdex://workbooks/{workbookId}
	id := extractWorkbookID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	workbooks, err := s.listWorkbooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing workbooks: %w", err)
	}

	for i := range workbooks {
		if workbooks[i].ID != id {
			continue
		}
		data, err := json.MarshalIndent(workbooks[i], "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshalling workbook: %w", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			}},
		}, nil
	}

	return nil, mcp.ResourceNotFoundError(req.Params.URI)
}

// extractWorkbookID extracts the workbook ID from a URI like sheetdex://workbooks/{workbookId}.
func extractWorkbookID(uri string) string {
	const prefix = uriScheme + "workbooks/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}
