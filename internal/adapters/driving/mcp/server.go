package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sheetdex/internal/logger"
)

// Version is the MCP server version.
const Version = "0.1.0"

// shutdownTimeout bounds in-flight HTTP requests when the context ends.
const shutdownTimeout = 5 * time.Second

// instructions is sent to clients during initialisation.
const instructions = "sheetdex indexes spreadsheet workbooks as workbook, sheet, section and row chunks. " +
	"Call list_workbooks to see what is indexed, then query_workbooks with a question. " +
	"Quote the citation of each result you rely on; the context block carries the sheet and column headers."

// Server is the MCP server for sheetdex.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if ports == nil {
		return nil, ErrMissingQueryService
	}
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	impl := &mcp.Implementation{
		Name:    "sheetdex",
		Version: Version,
	}

	s := &Server{
		ports:  ports,
		server: mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions}),
	}

	s.registerTools()
	if ports.Ingest != nil {
		s.registerResources()
	} else {
		logger.Debug("MCP: no ingest service, workbook resources disabled")
	}

	return s, nil
}

// Run serves MCP over stdio until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	logger.Debug("MCP: serving on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx ends.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("MCP: HTTP shutdown: %v", err)
		}
	}()

	logger.Debug("MCP: serving HTTP on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
