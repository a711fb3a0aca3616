package cli

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sheetdex/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the index to AI assistants over MCP",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start a Model Context Protocol server over the workbook index.

The server speaks JSON-RPC on stdio unless --port is given, in which case
it serves the streamable HTTP transport on --host:--port.

Tools:
  query_workbooks  hybrid retrieval returning citations and context blocks
  list_workbooks   ingested workbooks with chunk and pending counts

Resources:
  sheetdex://workbooks               all ingested workbooks
  sheetdex://workbooks/{workbookId}  one workbook's index statistics

Examples:
  sheetdex mcp serve
  sheetdex mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "sheetdex": {
        "command": "/path/to/sheetdex",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().String("host", "localhost", "HTTP bind host")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	host, err := cmd.Flags().GetString("host")
	if err != nil {
		return fmt.Errorf("getting host flag: %w", err)
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Query:  queryService,
		Ingest: ingestService,
	})
	if err != nil {
		return err
	}

	if port > 0 {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		cmd.PrintErrf("MCP server listening on http://%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
