// Package driving declares the use cases sheetdex offers its front ends:
// ingesting and removing workbooks, querying the index and managing
// settings. The CLI, the terminal browser and the MCP server depend only
// on these interfaces; internal/core/services implements them.
package driving
