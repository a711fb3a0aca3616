// Package domain defines the core business entities for sheetdex.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A node of the Workbook → Sheet → Section → Row hierarchy
//   - ParsedWorkbook: The structure supplied by an external parser
//   - Query / RetrievalResult: The query entry point contract
//   - IngestReport: The ingestion entry point contract
//   - Filter: Exact metadata predicates shared by both sub-indexes
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
