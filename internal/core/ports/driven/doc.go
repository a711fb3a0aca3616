// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - ChunkStore: Workbook records and chunk trees
//   - EmbeddingStore: Embedding cache keyed by content hash
//   - ConfigStore: Application configuration
//   - WorkbookParser: Parsed-workbook interchange formats
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, queries are keyword-only.
//   - Reranker: Cross-encoder scoring. Without it, the fused ranking is returned.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
