// Package services holds the sheetdex core: the hierarchy builder, the
// embedding batcher, the hybrid query planner, the reranker and the
// context assembler, composed into the ingest, query and settings use cases.
//
// Providers and stores arrive through driven ports; nothing here touches
// a database, a network client or the filesystem directly.
package services
