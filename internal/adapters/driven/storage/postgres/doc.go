// Package postgres provides a shared embedding cache on PostgreSQL with the
// pgvector extension.
//
// Several sheetdex processes pointed at the same database reuse each other's
// embeddings. Vectors are keyed by chunk content hash and written with
// ON CONFLICT DO NOTHING, so the first writer wins.
//
// Only driven.EmbeddingStore is implemented here; chunk arenas stay local.
package postgres
