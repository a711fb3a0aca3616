// Package index implements the dual sub-index every chunk lives in: an exact
// cosine vector index and a BM25 keyword index, keyed identically by chunk ID.
//
// Both structures are updated through one write path under one lock, so a
// reader never sees a chunk in one side and not the other. Upserts in a batch
// are applied parent-first and removals child-first; every visible chunk
// always has visible ancestors.
//
// Queries take a read View. Sub-searches on the same View may run in
// parallel and share the candidate set computed from a domain.Filter.
package index
