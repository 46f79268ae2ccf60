// Package retrieval provides the text fragment retrievers used by the
// retrieval-backed specialists.
//
// Implementations:
//   - MemoryRetriever: process-local term-overlap ranking, for tests and demos
//   - BleveRetriever: full-text index (in-memory or on disk) via bleve
//   - QdrantRetriever: vector search over a Qdrant collection via its REST API
//   - CachedRetriever: LRU decorator keyed by (query, k)
package retrieval
