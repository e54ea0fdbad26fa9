// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - RelationshipStore: segment + entity persistence and lookup. Always
//     required; entity re-ranking is load-bearing for multi-entity recall,
//     so its failures are fatal to retrieval.
//   - HistoryStore: query audit log persistence.
//   - ConfigStore: application configuration.
//
// # Optional Interfaces
//
// These can be nil - retrieval degrades gracefully:
//
//   - VectorIndex: scoped vector storage/search.
//   - EmbeddingService: generates vector embeddings. Without it, the
//     VectorIndex is also disabled and retrieval runs in degraded mode.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
