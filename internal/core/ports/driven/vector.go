package driven

import (
	"context"

	"github.com/recallhq/recall/internal/core/domain"
)

// VectorIndex provides scope-filtered semantic similarity search.
//
// Filtering happens inside the search, not by post-filtering a global
// top-k: a small per-project set must not be starved by high-scoring
// vectors from other scopes.
type VectorIndex interface {
	// Upsert inserts or replaces the vector for a segment.
	Upsert(ctx context.Context, entry VectorEntry) error

	// Search finds the k nearest neighbours to the query vector among the
	// segments visible to scope. Results are ordered by descending
	// similarity, ties broken by ascending segment id.
	Search(ctx context.Context, query []float32, k int, scope domain.Scope) ([]VectorHit, error)

	// Delete removes the vectors for the given segment ids. Unknown ids
	// are ignored.
	Delete(ctx context.Context, ids []string) error

	// DeleteScope removes every vector stored under the scope's
	// (user, project).
	DeleteScope(ctx context.Context, scope domain.Scope) error

	// Persist writes the index to durable storage. Idempotent: a crash
	// mid-write leaves either the previous or the fully written state.
	Persist() error

	// Close persists and releases resources.
	Close() error
}

// VectorEntry is the per-segment projection stored in the vector index.
type VectorEntry struct {
	// SegmentID is the id of the segment the vector belongs to.
	SegmentID string

	// Vector is the embedding. Stored normalised.
	Vector []float32

	// Scope controls query-time visibility.
	Scope domain.Scope
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// SegmentID is the matched segment.
	SegmentID string

	// Similarity is the raw cosine similarity (-1 to 1). Score
	// normalisation is the retriever's concern.
	Similarity float64
}
