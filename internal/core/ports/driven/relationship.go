package driven

import (
	"context"

	"github.com/recallhq/recall/internal/core/domain"
)

// RelationshipStore persists segments with their coarse entity tags and
// supports overlap-ranked lookup. Backed by SQLite; the entity rows form
// the relationship side of the dual index.
type RelationshipStore interface {
	// Put stores a segment and its entity tags atomically.
	Put(ctx context.Context, seg domain.Segment) error

	// Find returns segments visible to scope whose entities or raw text
	// overlap the given terms, ordered by overlap count descending, ties
	// by recency descending.
	Find(ctx context.Context, scope domain.Scope, terms []string) ([]domain.Segment, error)

	// Get retrieves a segment by id.
	Get(ctx context.Context, id string) (*domain.Segment, error)

	// ListRecent returns the most recently created segments visible to
	// scope, newest first.
	ListRecent(ctx context.Context, scope domain.Scope, limit int) ([]domain.Segment, error)

	// Count returns the number of segments stored under the scope's
	// (user, project).
	Count(ctx context.Context, scope domain.Scope) (int, error)

	// MarkDeleted soft-deletes every segment under the scope's
	// (user, project) whose text contains the pattern, case insensitive.
	// Returns the ids of the affected segments.
	MarkDeleted(ctx context.Context, scope domain.Scope, pattern string) ([]string, error)

	// DeleteScope removes every segment stored under the scope's
	// (user, project).
	DeleteScope(ctx context.Context, scope domain.Scope) error

	// SaveDocument stores a source document record.
	SaveDocument(ctx context.Context, doc domain.SourceDocument) error

	// GetDocument retrieves a source document by id.
	GetDocument(ctx context.Context, id string) (*domain.SourceDocument, error)

	// ListDocuments returns the documents of a scope with their segment
	// counts, newest first.
	ListDocuments(ctx context.Context, scope domain.Scope) ([]domain.SourceDocument, error)
}
