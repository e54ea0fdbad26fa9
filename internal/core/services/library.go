package services

import (
	"context"

	"github.com/recallhq/recall/internal/core/domain"
	"github.com/recallhq/recall/internal/core/ports/driven"
	"github.com/recallhq/recall/internal/core/ports/driving"
)

// Ensure LibraryService implements the interface.
var _ driving.Library = (*LibraryService)(nil)

// LibraryService exposes read access to stored memories.
type LibraryService struct {
	relationships driven.RelationshipStore
}

// NewLibraryService creates a new library service.
func NewLibraryService(relationships driven.RelationshipStore) *LibraryService {
	return &LibraryService{relationships: relationships}
}

// Recent returns the newest segments visible to scope.
func (s *LibraryService) Recent(ctx context.Context, scope domain.Scope, limit int) ([]domain.Segment, error) {
	return s.relationships.ListRecent(ctx, scope, limit)
}

// Documents returns the scope's source documents, newest first.
func (s *LibraryService) Documents(ctx context.Context, scope domain.Scope) ([]domain.SourceDocument, error) {
	return s.relationships.ListDocuments(ctx, scope)
}

// Count returns the number of segments under the scope's (user, project).
func (s *LibraryService) Count(ctx context.Context, scope domain.Scope) (int, error) {
	return s.relationships.Count(ctx, scope)
}
