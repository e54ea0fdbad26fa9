// Package memory provides in-memory implementations of the storage ports.
// They share the SQLite stores' ranking and visibility semantics and are
// used in tests and as a fallback when no database path is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/recallhq/recall/internal/core/domain"
	"github.com/recallhq/recall/internal/core/ports/driven"
)

// Ensure RelationshipStore implements the interface.
var _ driven.RelationshipStore = (*RelationshipStore)(nil)

// RelationshipStore is an in-memory implementation of driven.RelationshipStore.
type RelationshipStore struct {
	mu        sync.RWMutex
	segments  map[string]domain.Segment
	documents map[string]domain.SourceDocument
}

// NewRelationshipStore creates a new in-memory relationship store.
func NewRelationshipStore() *RelationshipStore {
	return &RelationshipStore{
		segments:  make(map[string]domain.Segment),
		documents: make(map[string]domain.SourceDocument),
	}
}

// Put stores or replaces a segment.
func (s *RelationshipStore) Put(_ context.Context, seg domain.Segment) error {
	if seg.ID == "" {
		return fmt.Errorf("%w: segment requires an id", domain.ErrInvalidInput)
	}
	if err := seg.Scope.Validate(); err != nil {
		return err
	}
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = time.Now().UTC()
	}
	seg.Priority = domain.ClampPriority(seg.Priority)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[seg.ID] = seg
	return nil
}

// Find returns segments visible to scope that match at least one term,
// ordered by overlap descending, ties by recency descending.
func (s *RelationshipStore) Find(_ context.Context, scope domain.Scope, terms []string) ([]domain.Segment, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, nil
	}

	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			lowered = append(lowered, t)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Segment
	for _, seg := range s.segments {
		if seg.Deleted || !seg.Scope.Covers(scope) {
			continue
		}
		if overlap(seg, lowered) > 0 {
			matched = append(matched, seg)
		}
	}

	sort.SliceStable(matched, func(a, b int) bool {
		oa, ob := overlap(matched[a], lowered), overlap(matched[b], lowered)
		if oa != ob {
			return oa > ob
		}
		if !matched[a].CreatedAt.Equal(matched[b].CreatedAt) {
			return matched[a].CreatedAt.After(matched[b].CreatedAt)
		}
		return matched[a].ID < matched[b].ID
	})
	return matched, nil
}

// Get retrieves a segment by id.
func (s *RelationshipStore) Get(_ context.Context, id string) (*domain.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seg, ok := s.segments[id]
	if !ok || seg.Deleted {
		return nil, domain.ErrNotFound
	}
	return &seg, nil
}

// ListRecent returns the newest segments visible to scope.
func (s *RelationshipStore) ListRecent(_ context.Context, scope domain.Scope, limit int) ([]domain.Segment, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var visible []domain.Segment
	for _, seg := range s.segments {
		if !seg.Deleted && seg.Scope.Covers(scope) {
			visible = append(visible, seg)
		}
	}
	sort.Slice(visible, func(a, b int) bool {
		if !visible[a].CreatedAt.Equal(visible[b].CreatedAt) {
			return visible[a].CreatedAt.After(visible[b].CreatedAt)
		}
		return visible[a].ID < visible[b].ID
	})
	if len(visible) > limit {
		visible = visible[:limit]
	}
	return visible, nil
}

// Count returns the number of segments under the scope's (user, project).
func (s *RelationshipStore) Count(_ context.Context, scope domain.Scope) (int, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, seg := range s.segments {
		if !seg.Deleted && seg.Scope.UserID == scope.UserID && seg.Scope.ProjectID == scope.ProjectID {
			count++
		}
	}
	return count, nil
}

// MarkDeleted soft-deletes every live segment under the scope's
// (user, project) whose text contains the pattern, case insensitive.
func (s *RelationshipStore) MarkDeleted(_ context.Context, scope domain.Scope, pattern string) ([]string, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, seg := range s.segments {
		if seg.Deleted ||
			seg.Scope.UserID != scope.UserID || seg.Scope.ProjectID != scope.ProjectID {
			continue
		}
		if strings.Contains(strings.ToLower(seg.Text), pattern) {
			seg.Deleted = true
			s.segments[id] = seg
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteScope removes every segment and document under the scope's (user, project).
func (s *RelationshipStore) DeleteScope(_ context.Context, scope domain.Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, seg := range s.segments {
		if seg.Scope.UserID == scope.UserID && seg.Scope.ProjectID == scope.ProjectID {
			delete(s.segments, id)
		}
	}
	for id, doc := range s.documents {
		if doc.Scope.UserID == scope.UserID && doc.Scope.ProjectID == scope.ProjectID {
			delete(s.documents, id)
		}
	}
	return nil
}

// SaveDocument stores or updates a source document record.
func (s *RelationshipStore) SaveDocument(_ context.Context, doc domain.SourceDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document requires an id", domain.ErrInvalidInput)
	}
	if err := doc.Scope.Validate(); err != nil {
		return err
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = doc
	return nil
}

// GetDocument retrieves a source document by id.
func (s *RelationshipStore) GetDocument(_ context.Context, id string) (*domain.SourceDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// ListDocuments returns the documents of a scope, newest first.
func (s *RelationshipStore) ListDocuments(_ context.Context, scope domain.Scope) ([]domain.SourceDocument, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []domain.SourceDocument
	for _, doc := range s.documents {
		if doc.Scope.Covers(scope) {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(a, b int) bool {
		if !docs[a].CreatedAt.Equal(docs[b].CreatedAt) {
			return docs[a].CreatedAt.After(docs[b].CreatedAt)
		}
		return docs[a].ID < docs[b].ID
	})
	return docs, nil
}

// overlap counts the terms matched by a segment's entities or text.
func overlap(seg domain.Segment, terms []string) int {
	text := strings.ToLower(seg.Text)
	count := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			count++
			continue
		}
		for _, entity := range seg.Entities {
			if strings.Contains(strings.ToLower(entity), term) {
				count++
				break
			}
		}
	}
	return count
}
