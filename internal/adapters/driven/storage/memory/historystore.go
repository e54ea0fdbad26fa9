package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/recallhq/recall/internal/core/domain"
	"github.com/recallhq/recall/internal/core/ports/driven"
)

// Ensure HistoryStore implements the interface.
var _ driven.HistoryStore = (*HistoryStore)(nil)

// HistoryStore is an in-memory implementation of driven.HistoryStore.
type HistoryStore struct {
	mu      sync.RWMutex
	records []domain.QueryRecord
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

// Record appends a query record.
func (s *HistoryStore) Record(_ context.Context, rec domain.QueryRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: query record requires an id", domain.ErrInvalidInput)
	}
	if err := rec.Scope.Validate(); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// List returns the most recent records for a scope, newest first.
func (s *HistoryStore) List(_ context.Context, scope domain.Scope, limit int) ([]domain.QueryRecord, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.QueryRecord
	for _, rec := range s.records {
		if !recordInScope(rec, scope) {
			continue
		}
		matched = append(matched, rec)
	}
	sort.SliceStable(matched, func(a, b int) bool {
		return matched[a].CreatedAt.After(matched[b].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Clear removes all records for a scope.
func (s *HistoryStore) Clear(_ context.Context, scope domain.Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, rec := range s.records {
		if recordInScope(rec, scope) {
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	return nil
}

// recordInScope matches a record against a listing scope. A scope with a
// conversation id narrows to that conversation; without one it spans the
// whole project.
func recordInScope(rec domain.QueryRecord, scope domain.Scope) bool {
	if rec.Scope.UserID != scope.UserID || rec.Scope.ProjectID != scope.ProjectID {
		return false
	}
	return scope.ConversationID == "" || rec.Scope.ConversationID == scope.ConversationID
}
