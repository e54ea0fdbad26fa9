package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/core/domain"
	"github.com/recallhq/recall/internal/core/ports/driven"
	"github.com/recallhq/recall/internal/core/ports/driving"
)

// Ensure HistoryService implements the interface.
var _ driving.History = (*HistoryService)(nil)

// HistoryService exposes the query audit log.
type HistoryService struct {
	store driven.HistoryStore
}

// NewHistoryService creates a new history service.
func NewHistoryService(store driven.HistoryStore) *HistoryService {
	return &HistoryService{store: store}
}

// Record appends a query record, assigning an id and timestamp when the
// caller left them unset.
func (s *HistoryService) Record(ctx context.Context, rec domain.QueryRecord) error {
	if rec.Query == "" {
		return fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return s.store.Record(ctx, rec)
}

// List returns the most recent records for a scope, newest first.
func (s *HistoryService) List(ctx context.Context, scope domain.Scope, limit int) ([]domain.QueryRecord, error) {
	return s.store.List(ctx, scope, limit)
}

// Clear removes all records for a scope.
func (s *HistoryService) Clear(ctx context.Context, scope domain.Scope) error {
	return s.store.Clear(ctx, scope)
}
