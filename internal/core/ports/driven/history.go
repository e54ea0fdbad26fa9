package driven

import (
	"context"

	"github.com/recallhq/recall/internal/core/domain"
)

// HistoryStore persists the append-only query log. Audit and debugging
// only; never consulted during retrieval.
type HistoryStore interface {
	// Record appends a query record.
	Record(ctx context.Context, rec domain.QueryRecord) error

	// List returns the most recent records for a scope, newest first.
	List(ctx context.Context, scope domain.Scope, limit int) ([]domain.QueryRecord, error)

	// Clear removes all records for a scope.
	Clear(ctx context.Context, scope domain.Scope) error
}
