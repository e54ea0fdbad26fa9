package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/recallhq/recall/internal/core/domain"
	"github.com/recallhq/recall/internal/core/ports/driven"
)

// historyStore implements driven.HistoryStore.
type historyStore struct {
	store *Store
}

var _ driven.HistoryStore = (*historyStore)(nil)

// Record appends a query record.
func (h *historyStore) Record(ctx context.Context, rec domain.QueryRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: query record requires an id", domain.ErrInvalidInput)
	}
	if err := rec.Scope.Validate(); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	idsJSON, err := json.Marshal(rec.SegmentIDs)
	if err != nil {
		return fmt.Errorf("marshalling segment ids: %w", err)
	}

	_, err = h.store.db.ExecContext(ctx, `
		INSERT INTO query_history (id, query, segment_ids, answer, user_id, project_id, conversation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Query, string(idsJSON), rec.Answer,
		rec.Scope.UserID, rec.Scope.ProjectID, rec.Scope.ConversationID, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording query: %w", err)
	}
	return nil
}

// List returns the most recent records for a scope, newest first. A scope
// with a conversation id narrows the listing to that conversation.
func (h *historyStore) List(ctx context.Context, scope domain.Scope, limit int) ([]domain.QueryRecord, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, query, segment_ids, answer, user_id, project_id, conversation_id, created_at
		FROM query_history
		WHERE user_id = ? AND project_id = ?
	`
	args := []any{scope.UserID, scope.ProjectID}
	if scope.ConversationID != "" {
		query += " AND conversation_id = ?"
		args = append(args, scope.ConversationID)
	}
	query += " ORDER BY created_at DESC, id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := h.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing query history: %w", err)
	}
	defer rows.Close()

	var records []domain.QueryRecord
	for rows.Next() {
		var rec domain.QueryRecord
		var idsJSON string
		var createdAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Query, &idsJSON, &rec.Answer,
			&rec.Scope.UserID, &rec.Scope.ProjectID, &rec.Scope.ConversationID,
			&createdAt); err != nil {
			return nil, fmt.Errorf("scanning query record: %w", err)
		}
		if err := json.Unmarshal([]byte(idsJSON), &rec.SegmentIDs); err != nil {
			return nil, fmt.Errorf("unmarshalling segment ids: %w", err)
		}
		if createdAt.Valid {
			rec.CreatedAt = createdAt.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Clear removes all records for a scope. A scope with a conversation id
// clears only that conversation's records.
func (h *historyStore) Clear(ctx context.Context, scope domain.Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	query := "DELETE FROM query_history WHERE user_id = ? AND project_id = ?"
	args := []any{scope.UserID, scope.ProjectID}
	if scope.ConversationID != "" {
		query += " AND conversation_id = ?"
		args = append(args, scope.ConversationID)
	}

	if _, err := h.store.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing query history: %w", err)
	}
	return nil
}
