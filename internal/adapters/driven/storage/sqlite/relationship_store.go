package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/recallhq/recall/internal/core/domain"
	"github.com/recallhq/recall/internal/core/ports/driven"
)

// relationshipStore implements driven.RelationshipStore.
type relationshipStore struct {
	store *Store
}

var _ driven.RelationshipStore = (*relationshipStore)(nil)

// Put stores a segment and its entity tags in a single transaction, so a
// retry after a crash never leaves a segment without its entities.
func (r *relationshipStore) Put(ctx context.Context, seg domain.Segment) error {
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

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO segments (id, document_id, text, negated, position, user_id, project_id, conversation_id, source, priority, deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			text = excluded.text,
			negated = excluded.negated,
			position = excluded.position,
			user_id = excluded.user_id,
			project_id = excluded.project_id,
			conversation_id = excluded.conversation_id,
			source = excluded.source,
			priority = excluded.priority,
			deleted = excluded.deleted
	`, seg.ID, seg.DocumentID, seg.Text, boolToInt(seg.Negated), seg.Position,
		seg.Scope.UserID, seg.Scope.ProjectID, seg.Scope.ConversationID,
		seg.Source, seg.Priority, boolToInt(seg.Deleted), seg.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving segment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM segment_entities WHERE segment_id = ?", seg.ID); err != nil {
		return fmt.Errorf("clearing segment entities: %w", err)
	}
	for _, entity := range seg.Entities {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO segment_entities (segment_id, entity) VALUES (?, ?)
			ON CONFLICT(segment_id, entity) DO NOTHING
		`, seg.ID, entity); err != nil {
			return fmt.Errorf("saving segment entity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing segment: %w", err)
	}
	return nil
}

// Find returns segments visible to scope that match at least one term,
// either through an entity tag or as a substring of the text. Results are
// ordered by overlap count descending, ties by recency descending.
func (r *relationshipStore) Find(ctx context.Context, scope domain.Scope, terms []string) ([]domain.Segment, error) {
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
	if len(lowered) == 0 {
		return nil, nil
	}

	// Candidate selection is coarse in SQL; exact overlap counting
	// happens in Go where term semantics are easier to keep consistent.
	var clauses []string
	args := []any{scope.UserID, scope.ProjectID, scope.ConversationID}
	for _, t := range lowered {
		clauses = append(clauses, `lower(e.entity) LIKE ? ESCAPE '\'`, `lower(s.text) LIKE ? ESCAPE '\'`)
		pattern := "%" + escapeLike(t) + "%"
		args = append(args, pattern, pattern)
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT s.id, s.document_id, s.text, s.negated, s.position,
			s.user_id, s.project_id, s.conversation_id, s.source, s.priority, s.created_at
		FROM segments s
		LEFT JOIN segment_entities e ON e.segment_id = s.id
		WHERE s.user_id = ? AND s.project_id = ? AND s.deleted = 0
			AND (s.conversation_id = '' OR s.conversation_id = ?)
			AND (%s)
	`, strings.Join(clauses, " OR "))

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding segments: %w", err)
	}
	defer rows.Close()

	segments, err := scanSegments(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadEntities(ctx, segments); err != nil {
		return nil, err
	}

	// The LIKE pre-filter can over-match; recheck in Go.
	matched := segments[:0]
	for _, seg := range segments {
		if overlapCount(seg, lowered) > 0 {
			matched = append(matched, seg)
		}
	}
	segments = matched

	sort.SliceStable(segments, func(a, b int) bool {
		oa, ob := overlapCount(segments[a], lowered), overlapCount(segments[b], lowered)
		if oa != ob {
			return oa > ob
		}
		if !segments[a].CreatedAt.Equal(segments[b].CreatedAt) {
			return segments[a].CreatedAt.After(segments[b].CreatedAt)
		}
		return segments[a].ID < segments[b].ID
	})
	return segments, nil
}

// Get retrieves a segment by id.
func (r *relationshipStore) Get(ctx context.Context, id string) (*domain.Segment, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, document_id, text, negated, position,
			user_id, project_id, conversation_id, source, priority, created_at
		FROM segments WHERE id = ? AND deleted = 0
	`, id)
	if err != nil {
		return nil, fmt.Errorf("getting segment: %w", err)
	}
	defer rows.Close()

	segments, err := scanSegments(rows)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, domain.ErrNotFound
	}
	if err := r.loadEntities(ctx, segments); err != nil {
		return nil, err
	}
	return &segments[0], nil
}

// ListRecent returns the most recently created segments visible to scope.
func (r *relationshipStore) ListRecent(ctx context.Context, scope domain.Scope, limit int) ([]domain.Segment, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, document_id, text, negated, position,
			user_id, project_id, conversation_id, source, priority, created_at
		FROM segments
		WHERE user_id = ? AND project_id = ? AND deleted = 0
			AND (conversation_id = '' OR conversation_id = ?)
		ORDER BY created_at DESC, id ASC
		LIMIT ?
	`, scope.UserID, scope.ProjectID, scope.ConversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	defer rows.Close()

	segments, err := scanSegments(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadEntities(ctx, segments); err != nil {
		return nil, err
	}
	return segments, nil
}

// Count returns the number of segments stored under the scope's (user, project).
func (r *relationshipStore) Count(ctx context.Context, scope domain.Scope) (int, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}

	var count int
	row := r.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM segments WHERE user_id = ? AND project_id = ? AND deleted = 0",
		scope.UserID, scope.ProjectID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting segments: %w", err)
	}
	return count, nil
}

// MarkDeleted soft-deletes every live segment under the scope's
// (user, project) whose text contains the pattern, case insensitive. The
// ids come back so the caller can evict the matching vectors too.
func (r *relationshipStore) MarkDeleted(ctx context.Context, scope domain.Scope, pattern string) ([]string, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", domain.ErrInvalidInput)
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	like := "%" + escapeLike(pattern) + "%"
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM segments
		WHERE user_id = ? AND project_id = ? AND deleted = 0
			AND lower(text) LIKE ? ESCAPE '\'
		ORDER BY id
	`, scope.UserID, scope.ProjectID, like)
	if err != nil {
		return nil, fmt.Errorf("finding segments to delete: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning segment id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"UPDATE segments SET deleted = 1 WHERE id = ?", id); err != nil {
			return nil, fmt.Errorf("marking segment deleted: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing soft delete: %w", err)
	}
	return ids, nil
}

// DeleteScope removes every segment and document stored under the scope's
// (user, project). Entity rows go with their segments via the cascade.
func (r *relationshipStore) DeleteScope(ctx context.Context, scope domain.Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM segments WHERE user_id = ? AND project_id = ?",
		scope.UserID, scope.ProjectID); err != nil {
		return fmt.Errorf("deleting segments: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM documents WHERE user_id = ? AND project_id = ?",
		scope.UserID, scope.ProjectID); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing scope delete: %w", err)
	}
	return nil
}

// SaveDocument stores or updates a source document record.
func (r *relationshipStore) SaveDocument(ctx context.Context, doc domain.SourceDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document requires an id", domain.ErrInvalidInput)
	}
	if err := doc.Scope.Validate(); err != nil {
		return err
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, name, user_id, project_id, conversation_id, segment_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			segment_count = excluded.segment_count
	`, doc.ID, doc.Name, doc.Scope.UserID, doc.Scope.ProjectID,
		doc.Scope.ConversationID, doc.SegmentCount, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a source document by id.
func (r *relationshipStore) GetDocument(ctx context.Context, id string) (*domain.SourceDocument, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT id, name, user_id, project_id, conversation_id, segment_count, created_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns the documents of a scope, newest first.
func (r *relationshipStore) ListDocuments(ctx context.Context, scope domain.Scope) ([]domain.SourceDocument, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, name, user_id, project_id, conversation_id, segment_count, created_at
		FROM documents
		WHERE user_id = ? AND project_id = ?
			AND (conversation_id = '' OR conversation_id = ?)
		ORDER BY created_at DESC, id ASC
	`, scope.UserID, scope.ProjectID, scope.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.SourceDocument
	for rows.Next() {
		var doc domain.SourceDocument
		var createdAt sql.NullTime
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Scope.UserID, &doc.Scope.ProjectID,
			&doc.Scope.ConversationID, &doc.SegmentCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if createdAt.Valid {
			doc.CreatedAt = createdAt.Time
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// loadEntities attaches the entity tags to each segment.
func (r *relationshipStore) loadEntities(ctx context.Context, segments []domain.Segment) error {
	for i := range segments {
		rows, err := r.store.db.QueryContext(ctx,
			"SELECT entity FROM segment_entities WHERE segment_id = ? ORDER BY entity",
			segments[i].ID)
		if err != nil {
			return fmt.Errorf("loading entities: %w", err)
		}

		var entities []string
		for rows.Next() {
			var entity string
			if err := rows.Scan(&entity); err != nil {
				rows.Close()
				return fmt.Errorf("scanning entity: %w", err)
			}
			entities = append(entities, entity)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
		segments[i].Entities = entities
	}
	return nil
}

// scanSegments reads segment rows into domain segments, entities excluded.
func scanSegments(rows *sql.Rows) ([]domain.Segment, error) {
	var segments []domain.Segment
	for rows.Next() {
		var seg domain.Segment
		var negated int
		var createdAt sql.NullTime
		if err := rows.Scan(&seg.ID, &seg.DocumentID, &seg.Text, &negated, &seg.Position,
			&seg.Scope.UserID, &seg.Scope.ProjectID, &seg.Scope.ConversationID,
			&seg.Source, &seg.Priority, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning segment: %w", err)
		}
		seg.Negated = negated != 0
		if createdAt.Valid {
			seg.CreatedAt = createdAt.Time
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// scanDocument reads a single document row.
func scanDocument(row *sql.Row) (*domain.SourceDocument, error) {
	var doc domain.SourceDocument
	var createdAt sql.NullTime
	if err := row.Scan(&doc.ID, &doc.Name, &doc.Scope.UserID, &doc.Scope.ProjectID,
		&doc.Scope.ConversationID, &doc.SegmentCount, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	return &doc, nil
}

// overlapCount counts how many of the terms a segment matches, through an
// entity tag or as a substring of the text.
func overlapCount(seg domain.Segment, terms []string) int {
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

// escapeLike escapes LIKE wildcards in user terms. Queries using the
// result must declare ESCAPE '\'.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
