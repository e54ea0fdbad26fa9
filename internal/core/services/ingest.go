package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/chunker"
	"github.com/recallhq/recall/internal/core/domain"
	"github.com/recallhq/recall/internal/core/ports/driven"
	"github.com/recallhq/recall/internal/core/ports/driving"
	"github.com/recallhq/recall/internal/extract"
	"github.com/recallhq/recall/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.Ingestor = (*IngestService)(nil)

// IngestService chunks text and writes every chunk to both sides of the
// dual index.
type IngestService struct {
	chunks        *chunker.Chunker
	relationships driven.RelationshipStore
	vectors       driven.VectorIndex
	embedder      driven.EmbeddingService
	locks         scopeLocks
}

// NewIngestService creates a new ingest service. The embedder is optional
// (can be nil): without one, segments are indexed in the relationship
// store only and every ingest report counts them as failed chunks.
func NewIngestService(
	chunks *chunker.Chunker,
	relationships driven.RelationshipStore,
	vectors driven.VectorIndex,
	embedder driven.EmbeddingService,
) *IngestService {
	return &IngestService{
		chunks:        chunks,
		relationships: relationships,
		vectors:       vectors,
		embedder:      embedder,
	}
}

// Ingest splits text into segments and indexes each one, relationship
// store first so a crash between the two writes never yields a vector hit
// that cannot be attributed. Chunks that fail either write are counted in
// the report; the rest of the document still goes through.
func (s *IngestService) Ingest(
	ctx context.Context, text string, scope domain.Scope, sourceLabel string,
) (domain.IngestReport, error) {
	logger.Section("Ingestion")

	if strings.TrimSpace(text) == "" {
		return domain.IngestReport{}, fmt.Errorf("%w: empty text", domain.ErrInvalidInput)
	}
	if err := scope.Validate(); err != nil {
		return domain.IngestReport{}, err
	}
	if sourceLabel == "" {
		sourceLabel = "untitled"
	}

	// Concurrent ingests may interleave; only Clear excludes them.
	lock := s.locks.get(scope)
	lock.RLock()
	defer lock.RUnlock()

	drafts := s.chunks.Split(text)
	logger.Debug("Source %q produced %d segments for scope %s", sourceLabel, len(drafts), scope)

	docID := uuid.NewString()
	now := time.Now().UTC()

	vectors := s.embedDrafts(ctx, drafts)

	report := domain.IngestReport{DocumentID: docID}
	fail := func(err error) {
		report.FailedCount++
		if report.FirstErr == nil {
			report.FirstErr = err
		}
	}
	for i, draft := range drafts {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		seg := domain.Segment{
			ID:         uuid.NewString(),
			DocumentID: docID,
			Text:       draft.Text,
			Negated:    draft.Negated,
			Position:   draft.Position,
			Scope:      scope,
			Source:     sourceLabel,
			Priority:   domain.DefaultPriority,
			Entities:   extract.Entities(draft.Text),
			CreatedAt:  now,
		}

		if err := s.relationships.Put(ctx, seg); err != nil {
			logger.Warn("Relationship write failed for segment %d: %v", draft.Position, err)
			fail(fmt.Errorf("%w: segment %d: %v", domain.ErrIndexWriteFailed, draft.Position, err))
			continue
		}

		if vectors == nil || vectors[i] == nil {
			fail(fmt.Errorf("%w: segment %d", domain.ErrEmbeddingUnavailable, draft.Position))
			continue
		}
		err := s.vectors.Upsert(ctx, driven.VectorEntry{
			SegmentID: seg.ID,
			Vector:    vectors[i],
			Scope:     scope,
		})
		if err != nil {
			logger.Warn("Vector write failed for segment %d: %v", draft.Position, err)
			fail(fmt.Errorf("%w: segment %d: %v", domain.ErrIndexWriteFailed, draft.Position, err))
			continue
		}

		report.SegmentCount++
	}

	doc := domain.SourceDocument{
		ID:           docID,
		Name:         sourceLabel,
		Scope:        scope,
		SegmentCount: report.SegmentCount,
		CreatedAt:    now,
	}
	if err := s.relationships.SaveDocument(ctx, doc); err != nil {
		return report, fmt.Errorf("%w: saving document record: %v", domain.ErrIndexWriteFailed, err)
	}

	if err := s.vectors.Persist(); err != nil {
		logger.Warn("Vector index persist failed: %v", err)
	}

	if report.Partial() {
		logger.Warn("Document %s partially indexed: %d of %d segments failed; re-ingest to repair",
			docID, report.FailedCount, len(drafts))
	}
	return report, nil
}

// RecordExchange stores one chat exchange as a single segment. Interaction
// memories carry a slightly lower priority than document facts so they do
// not drown out ingested sources.
func (s *IngestService) RecordExchange(ctx context.Context, query, answer string, scope domain.Scope) error {
	if strings.TrimSpace(query) == "" && strings.TrimSpace(answer) == "" {
		return fmt.Errorf("%w: empty exchange", domain.ErrInvalidInput)
	}
	if err := scope.Validate(); err != nil {
		return err
	}

	lock := s.locks.get(scope)
	lock.RLock()
	defer lock.RUnlock()

	text := strings.TrimSpace("User: " + query + "\nAssistant: " + answer)
	seg := domain.Segment{
		ID:        uuid.NewString(),
		Text:      text,
		Negated:   extract.HasNegation(text),
		Scope:     scope,
		Source:    domain.SourceInteraction,
		Priority:  domain.InteractionPriority,
		Entities:  extract.Entities(text),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.relationships.Put(ctx, seg); err != nil {
		return fmt.Errorf("storing exchange: %w", err)
	}

	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, text)
		if err == nil {
			err = s.vectors.Upsert(ctx, driven.VectorEntry{SegmentID: seg.ID, Vector: vec, Scope: scope})
		}
		if err != nil {
			// The segment is still reachable through entity matching.
			logger.Warn("Exchange not vector-indexed: %v", err)
		} else if err := s.vectors.Persist(); err != nil {
			logger.Warn("Vector index persist failed: %v", err)
		}
	}
	return nil
}

// Forget soft-deletes every segment in the scope's (user, project) whose
// text contains the pattern and evicts the matching vectors. Returns the
// number of forgotten segments.
func (s *IngestService) Forget(ctx context.Context, scope domain.Scope, pattern string) (int, error) {
	if err := scope.Validate(); err != nil {
		return 0, err
	}

	lock := s.locks.get(scope)
	lock.Lock()
	defer lock.Unlock()

	ids, err := s.relationships.MarkDeleted(ctx, scope, pattern)
	if err != nil {
		return 0, fmt.Errorf("marking segments deleted: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := s.vectors.Delete(ctx, ids); err != nil {
		return len(ids), fmt.Errorf("removing vectors: %w", err)
	}
	if err := s.vectors.Persist(); err != nil {
		logger.Warn("Vector index persist failed: %v", err)
	}

	logger.Info("Forgot %d segments matching %q in %s/%s",
		len(ids), pattern, scope.UserID, scope.ProjectID)
	return len(ids), nil
}

// Clear removes every segment of the scope's (user, project) from both
// stores. The write lock keeps it mutually exclusive with ingestion into
// the same scope.
func (s *IngestService) Clear(ctx context.Context, scope domain.Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	lock := s.locks.get(scope)
	lock.Lock()
	defer lock.Unlock()

	logger.Info("Clearing scope %s/%s", scope.UserID, scope.ProjectID)

	if err := s.relationships.DeleteScope(ctx, scope); err != nil {
		return fmt.Errorf("clearing relationship store: %w", err)
	}
	if err := s.vectors.DeleteScope(ctx, scope); err != nil {
		return fmt.Errorf("%w: clearing vector index: %v", domain.ErrIndexWriteFailed, err)
	}
	if err := s.vectors.Persist(); err != nil {
		return fmt.Errorf("%w: persisting vector index: %v", domain.ErrIndexWriteFailed, err)
	}
	return nil
}

// embedDrafts embeds all chunk texts in one batch, retrying once. A nil
// return means no vectors are available for this document.
func (s *IngestService) embedDrafts(ctx context.Context, drafts []chunker.Draft) [][]float32 {
	if s.embedder == nil || len(drafts) == 0 {
		return nil
	}

	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.Text
	}

	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		logger.Warn("Embedding batch failed, retrying once: %v", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(defaultRetryDelay):
		}
		vecs, err = s.embedder.EmbedBatch(ctx, texts)
	}
	if err != nil {
		logger.Warn("Embedding unavailable, document will need re-ingestion: %v", err)
		return nil
	}
	return vecs
}

// scopeLocks hands out one RWMutex per (user, project). Ingestion holds
// the read side so concurrent ingests proceed; Clear holds the write side.
type scopeLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func (l *scopeLocks) get(scope domain.Scope) *sync.RWMutex {
	key := scope.UserID + "\x00" + scope.ProjectID

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.RWMutex)
	}
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.RWMutex{}
		l.locks[key] = lock
	}
	return lock
}
