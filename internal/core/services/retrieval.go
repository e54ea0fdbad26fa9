package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/recallhq/recall/internal/core/domain"
	"github.com/recallhq/recall/internal/core/ports/driven"
	"github.com/recallhq/recall/internal/core/ports/driving"
	"github.com/recallhq/recall/internal/extract"
	"github.com/recallhq/recall/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.Retriever = (*RetrievalService)(nil)

// Default score shaping constants.
const (
	// DefaultEntityWeight is the score bonus per overlapping query term.
	DefaultEntityWeight = 0.1

	// DefaultNegationBoost multiplies negated segments on
	// negation-sensitive queries, so "Raju left DRC" outranks older
	// "Raju works at DRC" facts when asked "Is Raju still at DRC?".
	DefaultNegationBoost = 1.5

	// relationshipBase is the base score for segments found only through
	// entity matching. Sits mid-range of the normalised cosine band.
	relationshipBase = 0.5

	// defaultRetryDelay is the pause before the single embed retry.
	defaultRetryDelay = 200 * time.Millisecond

	// minDegradedK is the floor on result size in degraded mode.
	minDegradedK = 3
)

// candidate holds intermediate retrieval state before scoring.
type candidate struct {
	segment    domain.Segment
	vectorSim  float64
	fromVector bool
	overlap    int
}

// RetrievalService provides scope-aware hybrid retrieval over the dual
// index.
type RetrievalService struct {
	relationships driven.RelationshipStore
	vectors       driven.VectorIndex
	embedder      driven.EmbeddingService
	history       driven.HistoryStore

	entityWeight  float64
	negationBoost float64
	retryDelay    time.Duration
}

// RetrievalOption configures a RetrievalService.
type RetrievalOption func(*RetrievalService)

// WithEntityWeight overrides the per-term overlap bonus.
func WithEntityWeight(w float64) RetrievalOption {
	return func(s *RetrievalService) {
		if w > 0 {
			s.entityWeight = w
		}
	}
}

// WithNegationBoost overrides the negation multiplier.
func WithNegationBoost(b float64) RetrievalOption {
	return func(s *RetrievalService) {
		if b > 0 {
			s.negationBoost = b
		}
	}
}

// WithRetryDelay overrides the pause before the embed retry.
func WithRetryDelay(d time.Duration) RetrievalOption {
	return func(s *RetrievalService) {
		if d >= 0 {
			s.retryDelay = d
		}
	}
}

// NewRetrievalService creates a new retrieval service. The embedder and
// history store are optional (can be nil): without an embedder every
// retrieval is relationship-only and reported as degraded; without a
// history store queries are not recorded.
func NewRetrievalService(
	relationships driven.RelationshipStore,
	vectors driven.VectorIndex,
	embedder driven.EmbeddingService,
	history driven.HistoryStore,
	opts ...RetrievalOption,
) *RetrievalService {
	s := &RetrievalService{
		relationships: relationships,
		vectors:       vectors,
		embedder:      embedder,
		history:       history,
		entityWeight:  DefaultEntityWeight,
		negationBoost: DefaultNegationBoost,
		retryDelay:    defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve runs hybrid retrieval: vector similarity and entity overlap
// candidates are merged, re-ranked with a composite score and truncated
// to k. A failing embedder degrades to relationship-only matching; a
// failing relationship store fails the whole call.
func (s *RetrievalService) Retrieve(
	ctx context.Context, query string, scope domain.Scope, opts domain.RetrievalOptions,
) (domain.RetrievalResult, error) {
	logger.Section("Retrieval")

	query = strings.TrimSpace(query)
	if query == "" {
		return domain.RetrievalResult{}, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if err := scope.Validate(); err != nil {
		return domain.RetrievalResult{}, err
	}

	k := opts.K
	if k <= 0 {
		k = domain.DefaultK
	}
	entityWeight := s.entityWeight
	if opts.EntityWeight > 0 {
		entityWeight = opts.EntityWeight
	}
	negationBoost := s.negationBoost
	if opts.NegationBoost > 0 {
		negationBoost = opts.NegationBoost
	}

	terms := extract.QueryTerms(query)
	sensitive := extract.IsNegationSensitive(query)
	logger.Debug("Query: %q scope=%s terms=%v negation_sensitive=%t", query, scope, terms, sensitive)

	candidates := make(map[string]*candidate)
	degraded := false

	// Vector side
	queryVec, err := s.embedQuery(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return domain.RetrievalResult{}, ctx.Err()
		}
		logger.Warn("Embedding unavailable, falling back to relationship matching: %v", err)
		degraded = true
	}
	if !degraded {
		hits, err := s.vectors.Search(ctx, queryVec, k, scope)
		if err != nil {
			logger.Warn("Vector search failed, falling back to relationship matching: %v", err)
			degraded = true
		} else {
			for _, hit := range hits {
				seg, err := s.relationships.Get(ctx, hit.SegmentID)
				if errors.Is(err, domain.ErrNotFound) {
					// The vector index can briefly lead the store
					// after a crash; skip unknown ids.
					logger.Debug("Skipping vector hit %s: %v", hit.SegmentID, err)
					continue
				}
				if err != nil {
					return domain.RetrievalResult{}, fmt.Errorf("%w: %v", domain.ErrRelationshipStoreUnavailable, err)
				}
				candidates[seg.ID] = &candidate{
					segment:    *seg,
					vectorSim:  hit.Similarity,
					fromVector: true,
					overlap:    termOverlap(*seg, terms),
				}
			}
		}
	}

	// Relationship side. This store is authoritative: failure here is an
	// error, not an empty result.
	related, err := s.relationships.Find(ctx, scope, terms)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("%w: %v", domain.ErrRelationshipStoreUnavailable, err)
	}
	for _, seg := range related {
		if c, ok := candidates[seg.ID]; ok {
			c.overlap = termOverlap(seg, terms)
			continue
		}
		candidates[seg.ID] = &candidate{
			segment: seg,
			overlap: termOverlap(seg, terms),
		}
	}

	limit := k
	if degraded {
		limit = k / 3
		if limit < minDegradedK {
			limit = minDegradedK
		}
	}

	ranked := rank(candidates, entityWeight, negationBoost, sensitive)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	result := domain.RetrievalResult{Segments: ranked, Degraded: degraded}
	logger.Info("Retrieved %d segments (degraded=%t)", len(ranked), degraded)

	s.recordQuery(ctx, query, scope, result)
	return result, nil
}

// BuildContext renders a retrieval result as a numbered citation block
// suitable for prompting an external answer generator.
func (s *RetrievalService) BuildContext(result domain.RetrievalResult) string {
	if len(result.Segments) == 0 {
		return "No relevant memories found."
	}

	var b strings.Builder
	b.WriteString("Relevant memories:\n")
	for i, rs := range result.Segments {
		fmt.Fprintf(&b, "[%d] %s (source: %s)\n", i+1, rs.Segment.Text, rs.Segment.Source)
	}
	if result.Degraded {
		b.WriteString("Note: semantic search was unavailable; these are entity matches only.\n")
	}
	return b.String()
}

// embedQuery embeds the query, retrying once after a short pause. Returns
// an error when no embedder is configured.
func (s *RetrievalService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err == nil {
		return vec, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.retryDelay):
	}
	return s.embedder.Embed(ctx, query)
}

// recordQuery appends the retrieval to the history log. History failures
// are logged, never surfaced: the retrieval already succeeded.
func (s *RetrievalService) recordQuery(ctx context.Context, query string, scope domain.Scope, result domain.RetrievalResult) {
	if s.history == nil {
		return
	}
	rec := domain.QueryRecord{
		ID:         uuid.NewString(),
		Query:      query,
		SegmentIDs: result.SegmentIDs(),
		Scope:      scope,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.history.Record(ctx, rec); err != nil {
		logger.Warn("Failed to record query history: %v", err)
	}
}

// rank applies the composite score and orders the candidates: score
// descending, ties by recency descending, then by id for stability.
func rank(candidates map[string]*candidate, entityWeight, negationBoost float64, sensitive bool) []domain.RankedSegment {
	ranked := make([]domain.RankedSegment, 0, len(candidates))
	for _, c := range candidates {
		base := relationshipBase
		if c.fromVector {
			// Map cosine from [-1, 1] into [0, 1]
			base = (1 + c.vectorSim) / 2
		}
		score := base + entityWeight*float64(c.overlap)
		if sensitive && c.segment.Negated {
			score *= negationBoost
		}
		score *= domain.ClampPriority(c.segment.Priority)

		ranked = append(ranked, domain.RankedSegment{
			Segment:          c.segment,
			Score:            score,
			VectorSimilarity: c.vectorSim,
			EntityOverlap:    c.overlap,
		})
	}

	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].Score != ranked[b].Score {
			return ranked[a].Score > ranked[b].Score
		}
		if !ranked[a].Segment.CreatedAt.Equal(ranked[b].Segment.CreatedAt) {
			return ranked[a].Segment.CreatedAt.After(ranked[b].Segment.CreatedAt)
		}
		return ranked[a].Segment.ID < ranked[b].Segment.ID
	})
	return ranked
}

// termOverlap counts the query terms a segment matches through an entity
// tag or its text.
func termOverlap(seg domain.Segment, terms []string) int {
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
