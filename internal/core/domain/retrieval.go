package domain

import "time"

// DefaultK is the default number of segments returned by a retrieval.
const DefaultK = 15

// RetrievalOptions configures a retrieval call.
type RetrievalOptions struct {
	// K is the maximum number of segments to return (default 15).
	K int

	// EntityWeight is the bonus added per overlapping entity/term.
	// Zero means use the engine's configured weight.
	EntityWeight float64

	// NegationBoost multiplies the score of negation-flagged segments
	// when the query contains a negation-sensitive term ("still",
	// "anymore"). Zero means use the engine's configured boost.
	NegationBoost float64
}

// RankedSegment is a single retrieval hit with its composite score.
type RankedSegment struct {
	// Segment is the matched memory.
	Segment Segment

	// Score is the composite relevance score after re-ranking.
	Score float64

	// VectorSimilarity is the raw similarity from the vector index,
	// zero when the segment was found only through entity matching.
	VectorSimilarity float64

	// EntityOverlap counts query terms matched by the segment.
	EntityOverlap int
}

// RetrievalResult carries the ranked segments plus degradation state, so a
// caller can distinguish "nothing relevant" from "retrieval ran blind".
type RetrievalResult struct {
	// Segments are the ranked hits, best first.
	Segments []RankedSegment

	// Degraded is true when vector search was unavailable and the result
	// was produced from relationship matching alone.
	Degraded bool
}

// SegmentIDs returns the ids of the ranked segments in order, for history
// recording and citation display.
func (r RetrievalResult) SegmentIDs() []string {
	ids := make([]string, len(r.Segments))
	for i := range r.Segments {
		ids[i] = r.Segments[i].Segment.ID
	}
	return ids
}

// IngestReport summarises one document ingestion.
type IngestReport struct {
	// DocumentID is the id assigned to the ingested document.
	DocumentID string

	// SegmentCount is the number of segments fully indexed in both stores.
	SegmentCount int

	// FailedCount is the number of chunks that could not be fully
	// indexed. Non-zero means the document is partial and should be
	// re-ingested.
	FailedCount int

	// FirstErr is the error from the first chunk that failed, nil when
	// the document indexed completely.
	FirstErr error
}

// Partial reports whether the ingestion left the document incomplete.
func (r IngestReport) Partial() bool {
	return r.FailedCount > 0
}

// QueryRecord is an append-only audit entry for one retrieval.
type QueryRecord struct {
	// ID is the unique identifier for the record.
	ID string

	// Query is the original query text.
	Query string

	// SegmentIDs are the ids of the segments that were retrieved.
	SegmentIDs []string

	// Answer is the generated answer, if the caller produced one.
	Answer string

	// Scope is the scope the retrieval ran under.
	Scope Scope

	// CreatedAt is when the query was executed.
	CreatedAt time.Time
}
