package domain

import "time"

// Priority bounds for segments. DefaultPriority applies when the caller
// does not set one; InteractionPriority is used for chat exchanges, which
// rank slightly below document facts.
const (
	MinPriority         = 0.0
	MaxPriority         = 3.0
	DefaultPriority     = 1.0
	InteractionPriority = 0.8
)

// SourceInteraction is the source label for segments produced from chat
// exchanges rather than ingested documents.
const SourceInteraction = "interaction"

// Segment is the atomic retrievable unit of memory. Segments are immutable
// once created except for the soft-delete marker; they are removed only by
// a scope-wide clear.
type Segment struct {
	// ID is the unique identifier for the segment.
	ID string

	// DocumentID links to the SourceDocument that produced this segment.
	// Empty for segments created from chat interactions.
	DocumentID string

	// Text is the segment content.
	Text string

	// Negated is true when the text likely expresses absence or
	// termination of a fact (lexical heuristic, see the extract package).
	Negated bool

	// Position is the ordinal position within the source document.
	Position int

	// Scope controls visibility of the segment.
	Scope Scope

	// Source is a display label: the document name, or "interaction".
	Source string

	// Priority weights the segment during re-ranking (0.0-3.0).
	Priority float64

	// Entities are the coarse entity names extracted at write time.
	Entities []string

	// Deleted marks the segment forgotten. Deleted segments are invisible
	// to retrieval and listing but stay on disk until the scope is
	// cleared.
	Deleted bool

	// CreatedAt is when the segment was ingested.
	CreatedAt time.Time
}

// SourceDocument groups the segments produced from one ingested text.
// Segments reference it by ID only; interaction segments have no document.
type SourceDocument struct {
	// ID is the unique identifier for the document.
	ID string

	// Name is the human-readable source label.
	Name string

	// Scope controls visibility of the document and its segments.
	Scope Scope

	// SegmentCount is the number of segments the document produced.
	SegmentCount int

	// CreatedAt is when the document was ingested.
	CreatedAt time.Time
}

// ClampPriority forces a priority into the valid range, substituting the
// default for unset (zero) values.
func ClampPriority(p float64) float64 {
	if p == 0 {
		return DefaultPriority
	}
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}
