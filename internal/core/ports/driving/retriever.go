package driving

import (
	"context"

	"github.com/recallhq/recall/internal/core/domain"
)

// Retriever provides scope-aware hybrid retrieval to external actors.
type Retriever interface {
	// Retrieve runs hybrid retrieval for a query within a scope and
	// returns the ranked, citable segments. Degradation (vector search
	// unavailable) is reported on the result, never hidden.
	Retrieve(ctx context.Context, query string, scope domain.Scope, opts domain.RetrievalOptions) (domain.RetrievalResult, error)

	// BuildContext renders a retrieval result as a numbered, citation-
	// bearing context block for an external answer generator.
	BuildContext(result domain.RetrievalResult) string
}

// Ingestor drives text into the dual index.
type Ingestor interface {
	// Ingest chunks text, indexes every chunk in both stores and records
	// the source document. The report flags partially indexed documents.
	Ingest(ctx context.Context, text string, scope domain.Scope, sourceLabel string) (domain.IngestReport, error)

	// RecordExchange stores one chat exchange as a single
	// conversation-scoped memory with the interaction source label.
	RecordExchange(ctx context.Context, query, answer string, scope domain.Scope) error

	// Forget soft-deletes the scope's segments whose text contains the
	// pattern and evicts their vectors. Returns how many were forgotten.
	Forget(ctx context.Context, scope domain.Scope, pattern string) (int, error)

	// Clear removes every segment of the scope's (user, project) from
	// both stores. Mutually exclusive with ingestion into the same scope.
	Clear(ctx context.Context, scope domain.Scope) error
}

// Library provides read access to the stored memories of a scope.
type Library interface {
	// Recent returns the newest segments visible to scope.
	Recent(ctx context.Context, scope domain.Scope, limit int) ([]domain.Segment, error)

	// Documents returns the scope's source documents, newest first.
	Documents(ctx context.Context, scope domain.Scope) ([]domain.SourceDocument, error)

	// Count returns the number of segments under the scope's
	// (user, project).
	Count(ctx context.Context, scope domain.Scope) (int, error)
}

// History exposes the query audit log.
type History interface {
	// Record appends a query record.
	Record(ctx context.Context, rec domain.QueryRecord) error

	// List returns the most recent records for a scope, newest first.
	List(ctx context.Context, scope domain.Scope, limit int) ([]domain.QueryRecord, error)

	// Clear removes all records for a scope.
	Clear(ctx context.Context, scope domain.Scope) error
}
