package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingUnavailable indicates the embedding service failed or is
	// not configured. Retriable; retrieval degrades to relationship-only
	// matching after the retry is exhausted.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIndexWriteFailed indicates a vector or relationship index write
	// failed. Fatal to the current ingestion call; the document is
	// reported partial and re-ingestion is the recovery path.
	ErrIndexWriteFailed = errors.New("index write failed")

	// ErrRelationshipStoreUnavailable indicates the relationship store
	// cannot be queried. Fatal to the current retrieval call - entity
	// re-ranking is load-bearing, so no silent empty result is returned.
	ErrRelationshipStoreUnavailable = errors.New("relationship store unavailable")

	// ErrScopeMismatch indicates a caller supplied a scope inconsistent
	// with an existing document or segment. This is a programmer error:
	// the call is rejected, never coerced into another scope.
	ErrScopeMismatch = errors.New("scope mismatch")
)
