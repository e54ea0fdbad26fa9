package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall/internal/adapters/driven/storage/memory"
	"github.com/recallhq/recall/internal/chunker"
	"github.com/recallhq/recall/internal/core/domain"
)

func newIngestor(rels *memory.RelationshipStore, vecs *mockVectorIndex, emb *mockEmbedder) *IngestService {
	if emb == nil {
		return NewIngestService(chunker.New(), rels, vecs, nil)
	}
	return NewIngestService(chunker.New(), rels, vecs, emb)
}

func TestIngestRejectsEmptyText(t *testing.T) {
	svc := newIngestor(memory.NewRelationshipStore(), &mockVectorIndex{}, nil)

	_, err := svc.Ingest(context.Background(), "  \n ", svcScope, "notes.txt")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestRejectsInvalidScope(t *testing.T) {
	svc := newIngestor(memory.NewRelationshipStore(), &mockVectorIndex{}, nil)

	_, err := svc.Ingest(context.Background(), "Some text.", domain.Scope{}, "notes.txt")
	assert.ErrorIs(t, err, domain.ErrScopeMismatch)
}

func TestIngestIndexesBothStores(t *testing.T) {
	rels := memory.NewRelationshipStore()
	vecs := &mockVectorIndex{}
	emb := &mockEmbedder{vec: []float32{1, 0, 0}}
	svc := newIngestor(rels, vecs, emb)
	ctx := context.Background()

	text := "Raju works at DRC Systems. He joined in January. Anna leads the design team."
	report, err := svc.Ingest(ctx, text, svcScope, "team.txt")
	require.NoError(t, err)

	assert.False(t, report.Partial())
	assert.NotEmpty(t, report.DocumentID)
	require.Greater(t, report.SegmentCount, 0)

	// Every indexed segment is in both stores with the same id and scope.
	assert.Len(t, vecs.upserts, report.SegmentCount)
	for _, e := range vecs.upserts {
		seg, err := rels.Get(ctx, e.SegmentID)
		require.NoError(t, err)
		assert.Equal(t, svcScope, seg.Scope)
		assert.Equal(t, "team.txt", seg.Source)
		assert.Equal(t, report.DocumentID, seg.DocumentID)
		assert.NotEmpty(t, seg.Entities)
	}

	doc, err := rels.GetDocument(ctx, report.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "team.txt", doc.Name)
	assert.Equal(t, report.SegmentCount, doc.SegmentCount)

	assert.Equal(t, 1, vecs.persistCalls)
}

func TestIngestTagsNegatedChunks(t *testing.T) {
	rels := memory.NewRelationshipStore()
	emb := &mockEmbedder{vec: []float32{1, 0, 0}}
	svc := newIngestor(rels, &mockVectorIndex{}, emb)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "Raju no longer works at DRC.", svcScope, "update.txt")
	require.NoError(t, err)

	found, err := rels.Find(ctx, svcScope, []string{"raju"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].Negated)
}

func TestIngestVectorFailureIsPartial(t *testing.T) {
	rels := memory.NewRelationshipStore()
	vecs := &mockVectorIndex{upsertErr: errors.New("index full")}
	emb := &mockEmbedder{vec: []float32{1, 0, 0}}
	svc := newIngestor(rels, vecs, emb)
	ctx := context.Background()

	report, err := svc.Ingest(ctx, "Raju works at DRC.", svcScope, "notes.txt")
	require.NoError(t, err)
	assert.True(t, report.Partial())
	assert.Zero(t, report.SegmentCount)
	assert.Equal(t, 1, report.FailedCount)
	assert.ErrorIs(t, report.FirstErr, domain.ErrIndexWriteFailed)

	// Relationship-store-first: the segment is still retrievable by entity.
	found, err := rels.Find(ctx, svcScope, []string{"raju"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestIngestEmbeddingOutageIsPartial(t *testing.T) {
	rels := memory.NewRelationshipStore()
	emb := &mockEmbedder{vec: []float32{1, 0, 0}, failures: 10}
	svc := newIngestor(rels, &mockVectorIndex{}, emb)
	ctx := context.Background()

	report, err := svc.Ingest(ctx, "Raju works at DRC. Anna plays chess.", svcScope, "notes.txt")
	require.NoError(t, err)
	assert.True(t, report.Partial())
	assert.Zero(t, report.SegmentCount)
	assert.ErrorIs(t, report.FirstErr, domain.ErrEmbeddingUnavailable)
	// Batch embed retried once only.
	assert.Equal(t, 2, emb.calls)

	// All segments still landed in the relationship store.
	count, err := rels.Count(ctx, svcScope)
	require.NoError(t, err)
	assert.Equal(t, report.FailedCount, count)
}

func TestRecordExchange(t *testing.T) {
	rels := memory.NewRelationshipStore()
	vecs := &mockVectorIndex{}
	emb := &mockEmbedder{vec: []float32{1, 0, 0}}
	svc := newIngestor(rels, vecs, emb)
	ctx := context.Background()

	conv := domain.Scope{UserID: "u1", ProjectID: "p1", ConversationID: "c1"}
	err := svc.RecordExchange(ctx, "Is Raju still at DRC?", "No, he resigned in March.", conv)
	require.NoError(t, err)

	found, err := rels.Find(ctx, conv, []string{"raju"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	seg := found[0]
	assert.Equal(t, domain.SourceInteraction, seg.Source)
	assert.Equal(t, domain.InteractionPriority, seg.Priority)
	assert.Equal(t, conv, seg.Scope)
	assert.True(t, seg.Negated) // "resigned" in the answer
	assert.True(t, strings.Contains(seg.Text, "User:") && strings.Contains(seg.Text, "Assistant:"))

	require.Len(t, vecs.upserts, 1)
	assert.Equal(t, seg.ID, vecs.upserts[0].SegmentID)
}

func TestRecordExchangeRejectsEmpty(t *testing.T) {
	svc := newIngestor(memory.NewRelationshipStore(), &mockVectorIndex{}, nil)

	err := svc.RecordExchange(context.Background(), "", "  ", svcScope)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestForgetRemovesMatchingSegments(t *testing.T) {
	rels := memory.NewRelationshipStore()
	vecs := &mockVectorIndex{}
	emb := &mockEmbedder{vec: []float32{1, 0, 0}}
	svc := newIngestor(rels, vecs, emb)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "Raju works at DRC.", svcScope, "notes.txt")
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "Anna likes painting.", svcScope, "notes.txt")
	require.NoError(t, err)

	n, err := svc.Forget(ctx, svcScope, "raju")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, vecs.deletedIDs, 1)

	// The forgotten segment is gone from lookup and entity matching.
	_, err = rels.Get(ctx, vecs.deletedIDs[0])
	assert.ErrorIs(t, err, domain.ErrNotFound)
	found, err := rels.Find(ctx, svcScope, []string{"raju"})
	require.NoError(t, err)
	assert.Empty(t, found)

	// Unrelated memories survive.
	found, err = rels.Find(ctx, svcScope, []string{"anna"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestForgetWithoutMatches(t *testing.T) {
	rels := memory.NewRelationshipStore()
	svc := newIngestor(rels, &mockVectorIndex{}, nil)
	ctx := context.Background()

	n, err := svc.Forget(ctx, svcScope, "nothing here")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClearRemovesBothStores(t *testing.T) {
	rels := memory.NewRelationshipStore()
	vecs := &mockVectorIndex{}
	emb := &mockEmbedder{vec: []float32{1, 0, 0}}
	svc := newIngestor(rels, vecs, emb)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "Raju works at DRC.", svcScope, "notes.txt")
	require.NoError(t, err)

	other := domain.Scope{UserID: "u2", ProjectID: "p1"}
	_, err = svc.Ingest(ctx, "Boris works at Initech.", other, "other.txt")
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, svcScope))

	count, err := rels.Count(ctx, svcScope)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = rels.Count(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, vecs.deleted, 1)
	assert.Equal(t, svcScope, vecs.deleted[0])
}

func TestHistoryServiceAssignsIDs(t *testing.T) {
	hist := memory.NewHistoryStore()
	svc := NewHistoryService(hist)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, domain.QueryRecord{Query: "hello", Scope: svcScope}))

	records, err := svc.List(ctx, svcScope, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].ID)
	assert.False(t, records[0].CreatedAt.IsZero())

	require.NoError(t, svc.Clear(ctx, svcScope))
	records, err = svc.List(ctx, svcScope, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
