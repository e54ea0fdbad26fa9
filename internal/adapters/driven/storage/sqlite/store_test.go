package sqlite

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "recall-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

var storeScope = domain.Scope{UserID: "u1", ProjectID: "p1"}

// testSegment builds a segment with sane defaults for store tests.
func testSegment(id, text string, scope domain.Scope, entities ...string) domain.Segment {
	return domain.Segment{
		ID:       id,
		Text:     text,
		Scope:    scope,
		Source:   "notes.txt",
		Priority: domain.DefaultPriority,
		Entities: entities,
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "recall-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening the same directory must not re-run applied migrations.
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestRelationshipStorePutGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	rs := store.RelationshipStore()

	seg := testSegment("seg-1", "Raju no longer works at DRC.", storeScope, "Raju", "DRC")
	seg.Negated = true
	seg.DocumentID = "doc-1"
	seg.Position = 2
	require.NoError(t, rs.Put(ctx, seg))

	got, err := rs.Get(ctx, "seg-1")
	require.NoError(t, err)
	assert.Equal(t, "Raju no longer works at DRC.", got.Text)
	assert.True(t, got.Negated)
	assert.Equal(t, 2, got.Position)
	assert.Equal(t, "doc-1", got.DocumentID)
	assert.Equal(t, storeScope, got.Scope)
	assert.ElementsMatch(t, []string{"Raju", "DRC"}, got.Entities)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRelationshipStoreGetNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.RelationshipStore().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRelationshipStorePutIsIdempotent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	rs := store.RelationshipStore()

	seg := testSegment("seg-1", "Anna plays chess.", storeScope, "Anna")
	require.NoError(t, rs.Put(ctx, seg))
	require.NoError(t, rs.Put(ctx, seg))

	count, err := rs.Count(ctx, storeScope)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := rs.Get(ctx, "seg-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Anna"}, got.Entities)
}

func TestRelationshipStoreFindRanksOverlap(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	rs := store.RelationshipStore()

	require.NoError(t, rs.Put(ctx, testSegment("seg-both", "Raju worked at DRC for years.", storeScope, "Raju", "DRC")))
	require.NoError(t, rs.Put(ctx, testSegment("seg-one", "Raju likes cricket.", storeScope, "Raju")))
	require.NoError(t, rs.Put(ctx, testSegment("seg-none", "Anna plays chess.", storeScope, "Anna")))

	found, err := rs.Find(ctx, storeScope, []string{"raju", "drc"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "seg-both", found[0].ID)
	assert.Equal(t, "seg-one", found[1].ID)
}

func TestRelationshipStoreFindMatchesTextSubstring(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	rs := store.RelationshipStore()

	// No entity tag for "painting"; the raw text still matches.
	require.NoError(t, rs.Put(ctx, testSegment("seg-1", "She took up painting last spring.", storeScope)))

	found, err := rs.Find(ctx, storeScope, []string{"painting"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "seg-1", found[0].ID)
}

func TestRelationshipStoreFindTermWithLikeWildcards(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	rs := store.RelationshipStore()

	require.NoError(t, rs.Put(ctx, testSegment("seg-1", "The auth_service module handles login.", storeScope)))
	require.NoError(t, rs.Put(ctx, testSegment("seg-2", "Disk usage hit 90% on Friday.", storeScope)))

	// Underscore is a LIKE wildcard; it must match literally, not as "any char".
	found, err := rs.Find(ctx, storeScope, []string{"auth_service"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "seg-1", found[0].ID)

	// "auth-service" must not match through a wildcard underscore.
	found, err = rs.Find(ctx, storeScope, []string{"auth-service"})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = rs.Find(ctx, storeScope, []string{"90%"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "seg-2", found[0].ID)
}

func TestRelationshipStoreFindTiesByRecency(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	rs := store.RelationshipStore()

	older := testSegment("seg-old", "Raju joined the team.", storeScope, "Raju")
	older.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := testSegment("seg-new", "Raju left the team.", storeScope, "Raju")
	newer.CreatedAt = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, rs.Put(ctx, older))
	require.NoError(t, rs.Put(ctx, newer))

	found, err := rs.Find(ctx, storeScope, []string{"raju"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "seg-new", found[0].ID)
	assert.Equal(t, "seg-old", found[1].ID)
}

func TestRelationshipStoreFindRespectsScope(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	rs := store.RelationshipStore()

	convA := domain.Scope{UserID: "u1", ProjectID: "p1", ConversationID: "a"}
	convB := domain.Scope{UserID: "u1", ProjectID: "p1", ConversationID: "b"}
	otherUser := domain.Scope{UserID: "u2", ProjectID: "p1"}

	require.NoError(t, rs.Put(ctx, testSegment("seg-project", "Raju likes tea.", storeScope, "Raju")))
	require.NoError(t, rs.Put(ctx, testSegment("seg-conv-a", "Raju likes coffee.", convA, "Raju")))
	require.NoError(t, rs.Put(ctx, testSegment("seg-other", "Raju likes juice.", otherUser, "Raju")))

	found, err := rs.Find(ctx, convA, []string{"raju"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"seg-project", "seg-conv-a"}, segmentIDs(found))

	found, err = rs.Find(ctx, convB, []string{"raju"})
	require.NoError(t, err)
	assert.Equal(t, []string{"seg-project"}, segmentIDs(found))

	// Project-wide query sees only project-wide segments.
	found, err = rs.Find(ctx, storeScope, []string{"raju"})
	require.NoError(t, err)
	assert.Equal(t, []string{"seg-project"}, segmentIDs(found))
}

func TestRelationshipStoreFindEmptyTerms(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	found, err := store.RelationshipStore().Find(context.Background(), storeScope, nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestRelationshipStoreListRecent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	rs := store.RelationshipStore()

	for i, id := range []string{"seg-1", "seg-2", "seg-3"} {
		seg := testSegment(id, "Fact number "+id+".", storeScope)
		seg.CreatedAt = time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC)
		require.NoError(t, rs.Put(ctx, seg))
	}

	recent, err := rs.ListRecent(ctx, storeScope, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "seg-3", recent[0].ID)
	assert.Equal(t, "seg-2", recent[1].ID)
}

func TestRelationshipStoreMarkDeleted(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	rs := store.RelationshipStore()

	require.NoError(t, rs.Put(ctx, testSegment("seg-1", "Raju works at DRC.", storeScope, "Raju", "DRC")))
	require.NoError(t, rs.Put(ctx, testSegment("seg-2", "Raju likes cricket.", storeScope, "Raju")))
	require.NoError(t, rs.Put(ctx, testSegment("seg-3", "Anna plays chess.", storeScope, "Anna")))

	ids, err := rs.MarkDeleted(ctx, storeScope, "Raju")
	require.NoError(t, err)
	assert.Equal(t, []string{"seg-1", "seg-2"}, ids)

	// Deleted segments vanish from every read path.
	_, err = rs.Get(ctx, "seg-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	found, err := rs.Find(ctx, storeScope, []string{"raju"})
	require.NoError(t, err)
	assert.Empty(t, found)

	count, err := rs.Count(ctx, storeScope)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	recent, err := rs.ListRecent(ctx, storeScope, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "seg-3", recent[0].ID)

	// Marking again finds nothing new.
	ids, err = rs.MarkDeleted(ctx, storeScope, "raju")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRelationshipStoreMarkDeletedEmptyPattern(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.RelationshipStore().MarkDeleted(context.Background(), storeScope, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRelationshipStoreDeleteScope(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	rs := store.RelationshipStore()

	conv := domain.Scope{UserID: "u1", ProjectID: "p1", ConversationID: "c"}
	other := domain.Scope{UserID: "u1", ProjectID: "p2"}

	require.NoError(t, rs.Put(ctx, testSegment("seg-1", "Keep me not.", storeScope, "Keep")))
	require.NoError(t, rs.Put(ctx, testSegment("seg-2", "Conversation fact.", conv)))
	require.NoError(t, rs.Put(ctx, testSegment("seg-3", "Other project fact.", other)))
	require.NoError(t, rs.SaveDocument(ctx, domain.SourceDocument{ID: "doc-1", Name: "notes.txt", Scope: storeScope}))

	require.NoError(t, rs.DeleteScope(ctx, storeScope))

	count, err := rs.Count(ctx, storeScope)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = rs.Count(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = rs.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRelationshipStoreDocuments(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	rs := store.RelationshipStore()

	doc := domain.SourceDocument{
		ID:           "doc-1",
		Name:         "notes.txt",
		Scope:        storeScope,
		SegmentCount: 4,
		CreatedAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, rs.SaveDocument(ctx, doc))

	// Upsert adjusts the count without duplicating the row.
	doc.SegmentCount = 5
	require.NoError(t, rs.SaveDocument(ctx, doc))

	got, err := rs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", got.Name)
	assert.Equal(t, 5, got.SegmentCount)

	docs, err := rs.ListDocuments(ctx, storeScope)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-1", docs[0].ID)
}

func TestRelationshipStoreRejectsInvalidScope(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	rs := store.RelationshipStore()

	err := rs.Put(ctx, testSegment("seg-1", "No scope.", domain.Scope{}))
	assert.ErrorIs(t, err, domain.ErrScopeMismatch)

	_, err = rs.Find(ctx, domain.Scope{UserID: "u1"}, []string{"x"})
	assert.ErrorIs(t, err, domain.ErrScopeMismatch)
}

func TestHistoryStoreRecordAndList(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	hs := store.HistoryStore()

	rec := domain.QueryRecord{
		ID:         "q-1",
		Query:      "Is Raju still at DRC?",
		SegmentIDs: []string{"seg-1", "seg-2"},
		Answer:     "No, he left in March.",
		Scope:      storeScope,
		CreatedAt:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, hs.Record(ctx, rec))
	require.NoError(t, hs.Record(ctx, domain.QueryRecord{
		ID:        "q-2",
		Query:     "Who is my best friend?",
		Scope:     storeScope,
		CreatedAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}))

	records, err := hs.List(ctx, storeScope, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "q-2", records[0].ID)
	assert.Equal(t, "q-1", records[1].ID)
	assert.Equal(t, []string{"seg-1", "seg-2"}, records[1].SegmentIDs)
	assert.Equal(t, "No, he left in March.", records[1].Answer)
}

func TestHistoryStoreScopedClear(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	hs := store.HistoryStore()

	conv := domain.Scope{UserID: "u1", ProjectID: "p1", ConversationID: "c"}
	require.NoError(t, hs.Record(ctx, domain.QueryRecord{ID: "q-1", Query: "a", Scope: storeScope}))
	require.NoError(t, hs.Record(ctx, domain.QueryRecord{ID: "q-2", Query: "b", Scope: conv}))

	// Clearing the conversation leaves the project-wide record.
	require.NoError(t, hs.Clear(ctx, conv))
	records, err := hs.List(ctx, storeScope, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "q-1", records[0].ID)

	require.NoError(t, hs.Clear(ctx, storeScope))
	records, err = hs.List(ctx, storeScope, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func segmentIDs(segments []domain.Segment) []string {
	ids := make([]string, len(segments))
	for i := range segments {
		ids[i] = segments[i].ID
	}
	return ids
}
