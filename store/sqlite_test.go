package store

import (
	"context"
	"testing"
	"time"

	"neuralsearch/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 3

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:", testDims)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newDoc(t *testing.T, name string, created time.Time) *types.Document {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return &types.Document{ID: id, Filename: name, Content: "content of " + name, CreatedAt: created}
}

func TestSQLiteInsertAndGet(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	doc := newDoc(t, "a.txt", time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC))
	require.NoError(t, s.InsertDocument(ctx, doc))

	got, err := s.GetDocumentByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, "a.txt", got.Filename)
	assert.Equal(t, doc.Content, got.Content)
	assert.True(t, doc.CreatedAt.Equal(got.CreatedAt))
	assert.False(t, got.Embedded())
	assert.Nil(t, got.Embedding)
}

func TestSQLiteGetMissing(t *testing.T) {
	s := newTestSQLiteStore(t)
	_, err := s.GetDocumentByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSQLiteDuplicateInsertIsStoreError(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	doc := newDoc(t, "a.txt", time.Now())
	require.NoError(t, s.InsertDocument(ctx, doc))

	err := s.InsertDocument(ctx, doc)
	assert.True(t, types.IsStoreError(err))
}

func TestSQLiteSetEmbedding(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	doc := newDoc(t, "a.txt", time.Now())
	require.NoError(t, s.InsertDocument(ctx, doc))

	vec := []float32{0.1, -0.2, 0.3}
	require.NoError(t, s.SetEmbedding(ctx, doc.ID, vec))
	// overwriting with the same vector is allowed
	require.NoError(t, s.SetEmbedding(ctx, doc.ID, vec))

	got, err := s.GetDocumentByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, vec, got.Embedding)

	assert.Error(t, s.SetEmbedding(ctx, doc.ID, []float32{1, 2}), "wrong dimension must be rejected")
	got, err = s.GetDocumentByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, vec, got.Embedding)

	assert.ErrorIs(t, s.SetEmbedding(ctx, uuid.New(), vec), types.ErrNotFound)
}

func TestSQLiteListDocumentsOrdered(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	second := newDoc(t, "second.txt", base.Add(time.Second))
	first := newDoc(t, "first.txt", base)
	require.NoError(t, s.InsertDocument(ctx, second))
	require.NoError(t, s.InsertDocument(ctx, first))

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "first.txt", docs[0].Filename)
	assert.Equal(t, "second.txt", docs[1].Filename)
}

func TestSQLiteListDocumentsEmpty(t *testing.T) {
	s := newTestSQLiteStore(t)
	docs, err := s.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestSQLiteFindNearest(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	vectors := map[string][]float32{
		"origin.txt": {0, 0, 0},
		"near.txt":   {1, 0, 0},
		"tie.txt":    {0, 1, 0},
		"far.txt":    {5, 5, 5},
	}
	order := []string{"origin.txt", "near.txt", "tie.txt", "far.txt", "pending.txt"}
	ids := map[string]uuid.UUID{}
	for i, name := range order {
		doc := newDoc(t, name, base.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, s.InsertDocument(ctx, doc))
		ids[name] = doc.ID
		if vec, ok := vectors[name]; ok {
			require.NoError(t, s.SetEmbedding(ctx, doc.ID, vec))
		}
	}

	got, err := s.FindNearest(ctx, []float32{0.1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, got, 4, "pending documents are not searchable")
	names := make([]string, len(got))
	for i, d := range got {
		names[i] = d.Filename
	}
	assert.Equal(t, []string{"origin.txt", "near.txt", "tie.txt", "far.txt"}, names)

	// near.txt and tie.txt are equidistant from the origin; insertion order wins
	got, err = s.FindNearest(ctx, []float32{0, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "origin.txt", got[0].Filename)
	assert.Equal(t, "near.txt", got[1].Filename)
	assert.Equal(t, "tie.txt", got[2].Filename)

	got, err = s.FindNearest(ctx, []float32{0, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.FindNearest(ctx, nil, 3)
	assert.Error(t, err)
}

func TestSQLiteListPending(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	done := newDoc(t, "done.txt", base)
	waiting := newDoc(t, "waiting.txt", base.Add(time.Second))
	require.NoError(t, s.InsertDocument(ctx, done))
	require.NoError(t, s.InsertDocument(ctx, waiting))
	require.NoError(t, s.SetEmbedding(ctx, done.ID, []float32{1, 1, 1}))

	ids, err := s.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{waiting.ID}, ids)
}

func TestVectorCodecRoundTrip(t *testing.T) {
	vec := []float32{0, -1.5, 3.25, 1e-7}
	got, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
