package ragstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-qa/internal/pipeline/common"
)

func insertCompletedDoc(t *testing.T, s *MemoryStore, filename string, chunks []common.Chunk) string {
	t.Helper()
	ctx := context.Background()
	id, err := s.InsertDocument(ctx, filename, "txt", "content", nil, 42)
	require.NoError(t, err)
	_, err = s.InsertChunks(ctx, id, chunks)
	require.NoError(t, err)
	require.NoError(t, s.UpdateStatus(ctx, id, common.StatusCompleted, ""))
	return id
}

func TestMemoryStore_DocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.InsertDocument(ctx, "a.txt", "txt", "hello", map[string]interface{}{"word_count": 1}, 5)
	require.NoError(t, err)

	doc, err := s.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, common.StatusUploaded, doc.Status)
	assert.Nil(t, doc.ProcessedAt)

	require.NoError(t, s.UpdateStatus(ctx, id, common.StatusProcessing, ""))
	require.NoError(t, s.UpdateStatus(ctx, id, common.StatusCompleted, ""))

	doc, err = s.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, common.StatusCompleted, doc.Status)
	assert.NotNil(t, doc.ProcessedAt)
	assert.Empty(t, doc.ErrorMessage)
}

func TestMemoryStore_UpdateStatus_NotFound(t *testing.T) {
	s := NewMemoryStore()
	err := s.UpdateStatus(context.Background(), "missing", common.StatusCompleted, "")
	assert.ErrorIs(t, err, common.ErrDocumentNotFound)
}

func TestMemoryStore_UpdateStatus_Error(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.InsertDocument(ctx, "b.txt", "txt", "x", nil, 1)
	require.NoError(t, err)
	require.NoError(t, s.UpdateStatus(ctx, id, common.StatusError, "embedding provider down"))

	doc, err := s.GetDocument(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, common.StatusError, doc.Status)
	assert.Equal(t, "embedding provider down", doc.ErrorMessage)
}

func TestMemoryStore_SearchSimilar(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	insertCompletedDoc(t, s, "a.txt", []common.Chunk{
		{Index: 0, Content: "exact", TokenCount: 3, Embedding: []float64{1, 0, 0}},
		{Index: 1, Content: "orthogonal", TokenCount: 3, Embedding: []float64{0, 1, 0}},
		{Index: 2, Content: "close", TokenCount: 3, Embedding: []float64{0.9, 0.1, 0}},
	})

	results, err := s.SearchSimilar(ctx, []float64{1, 0, 0}, 0.2, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Content)
	assert.Equal(t, "close", results[1].Content)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
	assert.Equal(t, "a.txt", results[0].Filename)
}

func TestMemoryStore_SearchSimilar_NegativeClampedToZero(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	insertCompletedDoc(t, s, "a.txt", []common.Chunk{
		{Index: 0, Content: "opposite", Embedding: []float64{-1, 0, 0}},
	})

	// 阈值 0 时钳制后的负相似度仍可命中，且值为 0
	results, err := s.SearchSimilar(ctx, []float64{1, 0, 0}, 0, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Similarity)
}

func TestMemoryStore_SearchSimilar_FilterAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	idA := insertCompletedDoc(t, s, "a.txt", []common.Chunk{
		{Index: 0, Content: "a0", Embedding: []float64{1, 0}},
		{Index: 1, Content: "a1", Embedding: []float64{0.9, 0.1}},
	})
	insertCompletedDoc(t, s, "b.txt", []common.Chunk{
		{Index: 0, Content: "b0", Embedding: []float64{1, 0}},
	})

	results, err := s.SearchSimilar(ctx, []float64{1, 0}, 0.2, 1, []string{idA})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, idA, results[0].DocumentID)
}

func TestMemoryStore_SearchSimilar_SkipsIncompleteDocs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.InsertDocument(ctx, "pending.txt", "txt", "x", nil, 1)
	require.NoError(t, err)
	_, err = s.InsertChunks(ctx, id, []common.Chunk{{Index: 0, Content: "c", Embedding: []float64{1, 0}}})
	require.NoError(t, err)

	results, err := s.SearchSimilar(ctx, []float64{1, 0}, 0, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStore_ListDocuments(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	insertCompletedDoc(t, s, "first.txt", nil)
	id2, err := s.InsertDocument(ctx, "second.txt", "txt", "x", nil, 1)
	require.NoError(t, err)

	all, err := s.ListDocuments(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	uploaded, err := s.ListDocuments(ctx, common.StatusUploaded, 0)
	require.NoError(t, err)
	require.Len(t, uploaded, 1)
	assert.Equal(t, id2, uploaded[0].ID)
}

func TestMemoryStore_LogSearchQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.LogSearchQuery(ctx, &common.SearchQueryLog{
		QueryText:         "what is redis",
		ResponseText:      "redis is a cache",
		SourceDocumentIDs: []string{"doc-1"},
		ResponseTimeMS:    12,
	}))

	logs := s.SearchQueryLogs()
	require.Len(t, logs, 1)
	assert.NotEmpty(t, logs[0].ID)
	assert.False(t, logs[0].CreatedAt.IsZero())
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{-1, 0}))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1}, []float64{1, 2}))
}

func TestEncodeVector(t *testing.T) {
	assert.Equal(t, "[0.5,-1,2]", encodeVector([]float64{0.5, -1, 2}))
	assert.Equal(t, "[]", encodeVector(nil))
}
