// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-qa/internal/pipeline/common"
	"rag-qa/internal/pipeline/ingest"
	"rag-qa/internal/storage/ragstore"
)

// stubProvider 对任意文本返回固定向量
type stubProvider struct {
	vec  []float64
	fail error
}

func (s *stubProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}
func (s *stubProvider) Model() string  { return "stub" }
func (s *stubProvider) Dimension() int { return len(s.vec) }

func newTestRetriever(t *testing.T, store ragstore.Store, vec []float64) *Retriever {
	t.Helper()
	batcher := ingest.NewBatcher(&stubProvider{vec: vec}, 100)
	return NewRetriever(store, batcher, 0.2, 5, 1000, nil)
}

func seedDocument(t *testing.T, store *ragstore.MemoryStore, filename string, chunks []common.Chunk) string {
	t.Helper()
	ctx := context.Background()
	id, err := store.InsertDocument(ctx, filename, "txt", "content", nil, 10)
	require.NoError(t, err)
	_, err = store.InsertChunks(ctx, id, chunks)
	require.NoError(t, err)
	require.NoError(t, store.UpdateStatus(ctx, id, common.StatusCompleted, ""))
	return id
}

func TestSearch_EmptyQuery(t *testing.T) {
	r := newTestRetriever(t, ragstore.NewMemoryStore(), []float64{1, 0})
	_, err := r.Search(context.Background(), "   ", SearchOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestSearch_ReturnsOrderedResultsWithStats(t *testing.T) {
	store := ragstore.NewMemoryStore()
	seedDocument(t, store, "a.txt", []common.Chunk{
		{Index: 0, Content: "close", TokenCount: 5, Embedding: []float64{0.9, 0.1}},
		{Index: 1, Content: "exact", TokenCount: 5, Embedding: []float64{1, 0}},
		{Index: 2, Content: "far", TokenCount: 5, Embedding: []float64{0, 1}},
	})
	r := newTestRetriever(t, store, []float64{1, 0})

	result, err := r.Search(context.Background(), "anything", SearchOptions{})
	require.NoError(t, err)

	require.Equal(t, 2, result.TotalResults)
	assert.Equal(t, "exact", result.Chunks[0].Content)
	assert.Equal(t, "close", result.Chunks[1].Content)
	assert.Greater(t, result.AvgSimilarity, 0.0)
	assert.GreaterOrEqual(t, result.SearchTimeMS, int64(0))
	assert.Equal(t, []float64{1, 0}, result.QueryEmbedding)

	// 相似度非递增
	for i := 1; i < len(result.Chunks); i++ {
		assert.GreaterOrEqual(t, result.Chunks[i-1].Similarity, result.Chunks[i].Similarity)
	}
}

func TestSearch_HighThresholdYieldsNothing(t *testing.T) {
	store := ragstore.NewMemoryStore()
	seedDocument(t, store, "a.txt", []common.Chunk{
		{Index: 0, Content: "close", TokenCount: 5, Embedding: []float64{0.9, 0.4}},
	})
	r := newTestRetriever(t, store, []float64{1, 0})

	threshold := 0.99
	result, err := r.Search(context.Background(), "anything", SearchOptions{Threshold: &threshold})
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalResults)
	assert.Equal(t, 0.0, result.AvgSimilarity)

	prepared := r.PrepareContext(result.Chunks, 0)
	assert.Equal(t, 0, prepared.TotalChunks)
	assert.Equal(t, 0, prepared.TotalTokens)
	assert.Empty(t, prepared.Context)
	assert.False(t, prepared.Truncated)
}

func TestSearch_EmbeddingFailure(t *testing.T) {
	batcher := ingest.NewBatcher(&stubProvider{vec: []float64{1}, fail: errors.New("down")}, 100)
	r := NewRetriever(ragstore.NewMemoryStore(), batcher, 0.2, 5, 1000, nil)

	_, err := r.Search(context.Background(), "q", SearchOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrEmbeddingProvider))
}

func TestPrepareContext_FormatsBlocks(t *testing.T) {
	r := newTestRetriever(t, ragstore.NewMemoryStore(), []float64{1})
	chunks := []common.ScoredChunk{
		{Content: "second", Filename: "b.txt", ChunkIndex: 1, Similarity: 0.5, TokenCount: 10, DocumentID: "d2"},
		{Content: "first", Filename: "a.txt", ChunkIndex: 0, Similarity: 0.9, TokenCount: 10, DocumentID: "d1"},
	}

	result := r.PrepareContext(chunks, 100)
	require.Equal(t, 2, result.TotalChunks)
	assert.Equal(t, 20, result.TotalTokens)
	assert.False(t, result.Truncated)

	// 相似度降序装配
	assert.True(t, strings.Index(result.Context, "[Source: a.txt, Chunk 1]\nfirst") <
		strings.Index(result.Context, "[Source: b.txt, Chunk 2]\nsecond"))
	assert.Equal(t, "d1", result.Sources[0].DocumentID)
	assert.Equal(t, 0.9, result.Sources[0].Similarity)
}

func TestPrepareContext_BudgetStopsAccumulation(t *testing.T) {
	r := newTestRetriever(t, ragstore.NewMemoryStore(), []float64{1})
	chunks := []common.ScoredChunk{
		{Content: "a", Filename: "a.txt", Similarity: 0.9, TokenCount: 60},
		{Content: "b", Filename: "b.txt", Similarity: 0.8, TokenCount: 60},
		{Content: "c", Filename: "c.txt", Similarity: 0.7, TokenCount: 60},
	}

	result := r.PrepareContext(chunks, 130)
	assert.Equal(t, 2, result.TotalChunks)
	assert.Equal(t, 120, result.TotalTokens)
	assert.True(t, result.Truncated)
}

func TestPrepareContext_AlwaysIncludesFirstChunk(t *testing.T) {
	r := newTestRetriever(t, ragstore.NewMemoryStore(), []float64{1})
	chunks := []common.ScoredChunk{
		{Content: "oversized", Filename: "a.txt", Similarity: 0.9, TokenCount: 9000},
	}

	result := r.PrepareContext(chunks, 100)
	require.Equal(t, 1, result.TotalChunks)
	assert.Equal(t, 9000, result.TotalTokens)
	assert.False(t, result.Truncated)
}

func TestPrepareContext_PreviewTruncation(t *testing.T) {
	r := newTestRetriever(t, ragstore.NewMemoryStore(), []float64{1})
	long := strings.Repeat("x", 300)

	result := r.PrepareContext([]common.ScoredChunk{
		{Content: long, Filename: "a.txt", Similarity: 0.9, TokenCount: 10},
	}, 0)
	require.Len(t, result.Sources, 1)
	assert.Len(t, result.Sources[0].ContentPreview, 203)
	assert.True(t, strings.HasSuffix(result.Sources[0].ContentPreview, "..."))
}

func TestRankResults_Empty(t *testing.T) {
	r := newTestRetriever(t, ragstore.NewMemoryStore(), []float64{1})
	assert.Empty(t, r.RankResults(nil, "q", false))
}

func TestRankResults_ContentLengthInvertsOrder(t *testing.T) {
	r := newTestRetriever(t, ragstore.NewMemoryStore(), []float64{1})
	longChunk := common.ScoredChunk{Content: strings.Repeat("a", 600), Similarity: 0.70, TokenCount: 150}
	shortChunk := common.ScoredChunk{Content: strings.Repeat("b", 50), Similarity: 0.72, TokenCount: 12}

	ranked := r.RankResults([]common.ScoredChunk{shortChunk, longChunk}, "q", false)
	require.Len(t, ranked, 2)
	// 0.70+0.05=0.75 超过 0.72-0.05=0.67
	assert.Equal(t, longChunk.Content, ranked[0].Content)
}

func TestRankResults_TokenDensityBoost(t *testing.T) {
	r := newTestRetriever(t, ragstore.NewMemoryStore(), []float64{1})
	mid := strings.Repeat("x", 300) // 无长度调整
	dense := common.ScoredChunk{Content: mid, Similarity: 0.70, TokenCount: 900}
	sparse := common.ScoredChunk{Content: mid, Similarity: 0.71, TokenCount: 100}

	ranked := r.RankResults([]common.ScoredChunk{sparse, dense}, "q", false)
	// 0.70+0.03 > 0.71
	assert.Equal(t, 900, ranked[0].TokenCount)
}

func TestRankResults_StableOnTies(t *testing.T) {
	r := newTestRetriever(t, ragstore.NewMemoryStore(), []float64{1})
	mid := strings.Repeat("x", 300)
	a := common.ScoredChunk{Content: mid, Similarity: 0.5, TokenCount: 10, DocumentID: "a"}
	b := common.ScoredChunk{Content: mid, Similarity: 0.5, TokenCount: 10, DocumentID: "b"}

	ranked := r.RankResults([]common.ScoredChunk{a, b}, "q", false)
	assert.Equal(t, "a", ranked[0].DocumentID)
	assert.Equal(t, "b", ranked[1].DocumentID)
}

func TestSearchAndPrepare(t *testing.T) {
	store := ragstore.NewMemoryStore()
	seedDocument(t, store, "a.txt", []common.Chunk{
		{Index: 0, Content: "relevant content", TokenCount: 5, Embedding: []float64{1, 0}},
	})
	r := newTestRetriever(t, store, []float64{1, 0})

	prepared, err := r.SearchAndPrepare(context.Background(), "question", SearchOptions{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "question", prepared.Query)
	assert.Equal(t, 1, prepared.Retrieval.TotalResults)
	assert.Equal(t, 1, prepared.Context.TotalChunks)
	assert.Contains(t, prepared.Context.Context, "[Source: a.txt, Chunk 1]")
}
