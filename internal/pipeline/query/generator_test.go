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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-qa/internal/model/llm"
	"rag-qa/internal/pipeline/common"
	"rag-qa/internal/pipeline/ingest"
	"rag-qa/internal/storage/cache"
	"rag-qa/internal/storage/ragstore"
)

// fakeClient 可编程的生成 Client
type fakeClient struct {
	reply   string
	fail    error
	prompts []string
	calls   int
}

func (f *fakeClient) Chat(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	f.calls++
	for _, m := range messages {
		if m.Role == "user" {
			f.prompts = append(f.prompts, m.Content)
		}
	}
	if f.fail != nil {
		return "", f.fail
	}
	return f.reply, nil
}
func (f *fakeClient) Model() string    { return "fake-model" }
func (f *fakeClient) Provider() string { return "fake" }

func newTestGenerator(t *testing.T, client llm.Client, store *ragstore.MemoryStore, answerCache cache.Store) *Generator {
	t.Helper()
	r := newTestRetriever(t, store, []float64{1, 0})
	return NewGenerator(client, r, store, answerCache, time.Minute, 0.1, 500, nil)
}

func TestAnswer_WithSources(t *testing.T) {
	store := ragstore.NewMemoryStore()
	seedDocument(t, store, "kb.txt", []common.Chunk{
		{Index: 0, Content: "Redis is an in-memory store.", TokenCount: 8, Embedding: []float64{1, 0}},
	})
	client := &fakeClient{reply: "Redis is an in-memory store [kb.txt]."}
	g := newTestGenerator(t, client, store, nil)

	resp := g.Answer(context.Background(), "what is redis", SearchOptions{})
	require.NotNil(t, resp)
	assert.Equal(t, client.reply, resp.Answer)
	assert.Equal(t, 0.8, resp.Confidence)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "kb.txt", resp.Sources[0].Filename)

	// 上下文进入 prompt
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "[Source: kb.txt, Chunk 1]")
	assert.Contains(t, client.prompts[0], "what is redis")
}

func TestAnswer_NoSourcesLowConfidence(t *testing.T) {
	store := ragstore.NewMemoryStore()
	client := &fakeClient{reply: "I don't know."}
	g := newTestGenerator(t, client, store, nil)

	resp := g.Answer(context.Background(), "unknown topic", SearchOptions{})
	assert.Equal(t, 0.3, resp.Confidence)
	assert.Empty(t, resp.Sources)
}

func TestAnswer_CompletionFailureDegrades(t *testing.T) {
	store := ragstore.NewMemoryStore()
	client := &fakeClient{fail: errors.New("model overloaded")}
	g := newTestGenerator(t, client, store, nil)

	resp := g.Answer(context.Background(), "q", SearchOptions{})
	require.NotNil(t, resp)
	assert.Equal(t, 0.0, resp.Confidence)
	assert.Empty(t, resp.Sources)
	assert.Contains(t, resp.Reasoning, "model overloaded")
	assert.NotEmpty(t, resp.Answer)
}

func ingestBatcherThatFails(t *testing.T) *ingest.Batcher {
	t.Helper()
	return ingest.NewBatcher(&stubProvider{vec: []float64{1}, fail: errors.New("embedder down")}, 100)
}

func TestAnswer_RetrievalFailureDegrades(t *testing.T) {
	store := ragstore.NewMemoryStore()
	batcher := ingestBatcherThatFails(t)
	r := NewRetriever(store, batcher, 0.2, 5, 1000, nil)
	g := NewGenerator(&fakeClient{reply: "x"}, r, store, nil, 0, 0.1, 500, nil)

	resp := g.Answer(context.Background(), "q", SearchOptions{})
	assert.Equal(t, 0.0, resp.Confidence)
	assert.NotEmpty(t, resp.Reasoning)
}

func TestAnswer_AuditLogged(t *testing.T) {
	store := ragstore.NewMemoryStore()
	seedDocument(t, store, "kb.txt", []common.Chunk{
		{Index: 0, Content: "fact", TokenCount: 2, Embedding: []float64{1, 0}},
	})
	g := newTestGenerator(t, &fakeClient{reply: "answer"}, store, nil)

	g.Answer(context.Background(), "q", SearchOptions{})

	logs := store.SearchQueryLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "q", logs[0].QueryText)
	assert.Equal(t, "answer", logs[0].ResponseText)
	assert.Len(t, logs[0].SourceDocumentIDs, 1)
	assert.Equal(t, []float64{1, 0}, logs[0].QueryEmbedding)
}

func TestAnswer_CacheHitSkipsPipeline(t *testing.T) {
	store := ragstore.NewMemoryStore()
	seedDocument(t, store, "kb.txt", []common.Chunk{
		{Index: 0, Content: "fact", TokenCount: 2, Embedding: []float64{1, 0}},
	})
	client := &fakeClient{reply: "cached answer"}
	g := newTestGenerator(t, client, store, cache.NewMemoryStore())

	first := g.Answer(context.Background(), "What Is Redis", SearchOptions{})
	// 归一化后命中同一键
	second := g.Answer(context.Background(), "  what is   redis ", SearchOptions{})

	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 1, client.calls)
}

func TestAnswer_DegradedNotCached(t *testing.T) {
	store := ragstore.NewMemoryStore()
	client := &fakeClient{fail: errors.New("down")}
	g := newTestGenerator(t, client, store, cache.NewMemoryStore())

	g.Answer(context.Background(), "q", SearchOptions{})
	client.fail = nil
	client.reply = "recovered"

	resp := g.Answer(context.Background(), "q", SearchOptions{})
	assert.Equal(t, "recovered", resp.Answer)
	assert.Equal(t, 2, client.calls)
}

func TestAnswerWithSources_FlatContext(t *testing.T) {
	store := ragstore.NewMemoryStore()
	client := &fakeClient{reply: "ok"}
	g := newTestGenerator(t, client, store, nil)

	resp := g.AnswerWithSources(context.Background(), "q", []common.ScoredChunk{
		{Content: "chunk body", Filename: "doc.pdf", Similarity: 0.9, TokenCount: 3},
	})
	assert.Equal(t, 0.8, resp.Confidence)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Source (doc.pdf): chunk body")
}

func TestAnswerCacheKey_Normalization(t *testing.T) {
	assert.Equal(t, answerCacheKey("What  Is Redis"), answerCacheKey("what is redis"))
	assert.NotEqual(t, answerCacheKey("a"), answerCacheKey("b"))
}
