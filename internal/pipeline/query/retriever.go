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
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"rag-qa/internal/pipeline/common"
	"rag-qa/internal/pipeline/ingest"
	"rag-qa/internal/storage/ragstore"
	"rag-qa/pkg/log"
	"rag-qa/pkg/metrics"
)

const previewChars = 200

// SearchOptions 检索参数；零值字段回落到配置默认
type SearchOptions struct {
	MaxResults        int
	Threshold         *float64
	FilterDocumentIDs []string
}

// Retriever 检索器：查询向量化 → 相似度检索 → 重排 → token 预算内装配上下文
type Retriever struct {
	name       string
	store      ragstore.Store
	batcher    *ingest.Batcher
	threshold  float64
	maxResults int
	chunkSize  int
	logger     *log.Logger
}

// NewRetriever 创建检索器
func NewRetriever(store ragstore.Store, batcher *ingest.Batcher, threshold float64, maxResults, chunkSize int, logger *log.Logger) *Retriever {
	if threshold <= 0 {
		threshold = 0.2
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Retriever{
		name:       "retriever",
		store:      store,
		batcher:    batcher,
		threshold:  threshold,
		maxResults: maxResults,
		chunkSize:  chunkSize,
		logger:     logger,
	}
}

// Name 返回组件名称
func (r *Retriever) Name() string {
	return r.name
}

// Search 相似度检索；空结果不是错误
func (r *Retriever) Search(ctx context.Context, query string, opts SearchOptions) (*common.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, common.NewPipelineError(r.name, "查询为空", common.ErrInvalidInput)
	}

	threshold := r.threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = r.maxResults
	}

	began := time.Now()
	queryVec, err := r.batcher.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}

	chunks, err := r.store.SearchSimilar(ctx, queryVec, threshold, maxResults, opts.FilterDocumentIDs)
	if err != nil {
		return nil, common.NewPipelineError(r.name, "相似度检索failed", err)
	}
	elapsed := time.Since(began)

	metrics.QueryDuration.WithLabelValues("search").Observe(elapsed.Seconds())
	metrics.RetrievedChunks.Observe(float64(len(chunks)))

	avg := 0.0
	for _, c := range chunks {
		avg += c.Similarity
	}
	if len(chunks) > 0 {
		avg /= float64(len(chunks))
	}

	return &common.RetrievalResult{
		Chunks:         chunks,
		QueryEmbedding: queryVec,
		SearchTimeMS:   elapsed.Milliseconds(),
		TotalResults:   len(chunks),
		AvgSimilarity:  avg,
	}, nil
}

// PrepareContext 按相似度降序贪心装配上下文；预算默认 5 倍单切片 token 上限。
// 只要有切片，至少包含一个，即使它单独超出预算。
func (r *Retriever) PrepareContext(chunks []common.ScoredChunk, maxTokens int) *common.ContextResult {
	if maxTokens <= 0 {
		maxTokens = 5 * r.chunkSize
	}

	ordered := make([]common.ScoredChunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Similarity > ordered[j].Similarity
	})

	var blocks []string
	var sources []common.Source
	totalTokens := 0
	for _, c := range ordered {
		if len(sources) > 0 && totalTokens+c.TokenCount > maxTokens {
			break
		}
		blocks = append(blocks, fmt.Sprintf("[Source: %s, Chunk %d]\n%s\n", c.Filename, c.ChunkIndex+1, c.Content))
		sources = append(sources, common.Source{
			DocumentID:     c.DocumentID,
			Filename:       c.Filename,
			ChunkIndex:     c.ChunkIndex,
			Similarity:     c.Similarity,
			ContentPreview: preview(c.Content),
			TokenCount:     c.TokenCount,
		})
		totalTokens += c.TokenCount
	}

	return &common.ContextResult{
		Context:     strings.Join(blocks, "\n"),
		Sources:     sources,
		TotalChunks: len(sources),
		TotalTokens: totalTokens,
		Truncated:   len(sources) < len(chunks),
	}
}

// RankResults 基于内容长度与 token 密度微调相似度后重排。
// 重排是尽力而为：任何内部异常都返回原始顺序而不是失败。
func (r *Retriever) RankResults(chunks []common.ScoredChunk, query string, boostRecent bool) (ranked []common.ScoredChunk) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("重排failed，保留原始顺序", "panic", p)
			ranked = chunks
		}
	}()

	if len(chunks) == 0 {
		return []common.ScoredChunk{}
	}

	type scored struct {
		chunk common.ScoredChunk
		score float64
	}
	adjusted := make([]scored, len(chunks))
	for i, c := range chunks {
		score := c.Similarity
		length := utf8.RuneCountInString(c.Content)
		if length > 500 {
			score += 0.05
		} else if length < 100 {
			score -= 0.05
		}
		if float64(c.TokenCount) > 0.8*float64(r.chunkSize) {
			score += 0.03
		}
		// boostRecent 是声明的扩展点，当前无效果
		_ = boostRecent
		adjusted[i] = scored{chunk: c, score: score}
	}

	sort.SliceStable(adjusted, func(i, j int) bool {
		return adjusted[i].score > adjusted[j].score
	})

	ranked = make([]common.ScoredChunk, len(adjusted))
	for i, s := range adjusted {
		ranked[i] = s.chunk
	}
	return ranked
}

// PreparedQuery 检索 + 上下文装配的合并结果
type PreparedQuery struct {
	Query     string                  `json:"query"`
	Retrieval *common.RetrievalResult `json:"retrieval"`
	Context   *common.ContextResult   `json:"context"`
}

// SearchAndPrepare 组合 Search、RankResults 与 PrepareContext
func (r *Retriever) SearchAndPrepare(ctx context.Context, query string, opts SearchOptions, maxContextTokens int) (*PreparedQuery, error) {
	retrieval, err := r.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	ranked := r.RankResults(retrieval.Chunks, query, false)
	return &PreparedQuery{
		Query:     query,
		Retrieval: retrieval,
		Context:   r.PrepareContext(ranked, maxContextTokens),
	}, nil
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewChars {
		return content
	}
	return string(runes[:previewChars]) + "..."
}
