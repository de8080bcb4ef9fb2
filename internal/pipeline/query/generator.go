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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"rag-qa/internal/model/llm"
	"rag-qa/internal/pipeline/common"
	"rag-qa/internal/storage/cache"
	"rag-qa/internal/storage/ragstore"
	"rag-qa/pkg/log"
	"rag-qa/pkg/metrics"
)

const systemPrompt = `You are a helpful assistant that answers questions based on the provided context.
Answer only from the context below. If the context does not contain the answer, say so.
Cite the source filenames you used.`

// 置信度是固定启发值而非校准分数：检索到来源 0.8，无来源 0.3，内部失败 0.0
const (
	confidenceWithSources = 0.8
	confidenceNoSources   = 0.3
)

// Generator 回答生成器。对调用方永不报错：任何内部失败都降级为
// 低置信度回答，原因写入 Reasoning 字段。
type Generator struct {
	name        string
	client      llm.Client
	retriever   *Retriever
	store       ragstore.Store
	cache       cache.Store
	cacheTTL    time.Duration
	temperature float64
	maxTokens   int
	logger      *log.Logger
}

// NewGenerator 创建回答生成器；cache 可为 nil 表示不缓存
func NewGenerator(client llm.Client, retriever *Retriever, store ragstore.Store, answerCache cache.Store, cacheTTL time.Duration, temperature float64, maxTokens int, logger *log.Logger) *Generator {
	if temperature <= 0 {
		temperature = 0.1
	}
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Generator{
		name:        "generator",
		client:      client,
		retriever:   retriever,
		store:       store,
		cache:       answerCache,
		cacheTTL:    cacheTTL,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger,
	}
}

// Name 返回组件名称
func (g *Generator) Name() string {
	return g.name
}

// Answer 完整查询路径：缓存 → 检索 → 生成 → 审计。不向调用方抛错。
func (g *Generator) Answer(ctx context.Context, question string, opts SearchOptions) *common.AnswerResponse {
	began := time.Now()

	if cached, ok := g.fromCache(ctx, question); ok {
		return cached
	}

	prepared, err := g.retriever.SearchAndPrepare(ctx, question, opts, 0)
	if err != nil {
		return g.degraded(err)
	}

	resp := g.complete(ctx, question, prepared.Context.Context, prepared.Context.Sources)
	g.audit(ctx, question, prepared, resp, time.Since(began))
	if resp.Confidence > 0 {
		g.toCache(ctx, question, resp)
	}
	return resp
}

// AnswerWithSources 以外部提供的切片集回答，不做检索
func (g *Generator) AnswerWithSources(ctx context.Context, question string, chunks []common.ScoredChunk) *common.AnswerResponse {
	var blocks []string
	sources := make([]common.Source, 0, len(chunks))
	for _, c := range chunks {
		blocks = append(blocks, fmt.Sprintf("Source (%s): %s", c.Filename, c.Content))
		sources = append(sources, common.Source{
			DocumentID:     c.DocumentID,
			Filename:       c.Filename,
			ChunkIndex:     c.ChunkIndex,
			Similarity:     c.Similarity,
			ContentPreview: preview(c.Content),
			TokenCount:     c.TokenCount,
		})
	}
	return g.complete(ctx, question, strings.Join(blocks, "\n\n"), sources)
}

func (g *Generator) complete(ctx context.Context, question, contextText string, sources []common.Source) *common.AnswerResponse {
	began := time.Now()
	answer, err := g.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, question)},
	}, llm.GenerateOptions{
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	metrics.QueryDuration.WithLabelValues("generate").Observe(time.Since(began).Seconds())
	if err != nil {
		return g.degraded(common.NewPipelineError(g.name, "生成failed",
			fmt.Errorf("%w: %v", common.ErrCompletionProvider, err)))
	}

	confidence := confidenceNoSources
	reasoning := "未检索到相关来源，回答可能不可靠"
	if len(sources) > 0 {
		confidence = confidenceWithSources
		reasoning = fmt.Sprintf("基于 %d 个相关来源生成", len(sources))
	}
	return &common.AnswerResponse{
		Answer:     answer,
		Confidence: confidence,
		Reasoning:  reasoning,
		Sources:    sources,
	}
}

// degraded 降级回答：空来源、置信度 0、原因写入 Reasoning
func (g *Generator) degraded(err error) *common.AnswerResponse {
	g.logger.Error("回答生成降级", "error", err)
	return &common.AnswerResponse{
		Answer:     "抱歉，当前无法回答这个问题，请稍后重试。",
		Confidence: 0.0,
		Reasoning:  err.Error(),
		Sources:    []common.Source{},
	}
}

// audit 查询审计，失败只记日志，从不影响查询路径
func (g *Generator) audit(ctx context.Context, question string, prepared *PreparedQuery, resp *common.AnswerResponse, elapsed time.Duration) {
	seen := make(map[string]struct{})
	var docIDs []string
	for _, s := range resp.Sources {
		if _, ok := seen[s.DocumentID]; ok {
			continue
		}
		seen[s.DocumentID] = struct{}{}
		docIDs = append(docIDs, s.DocumentID)
	}

	entry := &common.SearchQueryLog{
		QueryText:         question,
		QueryEmbedding:    prepared.Retrieval.QueryEmbedding,
		ResponseText:      resp.Answer,
		SourceDocumentIDs: docIDs,
		ResponseTimeMS:    elapsed.Milliseconds(),
	}
	if err := g.store.LogSearchQuery(ctx, entry); err != nil {
		g.logger.Warn("查询审计写入failed", "error", err)
	}
}

func (g *Generator) fromCache(ctx context.Context, question string) (*common.AnswerResponse, bool) {
	if g.cache == nil {
		return nil, false
	}
	var resp common.AnswerResponse
	if err := g.cache.Get(ctx, answerCacheKey(question), &resp); err != nil {
		if err != cache.ErrCacheMiss {
			g.logger.Warn("读取回答缓存failed", "error", err)
		}
		return nil, false
	}
	return &resp, true
}

func (g *Generator) toCache(ctx context.Context, question string, resp *common.AnswerResponse) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Set(ctx, answerCacheKey(question), resp, g.cacheTTL); err != nil {
		g.logger.Warn("写入回答缓存failed", "error", err)
	}
}

// answerCacheKey 归一化问题文本后取 sha256，作为缓存键
func answerCacheKey(question string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(question), " "))
	sum := sha256.Sum256([]byte(normalized))
	return "answer:" + hex.EncodeToString(sum[:])
}
