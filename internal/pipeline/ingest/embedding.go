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

package ingest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"rag-qa/internal/model/embedding"
	"rag-qa/internal/pipeline/common"
	"rag-qa/pkg/metrics"
)

// Batcher 向量化批处理器：按 Provider 的批量上限顺序分批，批间限速。
// 任一批失败则整体失败，已成功批次的结果丢弃，不做部分成功。
type Batcher struct {
	name      string
	provider  embedding.Provider
	batchSize int
	limiter   *rate.Limiter
}

// NewBatcher 创建批处理器；batchSize <= 0 时使用 100
func NewBatcher(provider embedding.Provider, batchSize int) *Batcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Batcher{
		name:      "embedding",
		provider:  provider,
		batchSize: batchSize,
		// 批间约 100ms 的协作式停顿，不是重试
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
}

// Name 返回组件名称
func (b *Batcher) Name() string {
	return b.name
}

// EmbedBatch 向量化一组文本；空输入直接返回空结果，不调用 Provider
func (b *Batcher) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	if b.provider == nil {
		return nil, common.NewPipelineError(b.name, "embedder 未初始化", common.ErrEmbeddingProvider)
	}

	vectors := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += b.batchSize {
		if start > 0 {
			if err := b.limiter.Wait(ctx); err != nil {
				return nil, common.NewPipelineError(b.name, "批间等待中断", err)
			}
		}

		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		began := time.Now()
		batch, err := b.provider.Embed(ctx, texts[start:end])
		metrics.EmbeddingBatchDuration.Observe(time.Since(began).Seconds())
		if err != nil {
			return nil, common.NewPipelineError(b.name,
				fmt.Sprintf("批次 %d 向量化failed", start/b.batchSize),
				fmt.Errorf("%w: %v", common.ErrEmbeddingProvider, err))
		}
		if len(batch) != end-start {
			return nil, common.NewPipelineError(b.name, "返回向量数与输入不一致",
				fmt.Errorf("%w: got %d, want %d", common.ErrEmbeddingProvider, len(batch), end-start))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedOne 向量化单条文本
func (b *Batcher) EmbedOne(ctx context.Context, text string) ([]float64, error) {
	vecs, err := b.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Dimension 返回 Provider 的向量维度
func (b *Batcher) Dimension() int {
	if b.provider == nil {
		return 0
	}
	return b.provider.Dimension()
}
