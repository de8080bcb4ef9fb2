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
	"os"
	"path/filepath"
	"time"

	"rag-qa/internal/pipeline/common"
	"rag-qa/internal/storage/ragstore"
	"rag-qa/pkg/log"
	"rag-qa/pkg/metrics"
)

// Orchestrator 入库编排器：extract → chunk → embed → persist，
// 驱动文档状态机 uploaded → processing → completed/error。
// 向调用方返回结果记录而不抛出错误，这是对外的稳定契约。
type Orchestrator struct {
	name        string
	store       ragstore.Store
	extractor   *Extractor
	chunker     *Chunker
	batcher     *Batcher
	maxFileSize int64
	logger      *log.Logger
}

// NewOrchestrator 创建入库编排器
func NewOrchestrator(store ragstore.Store, extractor *Extractor, chunker *Chunker, batcher *Batcher, maxFileSize int64, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Discard()
	}
	return &Orchestrator{
		name:        "orchestrator",
		store:       store,
		extractor:   extractor,
		chunker:     chunker,
		batcher:     batcher,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// Name 返回组件名称
func (o *Orchestrator) Name() string {
	return o.name
}

// IngestBytes 入库一份文档；失败路径尽力把文档状态置为 error 并附原因
func (o *Orchestrator) IngestBytes(ctx context.Context, data []byte, filename string) common.IngestResult {
	began := time.Now()
	fileType := FileType(filename)
	result := o.ingest(ctx, data, filename)

	metrics.IngestDuration.WithLabelValues(fileType).Observe(time.Since(began).Seconds())
	if result.Success {
		metrics.IngestTotal.WithLabelValues(string(common.StatusCompleted)).Inc()
		o.logger.Info("文档入库完成",
			"filename", filename,
			"document_id", result.DocumentID,
			"chunks", result.ChunksCreated,
			"tokens", result.TotalTokens,
		)
	} else {
		metrics.IngestTotal.WithLabelValues(string(common.StatusError)).Inc()
		o.logger.Error("文档入库failed", "filename", filename, "error", result.Error)
	}
	return result
}

func (o *Orchestrator) ingest(ctx context.Context, data []byte, filename string) common.IngestResult {
	fail := func(err error) common.IngestResult {
		return common.IngestResult{Success: false, Filename: filename, Error: err.Error()}
	}

	// 大小校验在任何昂贵操作之前
	if o.maxFileSize > 0 && int64(len(data)) > o.maxFileSize {
		return fail(common.NewPipelineError(o.name, "文件校验failed",
			fmt.Errorf("%w: %d bytes > %d bytes", common.ErrFileTooLarge, len(data), o.maxFileSize)))
	}

	content, metadata, err := o.extractor.Extract(data, filename)
	if err != nil {
		return fail(err)
	}
	if warning, ok := metadata["warning"].(string); ok {
		o.logger.Warn("提取产生警告", "filename", filename, "warning", warning)
	}

	docID, err := o.store.InsertDocument(ctx, filename, FileType(filename), content, metadata, int64(len(data)))
	if err != nil {
		return fail(common.NewPipelineError(o.name, "插入文档failed", err))
	}

	failDoc := func(err error) common.IngestResult {
		o.markError(ctx, docID, err)
		r := fail(err)
		r.DocumentID = docID
		return r
	}

	if err := o.store.UpdateStatus(ctx, docID, common.StatusProcessing, ""); err != nil {
		return failDoc(common.NewPipelineError(o.name, "状态更新failed", err))
	}

	chunks, err := o.chunker.Chunk(content, metadata)
	if err != nil {
		return failDoc(common.NewPipelineError(o.name, "切片failed", err))
	}
	if len(chunks) == 0 {
		return failDoc(common.NewPipelineError(o.name, "切片failed", common.ErrEmptyContent))
	}

	texts := make([]string, len(chunks))
	totalTokens := 0
	for i, c := range chunks {
		texts[i] = c.Content
		totalTokens += c.TokenCount
	}

	// 一次批处理调用生成全部向量，失败不保留部分结果
	vectors, err := o.batcher.EmbedBatch(ctx, texts)
	if err != nil {
		return failDoc(err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	metrics.EmbeddingTokensTotal.Add(float64(totalTokens))

	if _, err := o.store.InsertChunks(ctx, docID, chunks); err != nil {
		return failDoc(common.NewPipelineError(o.name, "持久化切片failed", err))
	}

	if err := o.store.UpdateStatus(ctx, docID, common.StatusCompleted, ""); err != nil {
		return failDoc(common.NewPipelineError(o.name, "状态更新failed", err))
	}

	metrics.ChunksCreatedTotal.Add(float64(len(chunks)))
	return common.IngestResult{
		Success:       true,
		DocumentID:    docID,
		Filename:      filename,
		ChunksCreated: len(chunks),
		TotalTokens:   totalTokens,
	}
}

// markError 尽力把文档置为 error；更新失败只记录日志，不掩盖原始错误
func (o *Orchestrator) markError(ctx context.Context, docID string, cause error) {
	if err := o.store.UpdateStatus(ctx, docID, common.StatusError, cause.Error()); err != nil {
		o.logger.Error("记录error状态failed", "document_id", docID, "error", err)
	}
}

// IngestFiles 批量入库：顺序处理，单个文件失败不中断整批
func (o *Orchestrator) IngestFiles(ctx context.Context, paths []string) []common.IngestResult {
	results := make([]common.IngestResult, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			results = append(results, common.IngestResult{
				Success:  false,
				Filename: filepath.Base(path),
				Error:    fmt.Sprintf("读取文件failed: %v", err),
			})
			continue
		}
		results = append(results, o.IngestBytes(ctx, data, filepath.Base(path)))
	}
	return results
}

// Health 检查下游存储和 embedding provider 是否可用
func (o *Orchestrator) Health(ctx context.Context) bool {
	if o.batcher == nil || o.batcher.Dimension() <= 0 {
		return false
	}
	return o.store.HealthCheck(ctx)
}
