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

package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"rag-qa/internal/pipeline/common"
	"rag-qa/internal/pipeline/ingest"
	"rag-qa/internal/pipeline/query"
	"rag-qa/internal/storage/ragstore"
	"rag-qa/pkg/metrics"
	"rag-qa/pkg/tracing"
)

// Handler HTTP 处理器
type Handler struct {
	orchestrator *ingest.Orchestrator
	retriever    *query.Retriever
	generator    *query.Generator
	store        ragstore.Store
}

// NewHandler 创建 HTTP 处理器
func NewHandler(orchestrator *ingest.Orchestrator, retriever *query.Retriever, generator *query.Generator, store ragstore.Store) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		retriever:    retriever,
		generator:    generator,
		store:        store,
	}
}

// UploadDocument 上传并入库文档
// POST /api/documents/upload（multipart 字段 file）
func (h *Handler) UploadDocument(c context.Context, ctx *app.RequestContext) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "file is required",
		})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "cannot open uploaded file",
		})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		hlog.CtxErrorf(c, "read uploaded file %s failed: %v", fileHeader.Filename, err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "cannot read uploaded file",
		})
		return
	}

	c, span := tracing.StartIngestSpan(c, fileHeader.Filename, int64(len(data)))
	defer span.End()

	result := h.orchestrator.IngestBytes(c, data, fileHeader.Filename)
	if !result.Success {
		ctx.JSON(consts.StatusUnprocessableEntity, result)
		return
	}
	ctx.JSON(consts.StatusCreated, result)
}

// ListDocuments 按上传时间降序列出文档
// GET /api/documents?status=&limit=
func (h *Handler) ListDocuments(c context.Context, ctx *app.RequestContext) {
	status := common.DocumentStatus(ctx.Query("status"))
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			ctx.JSON(consts.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = v
	}

	docs, err := h.store.ListDocuments(c, status, limit)
	if err != nil {
		hlog.CtxErrorf(c, "list documents failed: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "cannot list documents",
		})
		return
	}

	// 列表响应不携带全文
	type docSummary struct {
		ID           string                 `json:"id"`
		Filename     string                 `json:"filename"`
		FileType     string                 `json:"file_type"`
		FileSize     int64                  `json:"file_size"`
		Status       common.DocumentStatus  `json:"status"`
		Metadata     map[string]interface{} `json:"metadata,omitempty"`
		UploadedAt   string                 `json:"uploaded_at"`
		ProcessedAt  string                 `json:"processed_at,omitempty"`
		ErrorMessage string                 `json:"error_message,omitempty"`
	}
	summaries := make([]docSummary, 0, len(docs))
	for _, d := range docs {
		s := docSummary{
			ID:           d.ID,
			Filename:     d.Filename,
			FileType:     d.FileType,
			FileSize:     d.FileSize,
			Status:       d.Status,
			Metadata:     d.Metadata,
			UploadedAt:   d.UploadedAt.Format("2006-01-02T15:04:05Z07:00"),
			ErrorMessage: d.ErrorMessage,
		}
		if d.ProcessedAt != nil {
			s.ProcessedAt = d.ProcessedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		summaries = append(summaries, s)
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"documents": summaries,
		"total":     len(summaries),
	})
}

// GetDocument 获取单个文档
// GET /api/documents/:id
func (h *Handler) GetDocument(c context.Context, ctx *app.RequestContext) {
	id := ctx.Param("id")
	if id == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "document id is required",
		})
		return
	}

	doc, err := h.store.GetDocument(c, id)
	if errors.Is(err, common.ErrDocumentNotFound) {
		ctx.JSON(consts.StatusNotFound, map[string]string{
			"error": "document not found",
		})
		return
	}
	if err != nil {
		hlog.CtxErrorf(c, "get document %s failed: %v", id, err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "cannot get document",
		})
		return
	}
	ctx.JSON(consts.StatusOK, doc)
}

// QueryRequest 查询请求体
type QueryRequest struct {
	Question            string   `json:"question"`
	MaxResults          int      `json:"max_results,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
	DocumentIDs         []string `json:"document_ids,omitempty"`
}

// Query 问答查询；失败降级为低置信度回答，始终返回 200
// POST /api/query
func (h *Handler) Query(c context.Context, ctx *app.RequestContext) {
	var req QueryRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
		return
	}
	if req.Question == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "question is required",
		})
		return
	}

	c, span := tracing.StartQuerySpan(c, len(req.Question))
	defer span.End()

	resp := h.generator.Answer(c, req.Question, query.SearchOptions{
		MaxResults:        req.MaxResults,
		Threshold:         req.SimilarityThreshold,
		FilterDocumentIDs: req.DocumentIDs,
	})
	ctx.JSON(consts.StatusOK, resp)
}

// HealthCheck 健康检查
// GET /api/health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	storeOK := h.store.HealthCheck(c)
	pipelineOK := h.orchestrator.Health(c)
	status := "ok"
	code := consts.StatusOK
	if !storeOK || !pipelineOK {
		status = "degraded"
		code = consts.StatusServiceUnavailable
	}
	ctx.JSON(code, map[string]interface{}{
		"status":   status,
		"store":    storeOK,
		"pipeline": pipelineOK,
	})
}

// Metrics Prometheus 指标
// GET /api/metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "cannot collect metrics",
		})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
