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

package common

import (
	"time"
)

// DocumentStatus 文档生命周期状态
type DocumentStatus string

// 状态机：uploaded → processing → completed；processing 失败进入 error（终态）
const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusError      DocumentStatus = "error"
)

// 支持的文件类型
const (
	FileTypePDF = "pdf"
	FileTypeTXT = "txt"
)

// Document 文档结构体
type Document struct {
	ID           string                 `json:"id"`
	Filename     string                 `json:"filename"`
	FileType     string                 `json:"file_type"`
	Content      string                 `json:"content"`
	FileSize     int64                  `json:"file_size"`
	Metadata     map[string]interface{} `json:"metadata"`
	Status       DocumentStatus         `json:"status"`
	UploadedAt   time.Time              `json:"uploaded_at"`
	ProcessedAt  *time.Time             `json:"processed_at,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// Chunk 文档切片；持久化后不可变
type Chunk struct {
	ID         string                 `json:"id"`
	DocumentID string                 `json:"document_id"`
	Index      int                    `json:"chunk_index"`
	Content    string                 `json:"content"`
	TokenCount int                    `json:"token_count"`
	Embedding  []float64              `json:"embedding,omitempty"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// ScoredChunk 相似度检索返回的切片行
type ScoredChunk struct {
	Content    string                 `json:"content"`
	DocumentID string                 `json:"document_id"`
	Filename   string                 `json:"filename"`
	FileType   string                 `json:"file_type"`
	ChunkIndex int                    `json:"chunk_index"`
	Similarity float64                `json:"similarity"`
	TokenCount int                    `json:"token_count"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// RetrievalResult 检索结果（每次查询生成，不持久化）
type RetrievalResult struct {
	Chunks         []ScoredChunk `json:"chunks"`
	QueryEmbedding []float64     `json:"query_embedding"`
	SearchTimeMS   int64         `json:"search_time_ms"`
	TotalResults   int           `json:"total_results"`
	AvgSimilarity  float64       `json:"avg_similarity"`
}

// Source 回答引用的来源切片
type Source struct {
	DocumentID     string  `json:"document_id"`
	Filename       string  `json:"filename"`
	ChunkIndex     int     `json:"chunk_index"`
	Similarity     float64 `json:"similarity"`
	ContentPreview string  `json:"content_preview"`
	TokenCount     int     `json:"token_count"`
}

// ContextResult 上下文装配结果
type ContextResult struct {
	Context     string   `json:"context"`
	Sources     []Source `json:"sources"`
	TotalChunks int      `json:"total_chunks"`
	TotalTokens int      `json:"total_tokens"`
	Truncated   bool     `json:"truncated"`
}

// AnswerResponse 结构化回答
type AnswerResponse struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Sources    []Source `json:"sources"`
}

// SearchQueryLog 查询审计记录（仅追加，写失败不影响查询路径）
type SearchQueryLog struct {
	ID                string    `json:"id,omitempty"`
	QueryText         string    `json:"query_text"`
	QueryEmbedding    []float64 `json:"query_embedding"`
	ResponseText      string    `json:"response_text"`
	SourceDocumentIDs []string  `json:"source_document_ids"`
	ResponseTimeMS    int64     `json:"response_time_ms"`
	RelevanceScore    *float64  `json:"relevance_score,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
}

// IngestResult 入库结果记录；orchestrator 对调用方的稳定契约，不向外抛异常
type IngestResult struct {
	Success       bool   `json:"success"`
	DocumentID    string `json:"document_id,omitempty"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created,omitempty"`
	TotalTokens   int    `json:"total_tokens,omitempty"`
	Error         string `json:"error,omitempty"`
}
