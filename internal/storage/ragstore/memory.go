/*
 * Copyright 2026 fanjia1024
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ragstore

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rag-qa/internal/pipeline/common"
)

// MemoryStore 内存存储实现，用于开发和测试
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]*common.Document
	chunks   map[string][]*common.Chunk // documentID -> chunks（按 index 有序）
	queryLog []*common.SearchQueryLog
	now      func() time.Time
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]*common.Document),
		chunks: make(map[string][]*common.Chunk),
		now:    time.Now,
	}
}

func (s *MemoryStore) InsertDocument(ctx context.Context, filename, fileType, content string, metadata map[string]interface{}, fileSize int64) (string, error) {
	if filename == "" {
		return "", common.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.docs[id] = &common.Document{
		ID:         id,
		Filename:   filename,
		FileType:   fileType,
		Content:    content,
		FileSize:   fileSize,
		Metadata:   metadata,
		Status:     common.StatusUploaded,
		UploadedAt: s.now(),
	}
	return id, nil
}

func (s *MemoryStore) InsertChunks(ctx context.Context, documentID string, chunks []common.Chunk) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[documentID]; !ok {
		return nil, common.ErrDocumentNotFound
	}

	ids := make([]string, 0, len(chunks))
	stored := make([]*common.Chunk, 0, len(chunks))
	for i := range chunks {
		c := chunks[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		c.DocumentID = documentID
		stored = append(stored, &c)
		ids = append(ids, c.ID)
	}
	s.chunks[documentID] = append(s.chunks[documentID], stored...)
	return ids, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, documentID string, status common.DocumentStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[documentID]
	if !ok {
		return common.ErrDocumentNotFound
	}

	doc.Status = status
	switch status {
	case common.StatusCompleted:
		t := s.now()
		doc.ProcessedAt = &t
		doc.ErrorMessage = ""
	case common.StatusError:
		doc.ErrorMessage = errorMessage
	}
	return nil
}

func (s *MemoryStore) SearchSimilar(ctx context.Context, queryEmbedding []float64, threshold float64, matchCount int, filterDocumentIDs []string) ([]common.ScoredChunk, error) {
	if len(queryEmbedding) == 0 {
		return nil, common.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var allowed map[string]struct{}
	if len(filterDocumentIDs) > 0 {
		allowed = make(map[string]struct{}, len(filterDocumentIDs))
		for _, id := range filterDocumentIDs {
			allowed[id] = struct{}{}
		}
	}

	var results []common.ScoredChunk
	for docID, chunks := range s.chunks {
		if allowed != nil {
			if _, ok := allowed[docID]; !ok {
				continue
			}
		}
		doc := s.docs[docID]
		if doc == nil || doc.Status != common.StatusCompleted {
			continue
		}
		for _, c := range chunks {
			sim := cosineSimilarity(queryEmbedding, c.Embedding)
			if sim < threshold {
				continue
			}
			results = append(results, common.ScoredChunk{
				Content:    c.Content,
				DocumentID: docID,
				Filename:   doc.Filename,
				FileType:   doc.FileType,
				ChunkIndex: c.Index,
				Similarity: sim,
				TokenCount: c.TokenCount,
				Metadata:   c.Metadata,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if matchCount > 0 && len(results) > matchCount {
		results = results[:matchCount]
	}
	return results, nil
}

func (s *MemoryStore) GetDocument(ctx context.Context, id string) (*common.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, common.ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *MemoryStore) ListDocuments(ctx context.Context, status common.DocumentStatus, limit int) ([]*common.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []*common.Document
	for _, d := range s.docs {
		if status != "" && d.Status != status {
			continue
		}
		cp := *d
		docs = append(docs, &cp)
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (s *MemoryStore) LogSearchQuery(ctx context.Context, entry *common.SearchQueryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	s.queryLog = append(s.queryLog, &cp)
	return nil
}

// SearchQueryLogs 返回已记录的查询审计，测试用
func (s *MemoryStore) SearchQueryLogs() []*common.SearchQueryLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*common.SearchQueryLog, len(s.queryLog))
	copy(out, s.queryLog)
	return out
}

func (s *MemoryStore) HealthCheck(ctx context.Context) bool { return true }

func (s *MemoryStore) Close() error { return nil }

// cosineSimilarity 计算余弦相似度，负值钳制到 0，保持与 pgvector 检索同域 [0,1]
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	return sim
}
