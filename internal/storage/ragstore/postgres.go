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
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rag-qa/internal/pipeline/common"
)

// PostgresStore 基于 Postgres + pgvector 的存储实现
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 创建 Postgres 存储并验证连接
func NewPostgresStore(ctx context.Context, dsn string, poolSize int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn failed: %w", err)
	}
	if poolSize > 0 {
		cfg.MaxConns = int32(poolSize)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool failed: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres failed: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, filename, fileType, content string, metadata map[string]interface{}, fileSize int64) (string, error) {
	meta, err := marshalMetadata(metadata)
	if err != nil {
		return "", err
	}

	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO documents (filename, file_type, content, metadata, file_size, status, upload_date)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, now())
		RETURNING id`,
		filename, fileType, content, meta, fileSize, string(common.StatusUploaded),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert document failed: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) InsertChunks(ctx context.Context, documentID string, chunks []common.Chunk) ([]string, error) {
	ids := make([]string, 0, len(chunks))
	batch := &pgx.Batch{}
	for i := range chunks {
		c := &chunks[i]
		meta, err := marshalMetadata(c.Metadata)
		if err != nil {
			return nil, err
		}
		batch.Queue(`
			INSERT INTO document_chunks (document_id, chunk_index, content, token_count, embedding, metadata)
			VALUES ($1, $2, $3, $4, $5::vector, $6::jsonb)
			RETURNING id`,
			documentID, c.Index, c.Content, c.TokenCount, encodeVector(c.Embedding), meta,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range chunks {
		var id string
		if err := br.QueryRow().Scan(&id); err != nil {
			return nil, fmt.Errorf("insert chunk failed: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, documentID string, status common.DocumentStatus, errorMessage string) error {
	var tag string
	var err error
	switch status {
	case common.StatusCompleted:
		tag = `UPDATE documents SET status = $2, error_message = NULL, processed_date = now() WHERE id = $1`
		_, err = s.pool.Exec(ctx, tag, documentID, string(status))
	case common.StatusError:
		tag = `UPDATE documents SET status = $2, error_message = $3 WHERE id = $1`
		_, err = s.pool.Exec(ctx, tag, documentID, string(status), errorMessage)
	default:
		tag = `UPDATE documents SET status = $2 WHERE id = $1`
		_, err = s.pool.Exec(ctx, tag, documentID, string(status))
	}
	if err != nil {
		return fmt.Errorf("update document status failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) SearchSimilar(ctx context.Context, queryEmbedding []float64, threshold float64, matchCount int, filterDocumentIDs []string) ([]common.ScoredChunk, error) {
	if len(queryEmbedding) == 0 {
		return nil, common.ErrInvalidInput
	}
	vec := encodeVector(queryEmbedding)

	var filter interface{}
	if len(filterDocumentIDs) > 0 {
		filter = filterDocumentIDs
	}

	rows, err := s.pool.Query(ctx, `
		SELECT dc.content, dc.document_id::text, d.filename, d.file_type, dc.chunk_index,
		       1 - (dc.embedding <=> $1::vector) AS similarity, dc.token_count, dc.metadata
		FROM document_chunks dc
		JOIN documents d ON d.id = dc.document_id
		WHERE d.status = 'completed'
		  AND 1 - (dc.embedding <=> $1::vector) >= $2
		  AND ($3::text[] IS NULL OR dc.document_id::text = ANY($3::text[]))
		ORDER BY dc.embedding <=> $1::vector
		LIMIT $4`,
		vec, threshold, filter, matchCount,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	var results []common.ScoredChunk
	for rows.Next() {
		var sc common.ScoredChunk
		var meta []byte
		if err := rows.Scan(&sc.Content, &sc.DocumentID, &sc.Filename, &sc.FileType,
			&sc.ChunkIndex, &sc.Similarity, &sc.TokenCount, &meta); err != nil {
			return nil, fmt.Errorf("scan search row failed: %w", err)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &sc.Metadata)
		}
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows failed: %w", err)
	}
	return results, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*common.Document, error) {
	var doc common.Document
	var meta []byte
	var errMsg *string
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, filename, file_type, content, file_size, metadata, status,
		       upload_date, processed_date, error_message
		FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Filename, &doc.FileType, &doc.Content, &doc.FileSize,
		&meta, &doc.Status, &doc.UploadedAt, &doc.ProcessedAt, &errMsg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &doc.Metadata)
	}
	if errMsg != nil {
		doc.ErrorMessage = *errMsg
	}
	return &doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, status common.DocumentStatus, limit int) ([]*common.Document, error) {
	var filter interface{}
	if status != "" {
		filter = string(status)
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, filename, file_type, file_size, metadata, status,
		       upload_date, processed_date, error_message
		FROM documents
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY upload_date DESC
		LIMIT $2`, filter, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	defer rows.Close()

	var docs []*common.Document
	for rows.Next() {
		var doc common.Document
		var meta []byte
		var errMsg *string
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.FileType, &doc.FileSize,
			&meta, &doc.Status, &doc.UploadedAt, &doc.ProcessedAt, &errMsg); err != nil {
			return nil, fmt.Errorf("scan document row failed: %w", err)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &doc.Metadata)
		}
		if errMsg != nil {
			doc.ErrorMessage = *errMsg
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows failed: %w", err)
	}
	return docs, nil
}

func (s *PostgresStore) LogSearchQuery(ctx context.Context, entry *common.SearchQueryLog) error {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	sources, err := json.Marshal(entry.SourceDocumentIDs)
	if err != nil {
		return fmt.Errorf("marshal source documents failed: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO search_queries (query_text, query_embedding, response_text, source_documents, response_time_ms, relevance_score, created_at)
		VALUES ($1, $2::vector, $3, $4::jsonb, $5, $6, $7)`,
		entry.QueryText, encodeVector(entry.QueryEmbedding), entry.ResponseText,
		string(sources), entry.ResponseTimeMS, entry.RelevanceScore, created,
	)
	if err != nil {
		return fmt.Errorf("log search query failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx) == nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// encodeVector pgvector 文本格式 [v1,v2,...]
func encodeVector(v []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(x, 'f', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

func marshalMetadata(m map[string]interface{}) (string, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata failed: %w", err)
	}
	return string(raw), nil
}
