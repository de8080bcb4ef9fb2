package ragstore

import (
	"context"

	"rag-qa/internal/pipeline/common"
)

// Store 文档/切片/审计存储接口；相似度为余弦相似度，约定域 [0,1]
type Store interface {
	// InsertDocument 插入文档记录，状态初始化为 uploaded，返回文档 ID
	InsertDocument(ctx context.Context, filename, fileType, content string, metadata map[string]interface{}, fileSize int64) (string, error)
	// InsertChunks 批量插入带向量的切片，保持 index 顺序，返回切片 ID
	InsertChunks(ctx context.Context, documentID string, chunks []common.Chunk) ([]string, error)
	// UpdateStatus 更新文档状态；errorMessage 仅在 status=error 时有意义
	UpdateStatus(ctx context.Context, documentID string, status common.DocumentStatus, errorMessage string) error
	// SearchSimilar 相似度检索，按相似度降序返回
	SearchSimilar(ctx context.Context, queryEmbedding []float64, threshold float64, matchCount int, filterDocumentIDs []string) ([]common.ScoredChunk, error)
	// GetDocument 根据 ID 获取文档
	GetDocument(ctx context.Context, id string) (*common.Document, error)
	// ListDocuments 按上传时间降序列出文档；status 为空表示不过滤
	ListDocuments(ctx context.Context, status common.DocumentStatus, limit int) ([]*common.Document, error)
	// LogSearchQuery 记录查询审计；尽力而为，调用方吞掉错误
	LogSearchQuery(ctx context.Context, entry *common.SearchQueryLog) error
	// HealthCheck 存储健康检查
	HealthCheck(ctx context.Context) bool
	// Close 关闭存储连接
	Close() error
}
