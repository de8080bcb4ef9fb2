package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		IngestDuration, IngestTotal, ChunksCreatedTotal,
		EmbeddingBatchDuration, EmbeddingTokensTotal,
		QueryDuration, RetrievedChunks,
	)
}

// IngestDuration 文档入库耗时（秒）
var IngestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ragqa_ingest_duration_seconds",
		Help:    "文档入库耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"file_type"},
)

// IngestTotal 入库总数（按结果）
var IngestTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ragqa_ingest_total",
		Help: "入库总数（按结果）",
	},
	[]string{"status"}, // completed | error
)

// ChunksCreatedTotal 生成的切片总数
var ChunksCreatedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ragqa_chunks_created_total",
		Help: "生成的切片总数",
	},
)

// EmbeddingBatchDuration 向量化批次耗时（秒）
var EmbeddingBatchDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ragqa_embedding_batch_duration_seconds",
		Help:    "向量化批次耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
)

// EmbeddingTokensTotal 向量化 token 总数
var EmbeddingTokensTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ragqa_embedding_tokens_total",
		Help: "向量化 token 总数",
	},
)

// QueryDuration 查询耗时（秒，按阶段）
var QueryDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ragqa_query_duration_seconds",
		Help:    "查询耗时（秒，按阶段）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"stage"}, // search | generate
)

// RetrievedChunks 单次检索返回的切片数
var RetrievedChunks = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ragqa_retrieved_chunks",
		Help:    "单次检索返回的切片数",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
