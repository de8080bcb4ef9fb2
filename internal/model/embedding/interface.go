package embedding

import (
	"context"
	"fmt"

	"rag-qa/pkg/config"
)

// Provider 向量化接口；Embed 返回与 texts 一一对应的向量
type Provider interface {
	// Embed 对文本做向量化
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	// Model 返回模型名称
	Model() string
	// Dimension 返回向量维度
	Dimension() int
}

// NewProvider 根据配置创建向量化 Provider
func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIProvider(cfg.Model, cfg.APIKey, cfg.BaseURL, cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("不支持的向量化提供商: %s", cfg.Provider)
	}
}
