package llm

import (
	"context"
	"fmt"

	"rag-qa/pkg/config"
)

// Client LLM 客户端接口
type Client interface {
	// Chat 聊天补全
	Chat(ctx context.Context, messages []Message, options GenerateOptions) (string, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	Stop        []string `json:"stop,omitempty"`
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// NewClient 根据配置创建 LLM 客户端；baseURL 用于 OpenAI 兼容端点，空则用默认或环境变量
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(cfg.Model, cfg.APIKey, cfg.BaseURL), nil
	case "claude":
		return NewClaudeClient(cfg.Model, cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("不支持的 LLM 提供商: %s", cfg.Provider)
	}
}
