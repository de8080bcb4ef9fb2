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

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ClaudeClient Claude Messages API 客户端
type ClaudeClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

// NewClaudeClient 创建 Claude 客户端
func NewClaudeClient(model, apiKey string) *ClaudeClient {
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}

	client := resty.New()
	client.SetTimeout(60 * time.Second)

	return &ClaudeClient{
		provider: "claude",
		model:    model,
		apiKey:   apiKey,
		baseURL:  "https://api.anthropic.com/v1",
		client:   client,
	}
}

// Chat 聊天补全；system 角色消息提升为 Messages API 的 system 字段
func (c *ClaudeClient) Chat(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	var system string
	claudeMessages := make([]map[string]string, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			system = msg.Content
			continue
		}
		claudeMessages = append(claudeMessages, map[string]string{
			"role":    msg.Role,
			"content": msg.Content,
		})
	}

	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	request := map[string]interface{}{
		"model":       c.model,
		"messages":    claudeMessages,
		"temperature": options.Temperature,
		"max_tokens":  maxTokens,
	}
	if system != "" {
		request["system"] = system
	}
	if len(options.Stop) > 0 {
		request["stop_sequences"] = options.Stop
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetBody(request).
		Post(c.baseURL + "/messages")

	if err != nil {
		return "", fmt.Errorf("调用 Claude API 失败: %w", err)
	}

	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("Claude API 返回错误: %s", response.String())
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}

	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("解析 Claude 响应失败: %w", err)
	}

	if len(result.Content) == 0 {
		return "", fmt.Errorf("Claude API 没有返回结果")
	}

	return result.Content[0].Text, nil
}

// Model 返回模型名称
func (c *ClaudeClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *ClaudeClient) Provider() string {
	return c.provider
}
