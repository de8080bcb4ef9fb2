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

package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpenAIProvider OpenAI Embeddings API 客户端（兼容端点经 baseURL 指定）
type OpenAIProvider struct {
	model     string
	apiKey    string
	baseURL   string
	dimension int
	client    *resty.Client
}

// NewOpenAIProvider 创建 OpenAI Embedding 客户端；baseURL 为空时用默认或 OPENAI_BASE_URL
func NewOpenAIProvider(model, apiKey, baseURL string, dimension int) *OpenAIProvider {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dimension <= 0 {
		dimension = 1536
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
		if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New()
	client.SetTimeout(60 * time.Second)

	return &OpenAIProvider{
		model:     model,
		apiKey:    apiKey,
		baseURL:   baseURL,
		dimension: dimension,
		client:    client,
	}
}

// Model 返回模型名称
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Dimension 返回向量维度
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

// Embed 调用 embeddings API，返回与 texts 一一对应的向量
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]interface{}{
		"model": p.model,
		"input": texts,
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+p.apiKey).
		SetBody(request).
		Post(p.baseURL + "/embeddings")

	if err != nil {
		return nil, fmt.Errorf("调用 Embeddings API 失败: %w", err)
	}

	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("Embeddings API 返回错误: %s", response.String())
	}

	var result struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}

	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 Embeddings 响应失败: %w", err)
	}

	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("Embeddings 返回数量不匹配: got %d, want %d", len(result.Data), len(texts))
	}

	// API 保证按 index 排序，这里仍按 index 落位
	out := make([][]float64, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("Embeddings 返回非法 index: %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
