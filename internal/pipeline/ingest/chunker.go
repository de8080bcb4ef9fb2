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

package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"rag-qa/internal/pipeline/common"
)

// Chunker token 感知切片器：滑动窗口 + 重叠 + 干净断句启发式。
// 编码与下游模型一致，token 计数等于模型实际看到的数量。
type Chunker struct {
	name         string
	chunkSize    int
	chunkOverlap int
	enc          *tiktoken.Tiktoken
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	controlChars  = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
)

// NewChunker 创建切片器；tokenizerModel 为空时使用 gpt-4（cl100k_base 编码）
func NewChunker(chunkSize, chunkOverlap int, tokenizerModel string) (*Chunker, error) {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if tokenizerModel == "" {
		tokenizerModel = "gpt-4"
	}

	enc, err := tiktoken.EncodingForModel(tokenizerModel)
	if err != nil {
		return nil, fmt.Errorf("加载 tokenizer failed: %w", err)
	}
	return &Chunker{
		name:         "chunker",
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		enc:          enc,
	}, nil
}

// Name 返回组件名称
func (c *Chunker) Name() string {
	return c.name
}

// CountTokens 统计文本 token 数
func (c *Chunker) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// CleanText 预处理：归一化换行、去除控制字符、空白折叠为单个空格、去首尾空白
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = controlChars.ReplaceAllString(text, "")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Chunk 切片：空白文本返回零切片，由调用方按 EmptyContent 处理
func (c *Chunker) Chunk(text string, metadata map[string]interface{}) ([]common.Chunk, error) {
	cleaned := CleanText(text)
	if cleaned == "" {
		return nil, nil
	}

	tokens := c.enc.Encode(cleaned, nil, nil)
	total := len(tokens)

	var contents []string
	if total <= c.chunkSize {
		contents = append(contents, cleaned)
	} else {
		start := 0
		for start < total {
			end := start + c.chunkSize
			if end > total {
				end = total
			}

			window := c.enc.Decode(tokens[start:end])
			content := window
			if end < total {
				content = cleanBreak(window)
			}
			content = strings.TrimSpace(content)
			if content != "" {
				contents = append(contents, content)
			}

			if end >= total {
				break
			}
			next := end - c.chunkOverlap
			if next <= start {
				// 重叠不小于窗口时强制前进，保证终止
				next = end
			}
			start = next
		}
	}

	chunks := make([]common.Chunk, 0, len(contents))
	for i, content := range contents {
		meta := make(map[string]interface{}, len(metadata)+2)
		for k, v := range metadata {
			meta[k] = v
		}
		meta["chunk_index"] = i
		meta["total_chunks"] = len(contents)

		chunks = append(chunks, common.Chunk{
			Index:      i,
			Content:    content,
			TokenCount: c.CountTokens(content), // 对截断后的最终文本重新计数
			Metadata:   meta,
		})
	}
	return chunks, nil
}

// cleanBreak 干净断句：优先在窗口末段 30% 内的句子终止符处截断，
// 其次在末段 50% 内最后一个空格处截断，都没有则保留原窗口
func cleanBreak(window string) string {
	n := len(window)
	if n == 0 {
		return window
	}

	tail30 := n - n*30/100
	cut := -1
	for _, term := range []string{".", "!", "?", "\n\n"} {
		if i := strings.LastIndex(window, term); i >= tail30 && i+len(term) > cut {
			cut = i + len(term)
		}
	}
	if cut > 0 {
		return window[:cut]
	}

	tail50 := n - n*50/100
	if i := strings.LastIndex(window, " "); i >= tail50 {
		return window[:i]
	}
	return window
}
