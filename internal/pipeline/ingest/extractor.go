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
	"path/filepath"
	"strings"
	"unicode/utf8"

	"rag-qa/internal/pipeline/common"
	"rag-qa/pkg/log"
)

// Extractor 文本提取器，按扩展名分发 PDF/TXT
type Extractor struct {
	name    string
	allowed map[string]struct{}
	logger  *log.Logger
}

// NewExtractor 创建文本提取器；allowedTypes 为空时使用默认 {pdf, txt}
func NewExtractor(allowedTypes []string, logger *log.Logger) *Extractor {
	if len(allowedTypes) == 0 {
		allowedTypes = []string{common.FileTypePDF, common.FileTypeTXT}
	}
	if logger == nil {
		logger = log.Discard()
	}

	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(t)] = struct{}{}
	}
	return &Extractor{
		name:    "extractor",
		allowed: allowed,
		logger:  logger,
	}
}

// Name 返回组件名称
func (e *Extractor) Name() string {
	return e.name
}

// FileType 从文件名推导小写扩展名（不含点）
func FileType(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// Extract 提取正文文本；metadata 总是包含 word_count 与 char_count
func (e *Extractor) Extract(data []byte, filename string) (string, map[string]interface{}, error) {
	fileType := FileType(filename)
	if _, ok := e.allowed[fileType]; !ok {
		return "", nil, common.NewPipelineError(e.name, "extract failed",
			fmt.Errorf("%w: %s", common.ErrUnsupportedFileType, fileType))
	}

	var content string
	var metadata map[string]interface{}
	var err error
	switch fileType {
	case common.FileTypePDF:
		content, metadata, err = e.extractPDF(data)
	case common.FileTypeTXT:
		content, metadata = extractText(data)
	default:
		// allowed 集合外的类型已在入口拦截
		return "", nil, common.NewPipelineError(e.name, "extract failed",
			fmt.Errorf("%w: %s", common.ErrUnsupportedFileType, fileType))
	}
	if err != nil {
		return "", nil, common.NewPipelineError(e.name, "extract failed", err)
	}

	metadata["file_type"] = fileType
	metadata["word_count"] = len(strings.Fields(content))
	metadata["char_count"] = utf8.RuneCountInString(content)
	return content, metadata, nil
}

// extractText TXT 解码：UTF-8 优先，失败回退 Latin-1，从不报错
func extractText(data []byte) (string, map[string]interface{}) {
	if utf8.Valid(data) {
		return string(data), map[string]interface{}{"encoding": "utf-8"}
	}
	return decodeLatin1(data), map[string]interface{}{"encoding": "latin-1"}
}

// decodeLatin1 每个字节映射为同值码点，任何字节序列都可解码
func decodeLatin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}
