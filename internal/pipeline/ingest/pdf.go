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
	"bytes"
	"fmt"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// extractPDF 按页提取 PDF 正文；单页失败跳过并记录，加密或全空产生 warning 而非错误
func (e *Extractor) extractPDF(data []byte) (string, map[string]interface{}, error) {
	metadata := map[string]interface{}{}
	if len(data) == 0 {
		metadata["page_count"] = 0
		metadata["warning"] = "PDF 无可提取文本"
		return "", metadata, nil
	}

	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("打开 PDF failed: %w", err)
	}

	encrypted, err := reader.IsEncrypted()
	if err != nil {
		return "", nil, fmt.Errorf("检查 PDF 加密failed: %w", err)
	}
	if encrypted {
		ok, err := reader.Decrypt([]byte(""))
		if err != nil || !ok {
			metadata["page_count"] = 0
			metadata["warning"] = "PDF 已加密，无法提取文本"
			return "", metadata, nil
		}
		metadata["decrypted"] = true
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", nil, fmt.Errorf("获取页数failed: %w", err)
	}
	metadata["page_count"] = numPages

	var buf strings.Builder
	pageLengths := make([]int, 0, numPages)
	skipped := 0
	for i := 1; i <= numPages; i++ {
		text, err := extractPage(reader, i)
		if err != nil {
			e.logger.Warn("跳过无法提取的页面", "page", i, "error", err)
			pageLengths = append(pageLengths, 0)
			skipped++
			continue
		}
		pageLengths = append(pageLengths, len(text))
		if text != "" {
			if buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
			buf.WriteString(text)
		}
	}

	metadata["page_lengths"] = pageLengths
	if skipped > 0 {
		metadata["pages_skipped"] = skipped
	}

	content := strings.TrimSpace(buf.String())
	if content == "" {
		metadata["warning"] = "PDF 无可提取文本"
	}
	return content, metadata, nil
}

func extractPage(reader *model.PdfReader, pageNum int) (string, error) {
	page, err := reader.GetPage(pageNum)
	if err != nil {
		return "", fmt.Errorf("获取第 %d 页failed: %w", pageNum, err)
	}
	ex, err := extractor.New(page)
	if err != nil {
		return "", fmt.Errorf("创建第 %d 页提取器failed: %w", pageNum, err)
	}
	text, err := ex.ExtractText()
	if err != nil {
		return "", fmt.Errorf("提取第 %d 页文本failed: %w", pageNum, err)
	}
	return text, nil
}
