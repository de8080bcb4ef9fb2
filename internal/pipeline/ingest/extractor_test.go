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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-qa/internal/pipeline/common"
)

func TestFileType(t *testing.T) {
	assert.Equal(t, "pdf", FileType("report.PDF"))
	assert.Equal(t, "txt", FileType("notes.txt"))
	assert.Equal(t, "txt", FileType("dir/archive.tar.txt"))
	assert.Equal(t, "", FileType("noext"))
}

func TestExtract_UnsupportedType(t *testing.T) {
	e := NewExtractor(nil, nil)
	_, _, err := e.Extract([]byte("data"), "slides.pptx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrUnsupportedFileType))
	assert.True(t, common.IsValidationError(err))
}

func TestExtract_TXT_UTF8(t *testing.T) {
	e := NewExtractor(nil, nil)
	content, meta, err := e.Extract([]byte("hello 世界, two words more"), "a.txt")
	require.NoError(t, err)

	assert.Equal(t, "hello 世界, two words more", content)
	assert.Equal(t, "utf-8", meta["encoding"])
	assert.Equal(t, "txt", meta["file_type"])
	assert.Equal(t, 5, meta["word_count"])
	assert.Equal(t, 24, meta["char_count"])
}

func TestExtract_TXT_Latin1Fallback(t *testing.T) {
	e := NewExtractor(nil, nil)
	// 0xE9 不是合法 UTF-8，Latin-1 下是 é
	content, meta, err := e.Extract([]byte{'c', 'a', 'f', 0xE9}, "menu.txt")
	require.NoError(t, err)

	assert.Equal(t, "café", content)
	assert.Equal(t, "latin-1", meta["encoding"])
}

func TestExtract_TXT_NeverFailsOnDecode(t *testing.T) {
	e := NewExtractor(nil, nil)
	_, _, err := e.Extract([]byte{0xFF, 0xFE, 0x00, 0x80}, "raw.txt")
	assert.NoError(t, err)
}

func TestExtract_EmptyPDF_WarnsNotFails(t *testing.T) {
	e := NewExtractor(nil, nil)
	content, meta, err := e.Extract(nil, "empty.pdf")
	require.NoError(t, err)

	assert.Equal(t, "", content)
	assert.NotEmpty(t, meta["warning"])
	assert.Equal(t, 0, meta["word_count"])
}

func TestExtract_CustomAllowedTypes(t *testing.T) {
	e := NewExtractor([]string{"txt"}, nil)
	_, _, err := e.Extract([]byte("x"), "doc.pdf")
	assert.True(t, errors.Is(err, common.ErrUnsupportedFileType))
}

func TestDecodeLatin1(t *testing.T) {
	assert.Equal(t, "ÿ", decodeLatin1([]byte{0xFF}))
	assert.Equal(t, "", decodeLatin1(nil))
}
