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

package config

import (
	"os"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.RAG.ChunkSize != 1000 || cfg.RAG.ChunkOverlap != 200 {
		t.Errorf("chunk defaults: size=%d overlap=%d", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.SimilarityThreshold != 0.2 {
		t.Errorf("similarity threshold default: %v", cfg.RAG.SimilarityThreshold)
	}
	if cfg.RAG.MaxSearchResults != 5 || cfg.RAG.MaxFileSizeMB != 10 {
		t.Errorf("retrieval defaults: results=%d size=%d", cfg.RAG.MaxSearchResults, cfg.RAG.MaxFileSizeMB)
	}
	if cfg.Model.Embedding.Dimension != 1536 {
		t.Errorf("embedding dimension default: %d", cfg.Model.Embedding.Dimension)
	}
	if got := cfg.MaxFileSizeBytes(); got != 10*1024*1024 {
		t.Errorf("MaxFileSizeBytes: %d", got)
	}
}

func TestExpandEnv(t *testing.T) {
	os.Setenv("RAGQA_TEST_KEY", "sk-test")
	defer os.Unsetenv("RAGQA_TEST_KEY")

	if got := expandEnv("${RAGQA_TEST_KEY}"); got != "sk-test" {
		t.Errorf("expandEnv: %q", got)
	}
	if got := expandEnv("plain-value"); got != "plain-value" {
		t.Errorf("expandEnv should pass through plain values, got %q", got)
	}
	if got := expandEnv("${RAGQA_MISSING}"); got != "${RAGQA_MISSING}" {
		t.Errorf("missing env should stay as-is, got %q", got)
	}
}

func TestApplyDefaults_AllowedFileTypes(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if len(cfg.RAG.AllowedFileTypes) != 2 {
		t.Fatalf("allowed file types: %v", cfg.RAG.AllowedFileTypes)
	}
}
