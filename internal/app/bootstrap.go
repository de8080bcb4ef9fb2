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

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rag-qa/internal/model/embedding"
	"rag-qa/internal/model/llm"
	"rag-qa/internal/pipeline/ingest"
	"rag-qa/internal/pipeline/query"
	"rag-qa/internal/storage/cache"
	"rag-qa/internal/storage/ragstore"
	"rag-qa/pkg/config"
	"rag-qa/pkg/log"
	"rag-qa/pkg/secrets"
)

// Bootstrap 应用装配：所有依赖在入口处显式构造并传引用，
// 没有模块级单例，便于测试替换。
type Bootstrap struct {
	Config  *config.Config
	Logger  *log.Logger
	Secrets secrets.Store
	Store   ragstore.Store
	Cache   cache.Store

	Orchestrator *ingest.Orchestrator
	Retriever    *query.Retriever
	Generator    *query.Generator
}

// NewBootstrap 按配置装配全部组件
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}

	secretStore, err := secrets.NewStore(cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("初始化 secret store failed: %w", err)
	}
	resolveAPIKeys(cfg, secretStore, logger)

	ctx := context.Background()
	store, err := ragstore.NewStore(ctx, cfg.Storage.Store)
	if err != nil {
		return nil, fmt.Errorf("初始化存储failed: %w", err)
	}

	answerCache, err := cache.NewCache(ctx, cfg.Storage.Cache)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存failed: %w", err)
	}

	embedder, err := embedding.NewProvider(cfg.Model.Embedding)
	if err != nil {
		return nil, fmt.Errorf("初始化 embedding provider failed: %w", err)
	}
	llmClient, err := llm.NewClient(cfg.Model.LLM)
	if err != nil {
		return nil, fmt.Errorf("初始化 LLM client failed: %w", err)
	}

	chunker, err := ingest.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, "")
	if err != nil {
		return nil, fmt.Errorf("初始化 chunker failed: %w", err)
	}

	extractor := ingest.NewExtractor(cfg.RAG.AllowedFileTypes, logger)
	batcher := ingest.NewBatcher(embedder, cfg.Model.Embedding.BatchSize)
	orchestrator := ingest.NewOrchestrator(store, extractor, chunker, batcher, cfg.MaxFileSizeBytes(), logger)

	retriever := query.NewRetriever(store, batcher,
		cfg.RAG.SimilarityThreshold, cfg.RAG.MaxSearchResults, cfg.RAG.ChunkSize, logger)
	generator := query.NewGenerator(llmClient, retriever, store, answerCache,
		cacheTTL(cfg.Storage.Cache.TTL), cfg.Model.LLM.Temperature, cfg.Model.LLM.MaxTokens, logger)

	return &Bootstrap{
		Config:       cfg,
		Logger:       logger,
		Secrets:      secretStore,
		Store:        store,
		Cache:        answerCache,
		Orchestrator: orchestrator,
		Retriever:    retriever,
		Generator:    generator,
	}, nil
}

// Close 关闭持有连接的组件
func (b *Bootstrap) Close() error {
	var firstErr error
	if b.Cache != nil {
		if err := b.Cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.Store != nil {
		if err := b.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// resolveAPIKeys 配置里没写 api_key 时从 secret store 解析
func resolveAPIKeys(cfg *config.Config, store secrets.Store, logger *log.Logger) {
	ctx := context.Background()
	if cfg.Model.LLM.APIKey == "" {
		key := "OPENAI_API_KEY"
		if cfg.Model.LLM.Provider == "claude" {
			key = "ANTHROPIC_API_KEY"
		}
		if v, err := store.Get(ctx, key); err == nil {
			cfg.Model.LLM.APIKey = v
		} else if errors.Is(err, secrets.ErrSecretNotFound) {
			logger.Warn("LLM api_key 未配置且 secret 不存在", "key", key)
		} else {
			logger.Warn("读取 LLM api_key secret failed", "key", key, "error", err)
		}
	}
	if cfg.Model.Embedding.APIKey == "" {
		if v, err := store.Get(ctx, "OPENAI_API_KEY"); err == nil {
			cfg.Model.Embedding.APIKey = v
		}
	}
}

func cacheTTL(raw string) time.Duration {
	if raw == "" {
		return 10 * time.Minute
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}
