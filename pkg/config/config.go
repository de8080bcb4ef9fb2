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
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Model      ModelConfig      `mapstructure:"model"`
	RAG        RAGConfig        `mapstructure:"rag"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Timeout string `mapstructure:"timeout"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Store StoreConfig `mapstructure:"store"`
	Cache CacheConfig `mapstructure:"cache"`
}

// StoreConfig 文档/切片/审计存储配置（memory 为内置内存；postgres 需 pgvector）
type StoreConfig struct {
	Type     string `mapstructure:"type"`
	DSN      string `mapstructure:"dsn"`
	PoolSize int    `mapstructure:"pool_size"`
}

// CacheConfig 回答缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"`
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	TTL      string `mapstructure:"ttl"` // 如 "10m"，空则默认 10m
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// LLMConfig 生成模型配置
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // openai | claude
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// EmbeddingConfig 向量化模型配置
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Dimension int    `mapstructure:"dimension"`
	BatchSize int    `mapstructure:"batch_size"`
}

// RAGConfig 切片与检索参数
type RAGConfig struct {
	ChunkSize           int      `mapstructure:"chunk_size"`    // 单个切片 token 上限
	ChunkOverlap        int      `mapstructure:"chunk_overlap"` // 相邻切片重叠 token 数
	SimilarityThreshold float64  `mapstructure:"similarity_threshold"`
	MaxSearchResults    int      `mapstructure:"max_search_results"`
	MaxFileSizeMB       int      `mapstructure:"max_file_size_mb"`
	AllowedFileTypes    []string `mapstructure:"allowed_file_types"`
}

// SecretsConfig Secret 存储配置（api_key 使用 ${ENV} 时从此处解析）
type SecretsConfig struct {
	Provider string `mapstructure:"provider"` // env | vault | memory
	Vault    struct {
		Address    string `mapstructure:"address"`
		Token      string `mapstructure:"token"`
		PathPrefix string `mapstructure:"path_prefix"`
	} `mapstructure:"vault"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	// 替换环境变量
	replaceEnvVars(&config)
	applyDefaults(&config)

	return &config, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// Default 返回全默认配置（memory 存储，供 CLI 与测试使用）
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// replaceEnvVars 替换配置中 ${VAR} 形式的 API Key 与 DSN
func replaceEnvVars(config *Config) {
	config.Model.LLM.APIKey = expandEnv(config.Model.LLM.APIKey)
	config.Model.Embedding.APIKey = expandEnv(config.Model.Embedding.APIKey)
	config.Storage.Store.DSN = expandEnv(config.Storage.Store.DSN)
	config.Storage.Cache.Password = expandEnv(config.Storage.Cache.Password)
}

// expandEnv ${VAR} → 环境变量值；非该形式原样返回
func expandEnv(v string) string {
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		if val := os.Getenv(strings.TrimSuffix(strings.TrimPrefix(v, "${"), "}")); val != "" {
			return val
		}
	}
	return v
}

// applyDefaults 缺省值与原系统对齐
func applyDefaults(config *Config) {
	if config.API.Port <= 0 {
		config.API.Port = 8080
	}
	if config.Storage.Store.Type == "" {
		config.Storage.Store.Type = "memory"
	}
	if config.Model.LLM.Provider == "" {
		config.Model.LLM.Provider = "openai"
	}
	if config.Model.LLM.Model == "" {
		config.Model.LLM.Model = "gpt-4o-mini"
	}
	if config.Model.LLM.Temperature <= 0 {
		config.Model.LLM.Temperature = 0.1
	}
	if config.Model.LLM.MaxTokens <= 0 {
		config.Model.LLM.MaxTokens = 1000
	}
	if config.Model.Embedding.Provider == "" {
		config.Model.Embedding.Provider = "openai"
	}
	if config.Model.Embedding.Model == "" {
		config.Model.Embedding.Model = "text-embedding-3-small"
	}
	if config.Model.Embedding.Dimension <= 0 {
		config.Model.Embedding.Dimension = 1536
	}
	if config.Model.Embedding.BatchSize <= 0 {
		config.Model.Embedding.BatchSize = 100
	}
	if config.RAG.ChunkSize <= 0 {
		config.RAG.ChunkSize = 1000
	}
	if config.RAG.ChunkOverlap <= 0 {
		config.RAG.ChunkOverlap = 200
	}
	if config.RAG.SimilarityThreshold <= 0 {
		config.RAG.SimilarityThreshold = 0.2
	}
	if config.RAG.MaxSearchResults <= 0 {
		config.RAG.MaxSearchResults = 5
	}
	if config.RAG.MaxFileSizeMB <= 0 {
		config.RAG.MaxFileSizeMB = 10
	}
	if len(config.RAG.AllowedFileTypes) == 0 {
		config.RAG.AllowedFileTypes = []string{"pdf", "txt"}
	}
	if config.Secrets.Provider == "" {
		config.Secrets.Provider = "env"
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

// MaxFileSizeBytes 文件大小上限（字节）
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.RAG.MaxFileSizeMB) * 1024 * 1024
}
