// Copyright 2026 fanjia1024
// Secret management abstraction

package secrets

import (
	"context"
	"errors"

	"rag-qa/pkg/config"
)

// ErrSecretNotFound key 不存在时各 backend 统一返回的哨兵错误
var ErrSecretNotFound = errors.New("secret not found")

// Store Secret 存储接口
type Store interface {
	// Get 获取 secret 值
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error

	// Delete 删除 secret
	Delete(ctx context.Context, key string) error

	// List 列出所有 secret keys
	List(ctx context.Context, prefix string) ([]string, error)
}

// NewStore 创建 Secret Store；未识别的 provider 回落到环境变量
func NewStore(cfg config.SecretsConfig) (Store, error) {
	switch cfg.Provider {
	case "memory":
		return NewMemoryStore(), nil
	case "vault":
		return NewVaultStore(VaultConfig{
			Address:    cfg.Vault.Address,
			Token:      cfg.Vault.Token,
			PathPrefix: cfg.Vault.PathPrefix,
		})
	default:
		return NewEnvStore(), nil
	}
}
