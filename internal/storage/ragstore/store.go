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

package ragstore

import (
	"context"
	"fmt"

	"rag-qa/pkg/config"
)

// NewStore 根据配置创建存储实例
func NewStore(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN, cfg.PoolSize)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
