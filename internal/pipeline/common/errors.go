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

package common

import (
	"errors"
	"fmt"
)

// 错误分类：校验错误在昂贵操作前触发；Provider 错误不在核心内重试
var (
	ErrInvalidInput        = errors.New("无效的输入")
	ErrUnsupportedFileType = errors.New("不支持的文件类型")
	ErrFileTooLarge        = errors.New("文件大小超过限制")
	ErrEmptyContent        = errors.New("文档内容为空")
	ErrEmbeddingProvider   = errors.New("向量化服务调用失败")
	ErrCompletionProvider  = errors.New("生成服务调用失败")
	ErrDocumentNotFound    = errors.New("文档不存在")
	ErrStoreUnavailable    = errors.New("存储不可用")
)

// PipelineError Pipeline 错误结构体
type PipelineError struct {
	Stage   string
	Message string
	Err     error
}

// Error 实现 error 接口
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[Pipeline] %s 阶段错误: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[Pipeline] %s 阶段错误: %s", e.Stage, e.Message)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError 创建新的 Pipeline 错误
func NewPipelineError(stage string, message string, err error) *PipelineError {
	return &PipelineError{
		Stage:   stage,
		Message: message,
		Err:     err,
	}
}

// IsPipelineError 检查是否为 Pipeline 错误
func IsPipelineError(err error) bool {
	var pipelineErr *PipelineError
	return errors.As(err, &pipelineErr)
}

// GetPipelineError 获取 Pipeline 错误
func GetPipelineError(err error) (*PipelineError, bool) {
	var pipelineErr *PipelineError
	if errors.As(err, &pipelineErr) {
		return pipelineErr, true
	}
	return nil, false
}

// IsValidationError 校验类错误在任何昂贵操作前产生，不应重试
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUnsupportedFileType) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrEmptyContent)
}

// IsProviderError 外部 Provider 调用错误；由 orchestrator 记录到文档并返回失败结果
func IsProviderError(err error) bool {
	return errors.Is(err, ErrEmbeddingProvider) || errors.Is(err, ErrCompletionProvider)
}
