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

package http

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
)

// Router HTTP 路由器
type Router struct {
	handler            *Handler
	maxRequestBodySize int
}

// NewRouter 创建 HTTP 路由器；maxRequestBodySize <= 0 使用 32MB
func NewRouter(handler *Handler, maxRequestBodySize int) *Router {
	if maxRequestBodySize <= 0 {
		maxRequestBodySize = 32 << 20
	}
	return &Router{
		handler:            handler,
		maxRequestBodySize: maxRequestBodySize,
	}
}

// Build 构建 Hertz server 并注册路由；opts 供调用方附加 tracer 等选项
func (r *Router) Build(addr string, opts ...hertzconfig.Option) *server.Hertz {
	opts = append(opts,
		server.WithHostPorts(addr),
		server.WithMaxRequestBodySize(r.maxRequestBodySize),
	)
	h := server.Default(opts...)
	h.Use(cors())

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	api.GET("/metrics", r.handler.Metrics)

	documents := api.Group("/documents")
	documents.POST("/upload", r.handler.UploadDocument)
	documents.GET("", r.handler.ListDocuments)
	documents.GET("/:id", r.handler.GetDocument)

	api.POST("/query", r.handler.Query)

	return h
}

func cors() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		ctx.Header("Access-Control-Allow-Origin", "*")
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")
		if string(ctx.Method()) == "OPTIONS" {
			ctx.AbortWithStatus(204)
			return
		}
		ctx.Next(c)
	}
}
