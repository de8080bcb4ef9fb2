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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"rag-qa/internal/app"
	"rag-qa/internal/pipeline/common"
	"rag-qa/internal/pipeline/query"
	"rag-qa/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("rag-qa cli 0.1.0")
	case "ingest":
		runIngest(args)
	case "ask":
		runAsk(args)
	case "list":
		runList(args)
	case "status":
		runStatus(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: ragqa <command> [args]

Commands:
  ingest <file> [file...]   入库一个或多个 PDF/TXT 文档
  ask <question>            基于已入库文档回答问题
  list [status]             列出文档（可按状态过滤）
  status <document_id>      查看单个文档的处理状态
  version                   打印版本`)
}

func mustBootstrap() *app.Bootstrap {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置failed: %v\n", err)
		os.Exit(1)
	}
	b, err := app.NewBootstrap(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化failed: %v\n", err)
		os.Exit(1)
	}
	return b
}

func runIngest(paths []string) {
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: ragqa ingest <file> [file...]")
		os.Exit(1)
	}

	b := mustBootstrap()
	defer b.Close()

	results := b.Orchestrator.IngestFiles(context.Background(), paths)
	failed := 0
	for _, r := range results {
		if r.Success {
			fmt.Printf("ok   %s  document_id=%s chunks=%d tokens=%d\n",
				r.Filename, r.DocumentID, r.ChunksCreated, r.TotalTokens)
		} else {
			failed++
			fmt.Printf("FAIL %s  %s\n", r.Filename, r.Error)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func runAsk(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: ragqa ask <question>")
		os.Exit(1)
	}
	question := strings.Join(args, " ")

	b := mustBootstrap()
	defer b.Close()

	resp := b.Generator.Answer(context.Background(), question, query.SearchOptions{})
	fmt.Println(resp.Answer)
	fmt.Printf("\nconfidence: %.2f (%s)\n", resp.Confidence, resp.Reasoning)
	for _, s := range resp.Sources {
		fmt.Printf("  - %s (chunk %d, similarity %.3f)\n", s.Filename, s.ChunkIndex+1, s.Similarity)
	}
}

func runList(args []string) {
	status := common.DocumentStatus("")
	if len(args) > 0 {
		status = common.DocumentStatus(args[0])
	}

	b := mustBootstrap()
	defer b.Close()

	docs, err := b.Store.ListDocuments(context.Background(), status, 100)
	if err != nil {
		fmt.Fprintf(os.Stderr, "列出文档failed: %v\n", err)
		os.Exit(1)
	}
	if len(docs) == 0 {
		fmt.Println("no documents")
		return
	}
	for _, d := range docs {
		fmt.Printf("%s  %-10s  %s (%d bytes)\n", d.ID, d.Status, d.Filename, d.FileSize)
	}
}

func runStatus(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: ragqa status <document_id>")
		os.Exit(1)
	}

	b := mustBootstrap()
	defer b.Close()

	doc, err := b.Store.GetDocument(context.Background(), args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取文档failed: %v\n", err)
		os.Exit(1)
	}
	doc.Content = "" // 状态查询不输出全文
	out, _ := json.MarshalIndent(doc, "", "  ")
	fmt.Println(string(out))
}
