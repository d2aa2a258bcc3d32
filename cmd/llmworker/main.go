package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logs "github.com/danmuck/neuraflow/internal/logging"
	"github.com/danmuck/neuraflow/internal/worker"
	"github.com/danmuck/neuraflow/internal/workers/llm"
)

func main() {
	configPath := flag.String("config", "", "path to llmworker TOML config (defaults when empty)")
	flag.Parse()

	logs.ConfigureRuntime()

	cfg := defaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "llmworker: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	node, err := worker.New(cfg.Worker, llm.New(cfg.Model))
	if err != nil {
		fmt.Fprintf(os.Stderr, "llmworker: %v\n", err)
		os.Exit(1)
	}
	logs.Infof("llmworker running service=%q; ctrl+c to stop", cfg.Worker.ServiceName)
	if err := node.Run(ctx); err != nil {
		logs.Fatalf("llmworker: %v", err)
	}
}
