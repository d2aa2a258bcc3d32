package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/neuraflow/internal/broker"
	logs "github.com/danmuck/neuraflow/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to brokerd TOML config (defaults when empty)")
	flag.Parse()

	logs.ConfigureRuntime()

	cfg := broker.DefaultConfig()
	if *configPath != "" {
		loaded, err := loadBrokerConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "brokerd: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := broker.New(cfg)
	if err := b.Run(ctx); err != nil {
		// control plane or sink could not come up; do not run half-initialized
		logs.Fatalf("brokerd: %v", err)
	}
}
