package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/marmos91/raid5fs/internal/logger"
	"github.com/marmos91/raid5fs/pkg/blocknode"
	"github.com/marmos91/raid5fs/pkg/blocknode/server"
	"github.com/marmos91/raid5fs/pkg/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configFile := pflag.String("config", "", "config file (default: ./config.yaml)")
	showVersion := pflag.Bool("version", false, "print version information")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("raid5noded %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.LoadNode(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := blocknode.Open(cfg.StorageDir, uint64(cfg.CapacityByte))
	if err != nil {
		return fmt.Errorf("open block store: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.BindHost, cfg.BindPort)
	srv := server.New(addr, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("block-node running", "id", cfg.ID, "addr", addr, "storage_dir", cfg.StorageDir, "capacity_bytes", cfg.CapacityByte)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received")
		cancel()
		if err := <-serverDone; err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("block-node stopped gracefully")
	return nil
}
