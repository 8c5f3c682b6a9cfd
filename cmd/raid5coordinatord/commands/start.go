package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/marmos91/raid5fs/internal/logger"
	"github.com/marmos91/raid5fs/internal/telemetry"
	"github.com/marmos91/raid5fs/pkg/api"
	"github.com/marmos91/raid5fs/pkg/config"
	"github.com/marmos91/raid5fs/pkg/coordinator"
	"github.com/marmos91/raid5fs/pkg/metadata"
	"github.com/marmos91/raid5fs/pkg/metrics"
	"github.com/marmos91/raid5fs/pkg/nodeclient"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the coordinator server",
	Long: `Start the coordinator HTTP API server.

Examples:
  # Start with default config location (./config.yaml)
  raid5coordinatord start

  # Start with a custom config file
  raid5coordinatord start --config /etc/raid5/coordinator.yaml`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadCoordinator(GetConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled: cfg.Telemetry.Enabled, ServiceName: "raid5-coordinator", SampleRate: 1.0,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	meta, err := metadata.Open(cfg.MetadataPath)
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}

	nodes := make([]*nodeclient.Client, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		nodes = append(nodes, nodeclient.New(n.ID, n.URL))
	}

	coord := coordinator.New(meta, nodes, int(cfg.BlockSize))

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		coord.SetMetrics(metrics.New(reg))
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics disabled")
	}

	addr := fmt.Sprintf("%s:%d", cfg.BindHost, cfg.BindPort)
	server := api.New(addr, coord, reg)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("coordinator running", "addr", addr, "nodes", len(nodes), "block_size", cfg.BlockSize)

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

	logger.Info("coordinator stopped gracefully")
	return nil
}
