// Package config loads coordinator and node configuration from YAML
// files overlaid by environment variables, with defaults for anything
// left unset. No configuration key is read from command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/raid5fs/internal/bytesize"
)

// NodeRef names one block-node the coordinator dials.
type NodeRef struct {
	ID  string `mapstructure:"id" yaml:"id"`
	URL string `mapstructure:"url" yaml:"url"`
}

// LoggingConfig controls log output behavior, shared by both config roots.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// CoordinatorConfig is the configuration root for cmd/raid5coordinatord.
type CoordinatorConfig struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// BlockSize is the fixed block size in bytes (spec.md §3).
	BlockSize bytesize.ByteSize `mapstructure:"block_size" yaml:"block_size"`

	// Nodes is the static list of block-nodes, in placement order: index i
	// in this list is node index i for pkg/placement purposes.
	Nodes []NodeRef `mapstructure:"nodes" yaml:"nodes"`

	// BindHost/BindPort configure the coordinator's HTTP listener.
	BindHost string `mapstructure:"bind_host" yaml:"bind_host"`
	BindPort int    `mapstructure:"bind_port" yaml:"bind_port"`

	// MetadataPath is the persisted metadata document (spec.md §4.5/§6).
	MetadataPath string `mapstructure:"metadata_path" yaml:"metadata_path"`

	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// MetricsConfig enables the Prometheus /metrics endpoint, which is served
// on the coordinator's API listener. Port is only reported in the
// start-up log; no separate listener is opened on it.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// TelemetryConfig controls OpenTelemetry tracing (no-op when disabled).
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// NodeConfig is the configuration root for cmd/raid5noded.
type NodeConfig struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	ID           string            `mapstructure:"id" yaml:"id"`
	BindHost     string            `mapstructure:"bind_host" yaml:"bind_host"`
	BindPort     int               `mapstructure:"bind_port" yaml:"bind_port"`
	StorageDir   string            `mapstructure:"storage_dir" yaml:"storage_dir"`
	CapacityByte bytesize.ByteSize `mapstructure:"capacity_bytes" yaml:"capacity_bytes"`
}

// envPrefixCoordinator / envPrefixNode name the environment variable
// namespaces: RAID5_COORD_* and RAID5_NODE_*.
const (
	envPrefixCoordinator = "RAID5_COORD"
	envPrefixNode        = "RAID5_NODE"
)

// LoadCoordinator reads coordinator configuration from configPath (YAML),
// overlaying environment variables and applying defaults for anything
// left unset. An absent file is not an error; defaults apply.
func LoadCoordinator(configPath string) (*CoordinatorConfig, error) {
	v := viper.New()
	setupViper(v, envPrefixCoordinator, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := defaultCoordinatorConfig()
	if !found {
		return cfg, nil
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("unmarshal coordinator config: %w", err)
	}
	applyCoordinatorDefaults(cfg)

	if err := validateCoordinator(cfg); err != nil {
		return nil, fmt.Errorf("coordinator config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadNode reads node configuration from configPath (YAML), overlaying
// environment variables and applying defaults.
func LoadNode(configPath string) (*NodeConfig, error) {
	v := viper.New()
	setupViper(v, envPrefixNode, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := defaultNodeConfig()
	if !found {
		return cfg, nil
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("unmarshal node config: %w", err)
	}
	applyNodeDefaults(cfg)

	if err := validateNode(cfg); err != nil {
		return nil, fmt.Errorf("node config validation failed: %w", err)
	}
	return cfg, nil
}

// DefaultCoordinatorConfig returns a sample coordinator configuration
// with a 4-node placeholder cluster, suitable for writing out as a
// starting-point config file.
func DefaultCoordinatorConfig() *CoordinatorConfig {
	cfg := defaultCoordinatorConfig()
	cfg.Nodes = []NodeRef{
		{ID: "node-0", URL: "http://localhost:9001"},
		{ID: "node-1", URL: "http://localhost:9002"},
		{ID: "node-2", URL: "http://localhost:9003"},
		{ID: "node-3", URL: "http://localhost:9004"},
	}
	return cfg
}

// DefaultNodeConfig returns a sample node configuration suitable for
// writing out as a starting-point config file.
func DefaultNodeConfig() *NodeConfig {
	cfg := defaultNodeConfig()
	cfg.ID = "node-0"
	return cfg
}

func defaultCoordinatorConfig() *CoordinatorConfig {
	return &CoordinatorConfig{
		Logging:      LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"},
		BlockSize:    4096,
		BindHost:     "0.0.0.0",
		BindPort:     8080,
		MetadataPath: "./raid5-metadata.json",
		Metrics:      MetricsConfig{Enabled: true, Port: 9090},
	}
}

func defaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		Logging:      LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"},
		BindHost:     "0.0.0.0",
		BindPort:     9001,
		StorageDir:   "./raid5-node-data",
		CapacityByte: bytesize.ByteSize(10 << 30), // 10 GiB
	}
}

func applyCoordinatorDefaults(cfg *CoordinatorConfig) {
	defaults := defaultCoordinatorConfig()
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = defaults.Logging.Output
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = defaults.BlockSize
	}
	if cfg.BindHost == "" {
		cfg.BindHost = defaults.BindHost
	}
	if cfg.BindPort == 0 {
		cfg.BindPort = defaults.BindPort
	}
	if cfg.MetadataPath == "" {
		cfg.MetadataPath = defaults.MetadataPath
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = defaults.Metrics.Port
	}
}

func applyNodeDefaults(cfg *NodeConfig) {
	defaults := defaultNodeConfig()
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = defaults.Logging.Output
	}
	if cfg.BindHost == "" {
		cfg.BindHost = defaults.BindHost
	}
	if cfg.BindPort == 0 {
		cfg.BindPort = defaults.BindPort
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = defaults.StorageDir
	}
	if cfg.CapacityByte == 0 {
		cfg.CapacityByte = defaults.CapacityByte
	}
}

func validateCoordinator(cfg *CoordinatorConfig) error {
	if cfg.BlockSize <= 0 {
		return fmt.Errorf("block_size must be positive")
	}
	if len(cfg.Nodes) < 2 {
		return fmt.Errorf("at least 2 nodes are required for RAID-5 striping, got %d", len(cfg.Nodes))
	}
	seen := make(map[string]bool, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		if n.ID == "" || n.URL == "" {
			return fmt.Errorf("every node needs a non-empty id and url")
		}
		if seen[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
	}
	return nil
}

func validateNode(cfg *NodeConfig) error {
	if cfg.BindPort <= 0 || cfg.BindPort > 65535 {
		return fmt.Errorf("bind_port out of range: %d", cfg.BindPort)
	}
	if cfg.CapacityByte <= 0 {
		return fmt.Errorf("capacity_bytes must be positive")
	}
	return nil
}

// SaveCoordinatorConfig writes cfg to path as YAML, matching the format
// LoadCoordinator reads back.
func SaveCoordinatorConfig(cfg *CoordinatorConfig, path string) error {
	return saveYAML(cfg, path)
}

// SaveNodeConfig writes cfg to path as YAML.
func SaveNodeConfig(cfg *NodeConfig, path string) error {
	return saveYAML(cfg, path)
}

func saveYAML(cfg any, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, envPrefix, configPath string) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

// decodeHooks composes the custom mapstructure decode hooks this config
// package needs: human-readable ByteSize strings from YAML/env.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(byteSizeDecodeHook())
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}
