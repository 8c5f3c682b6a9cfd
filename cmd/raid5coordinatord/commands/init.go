package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/raid5fs/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample coordinator configuration file with a 4-node
placeholder cluster.

Examples:
  # Write ./config.yaml
  raid5coordinatord init

  # Write to a custom path
  raid5coordinatord init --config /etc/raid5/coordinator.yaml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = "./config.yaml"
	}

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := config.DefaultCoordinatorConfig()
	if err := config.SaveCoordinatorConfig(cfg, path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	cmd.Printf("Configuration file created at: %s\n", path)
	cmd.Println("Edit the node list to match your cluster, then run:")
	cmd.Printf("  raid5coordinatord start --config %s\n", path)
	return nil
}
