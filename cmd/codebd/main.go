package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "codebd",
	Short: "CodeB - Blue-Green deployment control plane",
	Long: `CodeB is the control plane of a Blue-Green deployment platform.

It drives Quadlet/systemd containers and a Caddy reverse proxy on a
small fixed fleet over SSH, keeps durable JSON registries of slots,
ports, and teams, and exposes a single-endpoint HTTP API.`,
	Version: Version,
}

var configPath string

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"CodeB version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(bootstrapTeamCmd)
}
