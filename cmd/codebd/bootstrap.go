package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/executor"
	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/team"
)

var bootstrapTeamCmd = &cobra.Command{
	Use:   "bootstrap-team <team-id>",
	Short: "Create a team and mint its owner token",
	Long: `Create a team and mint its one owner token.

The owner secret is printed exactly once and never stored; losing it
means losing owner access to the team. Further teams and tokens are
created through the API with an owner token.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		logLevel, _ := cmd.Flags().GetString("log-level")
		return runBootstrapTeam(args[0], name, logLevel)
	},
}

func init() {
	bootstrapTeamCmd.Flags().String("name", "", "team display name (defaults to the team id)")
	bootstrapTeamCmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")
}

func runBootstrapTeam(teamID, name, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: false})

	if name == "" {
		name = teamID
	}

	fleet := executor.NewFleet(cfg)
	defer fleet.Close()

	teams := team.NewRegistry(cfg, fleet)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t, secret, err := teams.Bootstrap(ctx, teamID, name)
	if err != nil {
		return err
	}

	fmt.Printf("Team created: %s (%s)\n\n", t.ID, t.Name)
	fmt.Printf("Owner token (shown once, store it now):\n\n  %s\n\n", secret)
	return nil
}
