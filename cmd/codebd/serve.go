package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeb-dev/codeb/pkg/api"
	"github.com/codeb-dev/codeb/pkg/audit"
	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/control"
	"github.com/codeb-dev/codeb/pkg/engine"
	"github.com/codeb-dev/codeb/pkg/executor"
	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/metrics"
	"github.com/codeb-dev/codeb/pkg/ports"
	"github.com/codeb-dev/codeb/pkg/registry"
	"github.com/codeb-dev/codeb/pkg/team"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control plane",
	Long: `Run the control plane: the HTTP API, the startup reconcile pass,
and the periodic cleanup scanner.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logLevel, _ := cmd.Flags().GetString("log-level")
		return runServe(logLevel)
	},
}

func init() {
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func runServe(logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: true})
	metrics.Register()

	logger := log.WithComponent("serve")
	if cfg.DevMode {
		logger.Warn().Msg("dev mode enabled: dev_{role} tokens accepted")
	}

	fleet := executor.NewFleet(cfg)
	defer fleet.Close()

	reg := registry.NewStore(cfg, fleet)
	ledger := ports.NewLedger(cfg, fleet)
	auditLog := audit.NewLog(cfg, fleet)
	teams := team.NewRegistry(cfg, fleet)

	eng := engine.New(cfg, fleet, reg, ledger, auditLog)
	ctl := control.New(cfg, eng, teams, auditLog)

	// Startup reconcile: report registry-vs-reality divergences left by a
	// crash; repair stays an operator decision.
	reconCtx, cancelRecon := context.WithTimeout(context.Background(), 2*time.Minute)
	if _, err := eng.Reconcile(reconCtx); err != nil {
		logger.Warn().Err(err).Msg("startup reconcile failed")
	}
	cancelRecon()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scanner := control.NewScanner(cfg, eng, ctl)
	go scanner.Run(ctx)

	server := api.NewServer(cfg, ctl)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return server.Stop(shutdownCtx)
}
