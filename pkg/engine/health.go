package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/codeb-dev/codeb/pkg/executor"
	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/metrics"
	"github.com/codeb-dev/codeb/pkg/types"
)

// probeSlot checks a slot's /health endpoint once. The probe runs as
// curl on the application host because the control plane may not have
// network reach to slot ports; any 2xx counts as healthy (curl -f fails
// on >= 400, and the app returning 3xx from /health is treated as
// misconfigured).
func (e *Engine) probeSlot(ctx context.Context, port int) bool {
	url := fmt.Sprintf("http://localhost:%d/health", port)
	_, err := e.exec.Run(ctx, e.cfg.AppServer, executor.Cmd("curl", "-fsS", "-m", "5", "-o", "/dev/null", url))
	if err != nil {
		metrics.HealthProbesTotal.WithLabelValues("unhealthy").Inc()
		return false
	}
	metrics.HealthProbesTotal.WithLabelValues("healthy").Inc()
	return true
}

// waitHealthy polls the slot port after an initial settle delay until it
// answers 2xx or the health-wait budget runs out.
func (e *Engine) waitHealthy(ctx context.Context, project string, env types.Environment, port int) error {
	logger := log.WithProject(project, string(env))

	select {
	case <-time.After(e.cfg.HealthSettle):
	case <-ctx.Done():
		return types.Wrap(types.KindHealthTimeout, ctx.Err(), "health wait cancelled during settle")
	}

	deadline := time.Now().Add(e.cfg.HealthWait)
	attempt := 0
	for {
		attempt++
		if e.probeSlot(ctx, port) {
			logger.Info().Int("port", port).Int("attempts", attempt).Msg("slot healthy")
			return nil
		}
		if time.Now().After(deadline) {
			return types.E(types.KindHealthTimeout, "port %d not healthy after %s (%d probes)", port, e.cfg.HealthWait, attempt)
		}
		select {
		case <-time.After(e.cfg.HealthInterval):
		case <-ctx.Done():
			return types.Wrap(types.KindHealthTimeout, ctx.Err(), "health wait cancelled")
		}
	}
}
