package control

import (
	"context"
	"time"

	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/engine"
	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/metrics"
)

// Scanner periodically sweeps every registry for grace slots whose
// window elapsed and reclaims them. It shares the controller's lock
// table, so a scan never races a live deploy; a pair that is busy is
// simply skipped until the next tick.
type Scanner struct {
	cfg   *config.Config
	eng   *engine.Engine
	locks *KeyedLock
}

// NewScanner builds a scanner sharing the controller's lock table.
func NewScanner(cfg *config.Config, eng *engine.Engine, c *Controller) *Scanner {
	return &Scanner{cfg: cfg, eng: eng, locks: c.locks}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	logger := log.WithComponent("cleanup-scanner")
	interval := s.cfg.CleanupScanInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", interval).Msg("cleanup scanner started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("cleanup scanner stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one pass over all registries.
func (s *Scanner) sweep(ctx context.Context) {
	logger := log.WithComponent("cleanup-scanner")
	metrics.CleanupScansTotal.Inc()

	summaries, err := s.eng.List(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("registry list failed, skipping sweep")
		return
	}

	for _, sum := range summaries {
		release, ok := s.locks.TryAcquire(lockKey(sum.Project, sum.Environment))
		if !ok {
			continue // an operation is in flight; next tick will revisit
		}

		opCtx, cancel := context.WithTimeout(ctx, s.cfg.CleanupTimeout)
		result, err := s.eng.Cleanup(opCtx, engine.CleanupRequest{
			Project:     sum.Project,
			Environment: sum.Environment,
		})
		cancel()
		release()

		if err != nil {
			logger.Warn().Err(err).
				Str("project", sum.Project).
				Str("environment", string(sum.Environment)).
				Msg("scheduled cleanup failed")
			continue
		}
		if len(result.Cleaned) > 0 {
			logger.Info().
				Str("project", sum.Project).
				Str("environment", string(sum.Environment)).
				Int("cleaned", len(result.Cleaned)).
				Msg("expired grace slots reclaimed")
		}
	}
}
