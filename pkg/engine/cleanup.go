package engine

import (
	"context"

	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/metrics"
	"github.com/codeb-dev/codeb/pkg/types"
)

// CleanupRequest is the input to Cleanup. Force reclaims grace slots
// regardless of expiry and never-promoted deployed slots; active slots
// are untouchable either way.
type CleanupRequest struct {
	Project     string
	Environment types.Environment
	Force       bool
	Auth        *types.AuthContext
}

// CleanupResult lists what was reclaimed. An empty Cleaned with Success
// means nothing was eligible — a no-op, not an error.
type CleanupResult struct {
	Success bool             `json:"success"`
	Cleaned []types.SlotName `json:"cleaned,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Cleanup stops and removes slots whose grace window elapsed (or any
// non-active slot under force), resets them to empty, and stores the
// registry. Ports stay in the ledger so the project's pair is stable;
// releasing them is a separate administrative action.
func (e *Engine) Cleanup(ctx context.Context, req CleanupRequest) (*CleanupResult, error) {
	start := e.now()
	if err := validatePair(req.Project, req.Environment); err != nil {
		return nil, err
	}

	logger := log.WithProject(req.Project, string(req.Environment))
	result := &CleanupResult{}

	ps, err := e.reg.Load(ctx, req.Project, req.Environment)
	if err != nil {
		return result, err
	}

	now := e.now()
	var eligible []*types.Slot
	for _, s := range []*types.Slot{&ps.Blue, &ps.Green} {
		switch {
		case s.State == types.SlotActive:
			// never cleaned
		case s.State == types.SlotGrace && (req.Force || s.GraceExpired(now)):
			eligible = append(eligible, s)
		case s.State == types.SlotDeployed && req.Force:
			eligible = append(eligible, s)
		}
	}

	if len(eligible) == 0 {
		// Nothing past its window and nothing forced: registry and audit
		// log stay untouched.
		result.Success = true
		return result, nil
	}

	var events []types.AuditEvent
	for _, s := range eligible {
		unitName := config.UnitName(req.Project, req.Environment, s.Name)
		unitPath := e.cfg.UnitPath(req.Project, req.Environment, s.Name)

		// Container teardown is best-effort: a unit that is already gone
		// must not block reclaiming the slot record.
		if err := e.unitStop(ctx, unitName); err != nil {
			logger.Warn().Err(err).Str("unit", unitName).Msg("stop during cleanup failed")
		}
		if err := e.removeUnit(ctx, unitPath); err != nil {
			logger.Warn().Err(err).Str("unit", unitName).Msg("unit removal during cleanup failed")
		}
		fromVersion := s.Version
		fromSlot := s.Name
		s.Reset()
		result.Cleaned = append(result.Cleaned, fromSlot)

		ev := event(types.EventCleanup, req.Project, req.Environment, req.Auth)
		ev.FromSlot = fromSlot
		ev.FromVersion = fromVersion
		ev.Reason = cleanupReason(req.Force)
		events = append(events, ev)
	}

	if err := e.daemonReload(ctx); err != nil {
		logger.Warn().Err(err).Msg("daemon reload after cleanup failed")
	}

	// The log must never attest to a reclamation the store refused, so
	// events are appended only once the save's outcome is known.
	saveErr := e.reg.Save(ctx, ps)
	for _, ev := range events {
		ev.DurationMS = e.now().Sub(start).Milliseconds()
		ev.Success = saveErr == nil
		if saveErr != nil {
			ev.Error = saveErr.Error()
		}
		e.audit.Append(ctx, ev)
	}

	if saveErr != nil {
		result.Error = saveErr.Error()
		metrics.OperationsTotal.WithLabelValues("cleanup", "failure").Inc()
		return result, saveErr
	}

	result.Success = true
	metrics.OperationsTotal.WithLabelValues("cleanup", "success").Inc()
	metrics.OperationDuration.WithLabelValues("cleanup").Observe(e.now().Sub(start).Seconds())
	logger.Info().Int("cleaned", len(result.Cleaned)).Bool("force", req.Force).Msg("cleanup complete")
	return result, nil
}

func cleanupReason(force bool) string {
	if force {
		return "forced"
	}
	return "grace expired"
}
