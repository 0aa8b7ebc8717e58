package engine

import (
	"context"
	"time"

	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/metrics"
	"github.com/codeb-dev/codeb/pkg/render"
	"github.com/codeb-dev/codeb/pkg/types"
)

// RollbackRequest is the input to Rollback.
type RollbackRequest struct {
	Project     string
	Environment types.Environment
	Reason      string
	Auth        *types.AuthContext
}

// RollbackResult reports the traffic switch back to the grace slot.
type RollbackResult struct {
	Success bool           `json:"success"`
	Slot    types.SlotName `json:"slot"`
	Port    int            `json:"port"`
	Version string         `json:"version,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Rollback repoints the proxy at the grace slot. Instantaneous because
// the previous container never stopped; there is no traffic draining
// beyond the proxy's own live-reload semantics.
func (e *Engine) Rollback(ctx context.Context, req RollbackRequest) (*RollbackResult, error) {
	start := e.now()
	if err := validatePair(req.Project, req.Environment); err != nil {
		return nil, err
	}

	result := &RollbackResult{}

	ps, err := e.reg.Load(ctx, req.Project, req.Environment)
	if err != nil {
		return result, err
	}

	current := ps.Active()
	prev := ps.Inactive()

	if prev.State != types.SlotGrace {
		err := types.E(types.KindNoPreviousVersion, "slot %s is %s, no grace slot to roll back to", prev.Name, prev.State)
		e.finishRollback(ctx, req, result, start, current, prev, err)
		return result, err
	}

	// Cleanup may have reclaimed the container while the registry still
	// said grace; the only safe move then is a forward roll.
	if !e.probeSlot(ctx, prev.Port) {
		err := types.E(types.KindPreviousUnhealthy, "grace slot %s failed health probe on port %d; deploy forward instead", prev.Name, prev.Port)
		e.finishRollback(ctx, req, result, start, current, prev, err)
		return result, err
	}

	site := render.CaddySite(render.SiteIntent{
		Project:     req.Project,
		Environment: req.Environment,
		Domain:      e.cfg.SiteDomain(req.Project, req.Environment),
		Slot:        prev.Name,
		Port:        prev.Port,
		Version:     prev.Version,
	})
	if err := e.writeSite(ctx, req.Project, req.Environment, []byte(site)); err != nil {
		e.finishRollback(ctx, req, result, start, current, prev, err)
		return result, err
	}
	if err := e.proxyReload(ctx); err != nil {
		e.finishRollback(ctx, req, result, start, current, prev, err)
		return result, err
	}

	now := e.now().UTC()
	prev.State = types.SlotActive
	prev.GraceExpiresAt = nil
	prev.RolledBackAt = &now
	if req.Auth != nil {
		prev.RolledBackBy = req.Auth.TokenID
	}
	// The rolled-away-from slot stays deployed so it can be re-promoted
	// after a fix, or cleaned up separately.
	current.State = types.SlotDeployed
	ps.ActiveSlot = prev.Name

	if err := e.reg.Save(ctx, ps); err != nil {
		e.finishRollback(ctx, req, result, start, current, prev, err)
		return result, err
	}

	result.Success = true
	result.Slot = prev.Name
	result.Port = prev.Port
	result.Version = prev.Version
	e.finishRollback(ctx, req, result, start, current, prev, nil)
	logger := log.WithProject(req.Project, string(req.Environment))
	logger.Warn().
		Str("slot", string(prev.Name)).
		Str("version", prev.Version).
		Str("reason", req.Reason).
		Msg("rolled back")
	return result, nil
}

func (e *Engine) finishRollback(ctx context.Context, req RollbackRequest, result *RollbackResult, start time.Time, from, to *types.Slot, opErr error) {
	duration := e.now().Sub(start)
	outcome := "success"
	if opErr != nil {
		outcome = "failure"
		result.Error = opErr.Error()
	}
	metrics.OperationsTotal.WithLabelValues("rollback", outcome).Inc()
	metrics.OperationDuration.WithLabelValues("rollback").Observe(duration.Seconds())

	ev := event(types.EventRollback, req.Project, req.Environment, req.Auth)
	ev.Reason = req.Reason
	if from != nil {
		ev.FromSlot = from.Name
		ev.FromVersion = from.Version
	}
	if to != nil {
		ev.ToSlot = to.Name
		ev.ToVersion = to.Version
	}
	ev.DurationMS = duration.Milliseconds()
	ev.Success = opErr == nil
	if opErr != nil {
		ev.Error = opErr.Error()
	}
	e.audit.Append(ctx, ev)
}
