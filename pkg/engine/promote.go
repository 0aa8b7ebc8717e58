package engine

import (
	"bytes"
	"context"
	"time"

	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/metrics"
	"github.com/codeb-dev/codeb/pkg/render"
	"github.com/codeb-dev/codeb/pkg/types"
)

// PromoteRequest is the input to Promote. GracePeriod is resolved by the
// caller from team settings (clamped 1-168h) or the platform default.
type PromoteRequest struct {
	Project     string
	Environment types.Environment
	GracePeriod time.Duration
	Auth        *types.AuthContext
}

// PromoteResult reports the traffic switch.
type PromoteResult struct {
	Success bool           `json:"success"`
	Slot    types.SlotName `json:"slot"`
	Port    int            `json:"port"`
	Version string         `json:"version,omitempty"`
	Domain  string         `json:"domain"`
	NoOp    bool           `json:"no_op,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Promote switches the reverse proxy to the deployed slot and starts the
// grace window on the formerly active one. Re-promoting with no new
// deploy is a no-op; re-promoting after a divergent failure rewrites the
// proxy file without touching the registry.
func (e *Engine) Promote(ctx context.Context, req PromoteRequest) (*PromoteResult, error) {
	start := e.now()
	if err := validatePair(req.Project, req.Environment); err != nil {
		return nil, err
	}
	if req.GracePeriod <= 0 {
		req.GracePeriod = e.cfg.GracePeriod()
	}

	logger := log.WithProject(req.Project, string(req.Environment))
	result := &PromoteResult{Domain: e.cfg.SiteDomain(req.Project, req.Environment)}

	ps, err := e.reg.Load(ctx, req.Project, req.Environment)
	if err != nil {
		return result, err
	}

	current := ps.Active()
	next := ps.Inactive()
	if next.State != types.SlotDeployed && current.State == types.SlotDeployed {
		// First promote: the pointer already names the deployed slot and
		// the sibling has never held a version.
		current, next = next, current
	}
	fromSlot, fromVersion := current.Name, current.Version

	if next.State != types.SlotDeployed {
		// Nothing new to promote. If the active slot is serving and the
		// proxy already agrees, this is the idempotent re-promote; if
		// the proxy disagrees after a partial failure, rewrite it.
		if current.State == types.SlotActive {
			return e.repromote(ctx, req, ps, result, start)
		}
		err := types.E(types.KindNotDeployed, "slot %s is %s, nothing to promote", next.Name, next.State)
		e.finishPromote(ctx, req, result, start, fromSlot, fromVersion, nil, err)
		return result, err
	}

	// Health is re-verified at promote time even though deploy checked
	// it; minutes may have passed.
	if !e.probeSlot(ctx, next.Port) {
		err := types.E(types.KindUnhealthy, "slot %s failed health probe on port %d", next.Name, next.Port)
		e.finishPromote(ctx, req, result, start, fromSlot, fromVersion, next, err)
		return result, err
	}

	site := render.CaddySite(render.SiteIntent{
		Project:     req.Project,
		Environment: req.Environment,
		Domain:      result.Domain,
		Slot:        next.Name,
		Port:        next.Port,
		Version:     next.Version,
	})
	if err := e.writeSite(ctx, req.Project, req.Environment, []byte(site)); err != nil {
		e.finishPromote(ctx, req, result, start, fromSlot, fromVersion, next, err)
		return result, err
	}
	if err := e.proxyReload(ctx); err != nil {
		e.finishPromote(ctx, req, result, start, fromSlot, fromVersion, next, err)
		return result, err
	}

	// Swap states. The lock is held across proxy write and registry
	// store, so the divergence window only opens on a hard failure
	// between the two, which status/reconcile detect.
	now := e.now().UTC()
	expiry := now.Add(req.GracePeriod)

	next.State = types.SlotActive
	next.PromotedAt = &now
	if req.Auth != nil {
		next.PromotedBy = req.Auth.TokenID
	}
	if current.State == types.SlotActive {
		current.State = types.SlotGrace
		current.GraceExpiresAt = &expiry
	}
	ps.ActiveSlot = next.Name

	if err := e.reg.Save(ctx, ps); err != nil {
		e.finishPromote(ctx, req, result, start, fromSlot, fromVersion, next, err)
		return result, err
	}

	result.Success = true
	result.Slot = next.Name
	result.Port = next.Port
	result.Version = next.Version
	e.finishPromote(ctx, req, result, start, fromSlot, fromVersion, next, nil)
	logger.Info().
		Str("slot", string(next.Name)).
		Int("port", next.Port).
		Str("version", next.Version).
		Msg("promoted")
	return result, nil
}

// repromote handles promote when no slot is in deployed state but the
// registry has an active slot: a pure no-op when the proxy agrees, a
// proxy rewrite (no registry change, no audit event) when it diverged.
func (e *Engine) repromote(ctx context.Context, req PromoteRequest, ps *types.ProjectSlots, result *PromoteResult, start time.Time) (*PromoteResult, error) {
	active := ps.Active()
	intended := []byte(render.CaddySite(render.SiteIntent{
		Project:     req.Project,
		Environment: req.Environment,
		Domain:      result.Domain,
		Slot:        active.Name,
		Port:        active.Port,
		Version:     active.Version,
	}))

	currentSite, err := e.readSite(ctx, req.Project, req.Environment)
	if err == nil && bytes.Equal(currentSite, intended) {
		result.Success = true
		result.NoOp = true
		result.Slot = active.Name
		result.Port = active.Port
		result.Version = active.Version
		metrics.OperationsTotal.WithLabelValues("promote", "noop").Inc()
		return result, nil
	}

	if err := e.writeSite(ctx, req.Project, req.Environment, intended); err != nil {
		e.finishPromote(ctx, req, result, start, active.Name, active.Version, active, err)
		return result, err
	}
	if err := e.proxyReload(ctx); err != nil {
		e.finishPromote(ctx, req, result, start, active.Name, active.Version, active, err)
		return result, err
	}

	metrics.SlotDivergence.WithLabelValues(req.Project, string(req.Environment)).Set(0)
	result.Success = true
	result.Slot = active.Name
	result.Port = active.Port
	result.Version = active.Version
	logger := log.WithProject(req.Project, string(req.Environment))
	logger.Warn().
		Str("slot", string(active.Name)).
		Msg("proxy reconverged to registry state")
	return result, nil
}

func (e *Engine) finishPromote(ctx context.Context, req PromoteRequest, result *PromoteResult, start time.Time, fromSlot types.SlotName, fromVersion string, next *types.Slot, opErr error) {
	duration := e.now().Sub(start)
	outcome := "success"
	if opErr != nil {
		outcome = "failure"
		result.Error = opErr.Error()
	}
	metrics.OperationsTotal.WithLabelValues("promote", outcome).Inc()
	metrics.OperationDuration.WithLabelValues("promote").Observe(duration.Seconds())

	ev := event(types.EventPromote, req.Project, req.Environment, req.Auth)
	ev.FromSlot = fromSlot
	ev.FromVersion = fromVersion
	if next != nil {
		ev.ToSlot = next.Name
		ev.ToVersion = next.Version
	}
	ev.DurationMS = duration.Milliseconds()
	ev.Success = opErr == nil
	if opErr != nil {
		ev.Error = opErr.Error()
	}
	e.audit.Append(ctx, ev)
}

// Site file plumbing shared with rollback, status, and reconcile.

func (e *Engine) writeSite(ctx context.Context, project string, env types.Environment, data []byte) error {
	if err := e.exec.MkdirAll(ctx, e.cfg.AppServer, e.cfg.ProxySitesDir); err != nil {
		return err
	}
	return e.exec.WriteFile(ctx, e.cfg.AppServer, e.cfg.SitePath(project, env), data)
}

func (e *Engine) readSite(ctx context.Context, project string, env types.Environment) ([]byte, error) {
	return e.exec.ReadFile(ctx, e.cfg.AppServer, e.cfg.SitePath(project, env))
}
