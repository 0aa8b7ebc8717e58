package engine

import (
	"context"
	"path"
	"time"

	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/metrics"
	"github.com/codeb-dev/codeb/pkg/render"
	"github.com/codeb-dev/codeb/pkg/types"
)

// DeployRequest is the input to Deploy. Auth is the already-authorized
// caller; TeamID rides into container labels.
type DeployRequest struct {
	Project         string
	Environment     types.Environment
	Version         string
	Image           string // empty = default ghcr.io reference
	SkipHealthcheck bool
	Auth            *types.AuthContext
}

// DeployResult reports the outcome, the chosen slot, and the step trace
// operators use to see where a failed deploy stopped.
type DeployResult struct {
	Success    bool           `json:"success"`
	Slot       types.SlotName `json:"slot"`
	Port       int            `json:"port"`
	PreviewURL string         `json:"preview_url,omitempty"`
	Steps      []Step         `json:"steps"`
	Error      string         `json:"error,omitempty"`
}

// Deploy prepares the inactive slot: writes its Quadlet unit, starts the
// container, waits for health, and records the new state. Traffic is
// never touched; promotion is a separate, explicit call.
func (e *Engine) Deploy(ctx context.Context, req DeployRequest) (*DeployResult, error) {
	start := e.now()
	if err := validatePair(req.Project, req.Environment); err != nil {
		return nil, err
	}
	if req.Version == "" {
		req.Version = "latest"
	}

	logger := log.WithProject(req.Project, string(req.Environment))
	t := &trace{}
	result := &DeployResult{}

	ps, created, err := e.loadOrCreate(ctx, req.Project, req.Environment, t)
	if err != nil {
		result.Steps = t.steps
		return result, err
	}

	target := ps.Inactive()
	if ps.Blue.State == types.SlotEmpty && ps.Green.State == types.SlotEmpty {
		// First deploy lands on the nominated slot (blue); the pointer
		// only starts meaning "serving traffic" after the first promote.
		target = ps.SlotFor(ps.ActiveSlot)
	}
	result.Slot = target.Name
	result.Port = target.Port

	// A slot serving traffic or held for rollback is never overwritten.
	if target.State == types.SlotActive || target.State == types.SlotGrace {
		err := types.E(types.KindTargetBusy, "slot %s is %s; cleanup must run first", target.Name, target.State)
		e.finishDeploy(ctx, req, result, t, start, err)
		return result, err
	}

	image := req.Image
	if image == "" {
		image = e.cfg.DefaultImage(req.Project, req.Version)
	}

	intent := render.SlotIntent{
		Project:     req.Project,
		Environment: req.Environment,
		Slot:        target.Name,
		Port:        target.Port,
		Image:       image,
		Version:     req.Version,
		EnvFile:     e.cfg.EnvFilePath(req.Project, req.Environment),
	}
	if req.Auth != nil {
		intent.TeamID = req.Auth.TeamID
	}
	unitPath := e.cfg.UnitPath(req.Project, req.Environment, target.Name)
	unitName := config.UnitName(req.Project, req.Environment, target.Name)

	unitWritten := false
	err = func() error {
		if err := t.run("write_unit", func() error {
			if err := e.exec.MkdirAll(ctx, e.cfg.AppServer, path.Dir(unitPath)); err != nil {
				return err
			}
			return e.exec.WriteFile(ctx, e.cfg.AppServer, unitPath, []byte(render.QuadletUnit(intent)))
		}); err != nil {
			return err
		}
		unitWritten = true

		if err := t.run("daemon_reload", func() error { return e.daemonReload(ctx) }); err != nil {
			return err
		}

		// Ensure a leftover instance of the unit is not running before
		// starting the new one; stop of a not-running unit exits zero.
		if err := t.run("stop_previous", func() error { return e.unitStop(ctx, unitName) }); err != nil {
			logger.Warn().Err(err).Msg("pre-start stop failed, continuing")
		}

		if err := t.run("start", func() error { return e.unitStart(ctx, unitName) }); err != nil {
			return err
		}

		if req.SkipHealthcheck {
			t.skip("health_wait")
			return nil
		}
		return t.run("health_wait", func() error {
			return e.waitHealthy(ctx, req.Project, req.Environment, target.Port)
		})
	}()

	// Compensation: stop the unit and clear the written file so a retry
	// starts clean. Both are idempotent and best-effort. A pair allocated
	// for a document that never stored goes back to the ledger, so failed
	// first deploys cannot walk the range toward exhaustion.
	fail := func(opErr error) (*DeployResult, error) {
		if unitWritten {
			if stopErr := e.unitStop(ctx, unitName); stopErr != nil {
				logger.Warn().Err(stopErr).Msg("compensating stop failed")
			}
			if rmErr := e.removeUnit(ctx, unitPath); rmErr != nil {
				logger.Warn().Err(rmErr).Msg("compensating unit removal failed")
			}
			if reloadErr := e.daemonReload(ctx); reloadErr != nil {
				logger.Warn().Err(reloadErr).Msg("compensating daemon reload failed")
			}
		}
		if created {
			if relErr := e.ledger.Release(ctx, []int{ps.Blue.Port, ps.Green.Port}); relErr != nil {
				logger.Warn().Err(relErr).Msg("releasing unbound port pair failed")
			}
		}
		e.finishDeploy(ctx, req, result, t, start, opErr)
		return result, opErr
	}

	if err != nil {
		return fail(err)
	}

	// Only success advances the registry.
	now := e.now().UTC()
	target.State = types.SlotDeployed
	target.Version = req.Version
	target.Image = image
	target.DeployedAt = &now
	target.DeployedBy = ""
	if req.Auth != nil {
		target.DeployedBy = req.Auth.TokenID
	}
	// A new version starts a fresh lifecycle; stamps from the slot's
	// previous tenure would order this deploy after an old promote and
	// fail the store's monotonicity recheck.
	target.PromotedAt = nil
	target.PromotedBy = ""
	target.RolledBackAt = nil
	target.RolledBackBy = ""
	// skip_healthcheck marks healthy without polling, by request.
	target.Health = types.HealthHealthy

	if err := t.run("store_registry", func() error { return e.reg.Save(ctx, ps) }); err != nil {
		return fail(err)
	}

	result.Success = true
	result.PreviewURL = e.cfg.PreviewURL(req.Project, target.Name)
	e.finishDeploy(ctx, req, result, t, start, nil)
	logger.Info().
		Str("slot", string(target.Name)).
		Int("port", target.Port).
		Str("version", req.Version).
		Msg("deploy complete")
	return result, nil
}

// loadOrCreate fetches the slot document, allocating a port pair and
// constructing the initial document on the very first deploy. created
// reports a freshly built document whose pair is not yet durable.
func (e *Engine) loadOrCreate(ctx context.Context, project string, env types.Environment, t *trace) (*types.ProjectSlots, bool, error) {
	var ps *types.ProjectSlots
	var created bool
	err := t.run("load_registry", func() error {
		loaded, err := e.reg.Load(ctx, project, env)
		if err == nil {
			ps = loaded
			return nil
		}
		if !types.IsKind(err, types.KindNotFound) {
			return err
		}
		bluePort, greenPort, err := e.ledger.AllocatePair(ctx, env)
		if err != nil {
			return err
		}
		ps = types.NewProjectSlots(project, env, bluePort, greenPort)
		created = true
		return nil
	})
	return ps, created, err
}

// finishDeploy stamps metrics, the audit event, and the result error.
func (e *Engine) finishDeploy(ctx context.Context, req DeployRequest, result *DeployResult, t *trace, start time.Time, opErr error) {
	result.Steps = t.steps
	duration := e.now().Sub(start)

	outcome := "success"
	if opErr != nil {
		outcome = "failure"
		result.Error = opErr.Error()
	}
	metrics.OperationsTotal.WithLabelValues("deploy", outcome).Inc()
	metrics.OperationDuration.WithLabelValues("deploy").Observe(duration.Seconds())

	ev := event(types.EventDeploy, req.Project, req.Environment, req.Auth)
	ev.ToSlot = result.Slot
	ev.ToVersion = req.Version
	ev.DurationMS = duration.Milliseconds()
	ev.Success = opErr == nil
	if opErr != nil {
		ev.Error = opErr.Error()
	}
	e.audit.Append(ctx, ev)
}
