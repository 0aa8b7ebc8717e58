package control

import (
	"context"
	"fmt"
	"time"

	"github.com/codeb-dev/codeb/pkg/audit"
	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/engine"
	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/metrics"
	"github.com/codeb-dev/codeb/pkg/registry"
	"github.com/codeb-dev/codeb/pkg/team"
	"github.com/codeb-dev/codeb/pkg/types"
)

// Controller is the front door for every operation: it authenticates
// nothing itself (the transport resolved the token already) but enforces
// the capability matrix and project scope, takes the per-pair lock for
// mutations, applies the per-operation deadline, and only then hands off
// to the engine. Authorization always runs before lock acquisition so a
// forbidden caller cannot probe whether an operation is in flight.
type Controller struct {
	cfg   *config.Config
	eng   *engine.Engine
	teams *team.Registry
	audit *audit.Log
	locks *KeyedLock
}

// New wires the controller over the shared components.
func New(cfg *config.Config, eng *engine.Engine, teams *team.Registry, auditLog *audit.Log) *Controller {
	return &Controller{
		cfg:   cfg,
		eng:   eng,
		teams: teams,
		audit: auditLog,
		locks: NewKeyedLock(),
	}
}

// Teams exposes the team registry for the transport's token endpoints.
func (c *Controller) Teams() *team.Registry { return c.teams }

func lockKey(project string, env types.Environment) string {
	return fmt.Sprintf("%s/%s", project, env)
}

// authorize gates an operation on a capability and, when project is
// non-empty, on project scope. Denials are counted and audited.
func (c *Controller) authorize(ctx context.Context, auth *types.AuthContext, capability types.Capability, project string, env types.Environment, op string) error {
	err := c.teams.Allowed(auth, capability)
	if err == nil && project != "" {
		err = c.teams.AllowedProject(ctx, auth, project)
	}
	if err == nil {
		return nil
	}

	reason := string(types.KindOf(err))
	metrics.AuthzDeniedTotal.WithLabelValues(reason).Inc()

	ev := types.AuditEvent{
		Type:        types.EventAuthzDenied,
		Project:     project,
		Environment: env,
		Reason:      op,
		TokenID:     auth.TokenID,
		TeamID:      auth.TeamID,
		Error:       err.Error(),
	}
	c.audit.Append(ctx, ev)

	logger := log.WithToken(auth.TokenID)
	logger.Warn().
		Str("team_id", auth.TeamID).
		Str("op", op).
		Str("project", project).
		Str("reason", reason).
		Msg("authorization denied")
	return err
}

// locked runs fn under the pair's lock with the operation's deadline.
func (c *Controller) locked(ctx context.Context, project string, env types.Environment, timeout time.Duration, fn func(context.Context) error) error {
	release, err := c.locks.Acquire(ctx, lockKey(project, env), c.cfg.LockTimeout)
	if err != nil {
		return err
	}
	defer release()

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(opCtx)
}

// Deploy authorizes and dispatches a deploy.
func (c *Controller) Deploy(ctx context.Context, auth *types.AuthContext, req engine.DeployRequest) (*engine.DeployResult, error) {
	if err := c.authorize(ctx, auth, types.CapDeploy, req.Project, req.Environment, "deploy"); err != nil {
		return nil, err
	}
	req.Auth = auth

	var result *engine.DeployResult
	err := c.locked(ctx, req.Project, req.Environment, c.cfg.DeployTimeout, func(opCtx context.Context) error {
		var err error
		result, err = c.eng.Deploy(opCtx, req)
		return err
	})
	return result, err
}

// Promote authorizes and dispatches a promote, resolving the grace
// window from the team's settings when it carries an override.
func (c *Controller) Promote(ctx context.Context, auth *types.AuthContext, req engine.PromoteRequest) (*engine.PromoteResult, error) {
	if err := c.authorize(ctx, auth, types.CapDeploy, req.Project, req.Environment, "promote"); err != nil {
		return nil, err
	}
	req.Auth = auth
	req.GracePeriod = c.gracePeriod(ctx, auth)

	var result *engine.PromoteResult
	err := c.locked(ctx, req.Project, req.Environment, c.cfg.PromoteTimeout, func(opCtx context.Context) error {
		var err error
		result, err = c.eng.Promote(opCtx, req)
		return err
	})
	return result, err
}

// Rollback authorizes and dispatches a rollback.
func (c *Controller) Rollback(ctx context.Context, auth *types.AuthContext, req engine.RollbackRequest) (*engine.RollbackResult, error) {
	if err := c.authorize(ctx, auth, types.CapDeploy, req.Project, req.Environment, "rollback"); err != nil {
		return nil, err
	}
	req.Auth = auth

	var result *engine.RollbackResult
	err := c.locked(ctx, req.Project, req.Environment, c.cfg.RollbackTimeout, func(opCtx context.Context) error {
		var err error
		result, err = c.eng.Rollback(opCtx, req)
		return err
	})
	return result, err
}

// Cleanup authorizes and dispatches a cleanup.
func (c *Controller) Cleanup(ctx context.Context, auth *types.AuthContext, req engine.CleanupRequest) (*engine.CleanupResult, error) {
	if err := c.authorize(ctx, auth, types.CapDeploy, req.Project, req.Environment, "cleanup"); err != nil {
		return nil, err
	}
	req.Auth = auth

	var result *engine.CleanupResult
	err := c.locked(ctx, req.Project, req.Environment, c.cfg.CleanupTimeout, func(opCtx context.Context) error {
		var err error
		result, err = c.eng.Cleanup(opCtx, req)
		return err
	})
	return result, err
}

// Status returns the pair's state. Reads take no lock.
func (c *Controller) Status(ctx context.Context, auth *types.AuthContext, project string, env types.Environment) (*engine.StatusResult, error) {
	if err := c.authorize(ctx, auth, types.CapRead, project, env, "slot_status"); err != nil {
		return nil, err
	}
	return c.eng.Status(ctx, project, env)
}

// List returns the pairs visible to the caller: everything for dev-mode
// tokens, the team's own scoped projects otherwise.
func (c *Controller) List(ctx context.Context, auth *types.AuthContext) ([]registry.Summary, error) {
	if err := c.teams.Allowed(auth, types.CapRead); err != nil {
		metrics.AuthzDeniedTotal.WithLabelValues(string(types.KindOf(err))).Inc()
		return nil, err
	}

	all, err := c.eng.List(ctx)
	if err != nil {
		return nil, err
	}
	if auth.TeamID == "dev" && c.cfg.DevMode {
		return all, nil
	}

	var visible []registry.Summary
	for _, sum := range all {
		if c.teams.AllowedProject(ctx, auth, sum.Project) == nil {
			visible = append(visible, sum)
		}
	}
	return visible, nil
}

// Audit returns the audit trail of one operation on a pair, oldest
// first. Viewers may read it within their project scope.
func (c *Controller) Audit(ctx context.Context, auth *types.AuthContext, op types.EventType, project string, env types.Environment, limit int) ([]types.AuditEvent, error) {
	if err := c.authorize(ctx, auth, types.CapRead, project, env, "audit_read"); err != nil {
		return nil, err
	}
	return c.audit.Read(ctx, op, project, env, limit)
}

// gracePeriod resolves the promote grace window: the team's configured
// override clamped into range, or the platform default. Lookup failures
// fall back to the default; a promote never fails over a settings read.
func (c *Controller) gracePeriod(ctx context.Context, auth *types.AuthContext) time.Duration {
	t, err := c.teams.Get(ctx, auth)
	if err != nil || t == nil {
		return c.cfg.GracePeriod()
	}
	return c.cfg.GracePeriodFor(t.Settings.GraceHours)
}
