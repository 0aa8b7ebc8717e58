package engine

import (
	"context"
	"time"

	"github.com/codeb-dev/codeb/pkg/audit"
	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/executor"
	"github.com/codeb-dev/codeb/pkg/ports"
	"github.com/codeb-dev/codeb/pkg/registry"
	"github.com/codeb-dev/codeb/pkg/types"
)

// Engine implements the slot operations: deploy, promote, rollback,
// cleanup, status, and reconcile. It assumes the caller (the control
// loop) already authorized the request and holds the
// per-(project, environment) lock for mutations.
type Engine struct {
	cfg    *config.Config
	exec   executor.Executor
	reg    *registry.Store
	ledger *ports.Ledger
	audit  *audit.Log

	now func() time.Time
}

// New builds an engine over the shared components.
func New(cfg *config.Config, exec executor.Executor, reg *registry.Store, ledger *ports.Ledger, auditLog *audit.Log) *Engine {
	return &Engine{
		cfg:    cfg,
		exec:   exec,
		reg:    reg,
		ledger: ledger,
		audit:  auditLog,
		now:    time.Now,
	}
}

// Registry exposes the slot store for read paths that bypass the engine.
func (e *Engine) Registry() *registry.Store { return e.reg }

// StepStatus is the outcome of one deploy step.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Step is one entry of an operation's step trace.
type Step struct {
	Name     string        `json:"name"`
	Status   StepStatus    `json:"status"`
	Duration time.Duration `json:"duration_ms"`
	Error    string        `json:"error,omitempty"`
}

// trace accumulates steps with timing.
type trace struct {
	steps []Step
}

// run executes fn as a named step and records its outcome.
func (t *trace) run(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	step := Step{Name: name, Duration: time.Since(start), Status: StepSuccess}
	if err != nil {
		step.Status = StepFailed
		step.Error = err.Error()
	}
	t.steps = append(t.steps, step)
	return err
}

// skip records a step that was not executed.
func (t *trace) skip(name string) {
	t.steps = append(t.steps, Step{Name: name, Status: StepSkipped})
}

// Unit-manager and proxy plumbing, shared by the engines. All commands
// run on the application host.

func (e *Engine) daemonReload(ctx context.Context) error {
	_, err := e.exec.Run(ctx, e.cfg.AppServer, executor.Cmd("systemctl", "--user", "daemon-reload"))
	return err
}

func (e *Engine) unitStart(ctx context.Context, unit string) error {
	_, err := e.exec.Run(ctx, e.cfg.AppServer, executor.Cmd("systemctl", "--user", "start", unit+".service"))
	return err
}

func (e *Engine) unitStop(ctx context.Context, unit string) error {
	_, err := e.exec.Run(ctx, e.cfg.AppServer, executor.Cmd("systemctl", "--user", "stop", unit+".service"))
	return err
}

func (e *Engine) unitActive(ctx context.Context, unit string) bool {
	res, err := e.exec.Run(ctx, e.cfg.AppServer, executor.Cmd("systemctl", "--user", "is-active", unit+".service"))
	return err == nil && res.Exit == 0
}

func (e *Engine) removeUnit(ctx context.Context, path string) error {
	_, err := e.exec.Run(ctx, e.cfg.AppServer, executor.Cmd("rm", "-f", path))
	return err
}

func (e *Engine) proxyReload(ctx context.Context) error {
	_, err := e.exec.Run(ctx, e.cfg.AppServer, executor.Cmd("systemctl", "reload", "caddy"))
	return err
}

// event seeds an audit event for an operation on a pair.
func event(typ types.EventType, project string, env types.Environment, auth *types.AuthContext) types.AuditEvent {
	ev := types.AuditEvent{
		Type:        typ,
		Project:     project,
		Environment: env,
	}
	if auth != nil {
		ev.TokenID = auth.TokenID
		ev.TeamID = auth.TeamID
	}
	return ev
}

// validatePair guards every entry point against malformed identifiers
// before they reach a path or a shell argument.
func validatePair(project string, env types.Environment) error {
	if err := types.ValidateProjectName(project); err != nil {
		return err
	}
	if !env.Valid() {
		return types.E(types.KindValidation, "unknown environment %q", env)
	}
	return nil
}
