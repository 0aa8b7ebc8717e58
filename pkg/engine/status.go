package engine

import (
	"context"

	"github.com/codeb-dev/codeb/pkg/metrics"
	"github.com/codeb-dev/codeb/pkg/registry"
	"github.com/codeb-dev/codeb/pkg/render"
	"github.com/codeb-dev/codeb/pkg/types"
)

// StatusResult is the read-only view of a (project, environment),
// including whether the proxy agrees with the registry about who serves
// traffic.
type StatusResult struct {
	Slots      *types.ProjectSlots `json:"slots"`
	ProxyPort  int                 `json:"proxy_port,omitempty"`
	Divergent  bool                `json:"divergent"`
	PreviewURL string              `json:"preview_url,omitempty"`
}

// Status loads the document and computes divergence against the written
// site file. Reads take no lock and may observe an in-flight operation's
// pre-state.
func (e *Engine) Status(ctx context.Context, project string, env types.Environment) (*StatusResult, error) {
	if err := validatePair(project, env); err != nil {
		return nil, err
	}

	ps, err := e.reg.Load(ctx, project, env)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{Slots: ps}
	for _, s := range []*types.Slot{&ps.Blue, &ps.Green} {
		if s.State == types.SlotDeployed {
			result.PreviewURL = e.cfg.PreviewURL(project, s.Name)
		}
	}

	result.ProxyPort, result.Divergent = e.divergence(ctx, ps)

	val := 0.0
	if result.Divergent {
		val = 1.0
	}
	metrics.SlotDivergence.WithLabelValues(project, string(env)).Set(val)

	return result, nil
}

// divergence compares the live site file against the registry. The
// written proxy file is the authority on who is serving traffic; the
// registry is the authority on what should be. Disagreement is reported,
// never silently repaired.
func (e *Engine) divergence(ctx context.Context, ps *types.ProjectSlots) (proxyPort int, divergent bool) {
	site, err := e.readSite(ctx, ps.Project, ps.Environment)
	if err != nil {
		// No site file: divergent only if the registry believes a slot
		// is actively serving.
		return 0, ps.Active().State == types.SlotActive
	}
	port, ok := render.SitePort(site)
	if !ok {
		return 0, true
	}
	if ps.Active().State != types.SlotActive {
		// Proxy routes traffic the registry does not know about.
		return port, true
	}
	return port, port != ps.Active().Port
}

// List returns summaries of all known pairs. Authorization filtering is
// the control loop's job.
func (e *Engine) List(ctx context.Context) ([]registry.Summary, error) {
	return e.reg.List(ctx)
}
