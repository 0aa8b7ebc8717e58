package engine

import (
	"context"
	"fmt"

	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/metrics"
	"github.com/codeb-dev/codeb/pkg/types"
)

// Divergence is one registry-vs-reality disagreement found by Reconcile.
type Divergence struct {
	Project     string            `json:"project"`
	Environment types.Environment `json:"environment"`
	Detail      string            `json:"detail"`
}

// Reconcile walks every slot registry after a restart and compares each
// active slot against the proxy config and the unit manager. Divergences
// are reported through the audit log and the divergence gauge; nothing
// is repaired automatically.
func (e *Engine) Reconcile(ctx context.Context) ([]Divergence, error) {
	logger := log.WithComponent("reconcile")

	summaries, err := e.reg.List(ctx)
	if err != nil {
		return nil, err
	}

	var found []Divergence
	for _, sum := range summaries {
		ps, err := e.reg.Load(ctx, sum.Project, sum.Environment)
		if err != nil {
			logger.Warn().Err(err).Str("project", sum.Project).Msg("reconcile load failed")
			continue
		}

		var details []string
		if _, divergent := e.divergence(ctx, ps); divergent {
			details = append(details, "proxy config disagrees with registry")
		}
		if active := ps.Active(); active.State == types.SlotActive {
			unit := config.UnitName(ps.Project, ps.Environment, active.Name)
			if !e.unitActive(ctx, unit) {
				details = append(details, fmt.Sprintf("unit %s not running for active slot", unit))
			}
		}

		gauge := 0.0
		for _, detail := range details {
			gauge = 1.0
			d := Divergence{Project: ps.Project, Environment: ps.Environment, Detail: detail}
			found = append(found, d)

			ev := event(types.EventReconcile, ps.Project, ps.Environment, nil)
			ev.Success = false
			ev.Error = detail
			e.audit.Append(ctx, ev)

			logger.Warn().
				Str("project", ps.Project).
				Str("environment", string(ps.Environment)).
				Str("detail", detail).
				Msg("divergence detected")
		}
		metrics.SlotDivergence.WithLabelValues(ps.Project, string(ps.Environment)).Set(gauge)
	}

	logger.Info().Int("registries", len(summaries)).Int("divergences", len(found)).Msg("reconcile complete")
	return found, nil
}
