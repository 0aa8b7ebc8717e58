package registry

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/executor"
	"github.com/codeb-dev/codeb/pkg/types"
)

// Store reads and writes ProjectSlots documents on the application host.
// Only the control loop mutates documents; readers may run concurrently
// because writes are atomic at the file level.
type Store struct {
	cfg  *config.Config
	exec executor.Executor
}

// Summary is the listing row for UI and ops queries.
type Summary struct {
	Project       string            `json:"project"`
	Environment   types.Environment `json:"environment"`
	ActiveSlot    types.SlotName    `json:"active_slot"`
	ActiveVersion string            `json:"active_version,omitempty"`
	ActiveState   types.SlotState   `json:"active_state"`
	GraceSlot     types.SlotName    `json:"grace_slot,omitempty"`
	LastUpdated   time.Time         `json:"last_updated"`
}

// NewStore builds a slot registry store.
func NewStore(cfg *config.Config, exec executor.Executor) *Store {
	return &Store{cfg: cfg, exec: exec}
}

// Load fetches the document for a (project, environment). Fails with
// not_found when no deploy has ever happened for the pair.
func (s *Store) Load(ctx context.Context, project string, env types.Environment) (*types.ProjectSlots, error) {
	data, err := s.exec.ReadFile(ctx, s.cfg.AppServer, s.cfg.SlotRegistryPath(project, env))
	if err != nil {
		if types.IsKind(err, types.KindNotFound) {
			return nil, types.E(types.KindNotFound, "no slot registry for %s-%s", project, env)
		}
		return nil, err
	}
	var ps types.ProjectSlots
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, types.Wrap(types.KindInternal, err, "parsing slot registry %s-%s", project, env)
	}
	return &ps, nil
}

// Save persists the document. Invariants are rechecked on every store;
// a violating document is refused and nothing is written.
func (s *Store) Save(ctx context.Context, ps *types.ProjectSlots) error {
	if err := ps.Validate(); err != nil {
		return err
	}
	ps.LastUpdated = time.Now().UTC()
	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return types.Wrap(types.KindInternal, err, "encoding slot registry %s", ps.Key())
	}
	path := s.cfg.SlotRegistryPath(ps.Project, ps.Environment)
	if err := s.exec.MkdirAll(ctx, s.cfg.AppServer, s.cfg.SlotRegistryDir()); err != nil {
		return err
	}
	return s.exec.WriteFile(ctx, s.cfg.AppServer, path, data)
}

// List returns summaries for every known (project, environment),
// sorted by project then environment. Authorization filtering is the
// caller's job.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	res, err := s.exec.Run(ctx, s.cfg.AppServer, executor.Cmd("ls", s.cfg.SlotRegistryDir()))
	if err != nil {
		if types.IsKind(err, types.KindNonzeroExit) {
			return nil, nil // directory absent: nothing deployed yet
		}
		return nil, err
	}

	var out []Summary
	for _, name := range strings.Fields(res.Stdout) {
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		project, env, ok := splitKey(strings.TrimSuffix(name, ".json"))
		if !ok {
			continue
		}
		ps, err := s.Load(ctx, project, env)
		if err != nil {
			continue // a racing write or stray file; skip, don't fail the listing
		}
		sum := Summary{
			Project:     ps.Project,
			Environment: ps.Environment,
			ActiveSlot:  ps.ActiveSlot,
			ActiveState: ps.Active().State,
			LastUpdated: ps.LastUpdated,
		}
		sum.ActiveVersion = ps.Active().Version
		for _, sl := range []*types.Slot{&ps.Blue, &ps.Green} {
			if sl.State == types.SlotGrace {
				sum.GraceSlot = sl.Name
			}
		}
		out = append(out, sum)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Project != out[j].Project {
			return out[i].Project < out[j].Project
		}
		return out[i].Environment < out[j].Environment
	})
	return out, nil
}

// splitKey recovers (project, environment) from a registry filename stem.
// Project names may contain hyphens, so the environment is matched from
// the end.
func splitKey(stem string) (string, types.Environment, bool) {
	for _, env := range types.Environments {
		suffix := "-" + string(env)
		if strings.HasSuffix(stem, suffix) && len(stem) > len(suffix) {
			return strings.TrimSuffix(stem, suffix), env, true
		}
	}
	return "", "", false
}
