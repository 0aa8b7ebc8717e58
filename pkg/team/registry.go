package team

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/executor"
	"github.com/codeb-dev/codeb/pkg/types"
)

// Registry owns the teams document ({base}/config/teams.json) and every
// authorization decision. All read-modify-write sequences run under one
// mutex, so member and token changes are linearizable.
type Registry struct {
	cfg  *config.Config
	exec executor.Executor

	mu sync.Mutex
}

// document is the on-disk shape of teams.json.
type document struct {
	Teams  map[string]*types.Team  `json:"teams"`
	Tokens map[string]*types.Token `json:"tokens"`
}

func newDocument() *document {
	return &document{
		Teams:  make(map[string]*types.Team),
		Tokens: make(map[string]*types.Token),
	}
}

// NewRegistry builds the teams registry over the shared executor.
func NewRegistry(cfg *config.Config, exec executor.Executor) *Registry {
	return &Registry{cfg: cfg, exec: exec}
}

func (r *Registry) load(ctx context.Context) (*document, error) {
	data, err := r.exec.ReadFile(ctx, r.cfg.AppServer, r.cfg.TeamsPath())
	if err != nil {
		if types.IsKind(err, types.KindNotFound) {
			return newDocument(), nil
		}
		return nil, err
	}
	var d document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, types.Wrap(types.KindInternal, err, "parsing teams registry")
	}
	if d.Teams == nil {
		d.Teams = make(map[string]*types.Team)
	}
	if d.Tokens == nil {
		d.Tokens = make(map[string]*types.Token)
	}
	return &d, nil
}

func (r *Registry) save(ctx context.Context, d *document) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return types.Wrap(types.KindInternal, err, "encoding teams registry")
	}
	return r.exec.WriteFile(ctx, r.cfg.AppServer, r.cfg.TeamsPath(), data)
}

// update runs fn against the loaded document under the registry mutex
// and persists the result if fn succeeds.
func (r *Registry) update(ctx context.Context, fn func(*document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, err := r.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(d); err != nil {
		return err
	}
	return r.save(ctx, d)
}

// view runs fn against a read-only load under the mutex.
func (r *Registry) view(ctx context.Context, fn func(*document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, err := r.load(ctx)
	if err != nil {
		return err
	}
	return fn(d)
}
