package team

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/types"
)

// Bootstrap creates a team together with its owner token without
// requiring prior authentication. It is reachable only from the CLI
// bootstrap command and from team_create issued by an existing owner.
// The owner secret is returned once.
func (r *Registry) Bootstrap(ctx context.Context, teamID, name string) (*types.Team, string, error) {
	if err := types.ValidateTeamID(teamID); err != nil {
		return nil, "", err
	}

	secret, err := mintSecret(types.RoleOwner)
	if err != nil {
		return nil, "", err
	}

	ownerToken := &types.Token{
		ID:         uuid.NewString(),
		SecretHash: hashSecret(secret),
		Name:       "owner",
		TeamID:     teamID,
		Role:       types.RoleOwner,
		CreatedAt:  time.Now().UTC(),
	}
	team := &types.Team{
		ID:           teamID,
		Name:         name,
		OwnerTokenID: ownerToken.ID,
		CreatedAt:    time.Now().UTC(),
		Projects:     []string{},
	}

	err = r.update(ctx, func(d *document) error {
		if _, exists := d.Teams[teamID]; exists {
			return types.E(types.KindValidation, "team %s already exists", teamID)
		}
		d.Teams[teamID] = team
		d.Tokens[ownerToken.ID] = ownerToken
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	logger := log.WithTeam(teamID)
	logger.Info().Msg("team created")
	return team, secret, nil
}

// Get returns the caller's team.
func (r *Registry) Get(ctx context.Context, auth *types.AuthContext) (*types.Team, error) {
	if err := r.Allowed(auth, types.CapRead); err != nil {
		return nil, err
	}
	var team *types.Team
	err := r.view(ctx, func(d *document) error {
		t, ok := d.Teams[auth.TeamID]
		if !ok {
			return types.E(types.KindNotFound, "team %s not found", auth.TeamID)
		}
		cp := *t
		team = &cp
		return nil
	})
	return team, err
}

// List returns all teams. Restricted to owners; ordinary members see
// only their own team through Get.
func (r *Registry) List(ctx context.Context, auth *types.AuthContext) ([]*types.Team, error) {
	if err := r.Allowed(auth, types.CapTeam); err != nil {
		return nil, err
	}
	var out []*types.Team
	err := r.view(ctx, func(d *document) error {
		for _, t := range d.Teams {
			cp := *t
			out = append(out, &cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete removes an empty team and all its tokens. Refused while any
// project is still assigned.
func (r *Registry) Delete(ctx context.Context, auth *types.AuthContext, teamID string) error {
	if err := r.Allowed(auth, types.CapTeam); err != nil {
		return err
	}
	if auth.TeamID != teamID {
		return types.E(types.KindForbidden, "owner of %s cannot delete team %s", auth.TeamID, teamID)
	}
	return r.update(ctx, func(d *document) error {
		t, ok := d.Teams[teamID]
		if !ok {
			return types.E(types.KindNotFound, "team %s not found", teamID)
		}
		if len(t.Projects) > 0 {
			return types.E(types.KindValidation, "team %s still owns %d project(s)", teamID, len(t.Projects))
		}
		delete(d.Teams, teamID)
		for id, tok := range d.Tokens {
			if tok.TeamID == teamID {
				delete(d.Tokens, id)
			}
		}
		return nil
	})
}

// SettingsUpdate carries the mutable team fields; nil members leave the
// current value in place.
type SettingsUpdate struct {
	DefaultEnvironment *types.Environment
	AutoPromote        *bool
	GraceHours         *int
	AllowedDomains     *[]string
	NotifyWebhook      *string
	AssignProjects     []string // projects to add to the team's set
	RemoveProjects     []string // projects to drop (must have no registry)
}

// UpdateSettings applies a settings update to the caller's team.
func (r *Registry) UpdateSettings(ctx context.Context, auth *types.AuthContext, up SettingsUpdate) (*types.Team, error) {
	if err := r.Allowed(auth, types.CapTeam); err != nil {
		return nil, err
	}
	var updated *types.Team
	err := r.update(ctx, func(d *document) error {
		t, ok := d.Teams[auth.TeamID]
		if !ok {
			return types.E(types.KindNotFound, "team %s not found", auth.TeamID)
		}
		if up.DefaultEnvironment != nil {
			if !up.DefaultEnvironment.Valid() {
				return types.E(types.KindValidation, "unknown environment %q", *up.DefaultEnvironment)
			}
			t.Settings.DefaultEnvironment = *up.DefaultEnvironment
		}
		if up.AutoPromote != nil {
			t.Settings.AutoPromote = *up.AutoPromote
		}
		if up.GraceHours != nil {
			if *up.GraceHours < 1 || *up.GraceHours > 168 {
				return types.E(types.KindValidation, "grace hours must be 1-168, got %d", *up.GraceHours)
			}
			t.Settings.GraceHours = *up.GraceHours
		}
		if up.AllowedDomains != nil {
			t.Settings.AllowedDomains = *up.AllowedDomains
		}
		if up.NotifyWebhook != nil {
			t.Settings.NotifyWebhook = *up.NotifyWebhook
		}
		for _, p := range up.AssignProjects {
			if err := types.ValidateProjectName(p); err != nil {
				return err
			}
			if owner := projectOwner(d, p); owner != "" && owner != t.ID {
				return types.E(types.KindValidation, "project %s already owned by team %s", p, owner)
			}
			if !t.OwnsProject(p) {
				t.Projects = append(t.Projects, p)
			}
		}
		for _, p := range up.RemoveProjects {
			kept := t.Projects[:0]
			for _, existing := range t.Projects {
				if existing != p {
					kept = append(kept, existing)
				}
			}
			t.Projects = kept
		}
		sort.Strings(t.Projects)
		cp := *t
		updated = &cp
		return nil
	})
	return updated, err
}

// projectOwner finds which team, if any, owns a project. Project names
// are unique across the deployment.
func projectOwner(d *document, project string) string {
	for _, t := range d.Teams {
		if t.OwnsProject(project) {
			return t.ID
		}
	}
	return ""
}
