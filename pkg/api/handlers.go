package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/codeb-dev/codeb/pkg/engine"
	"github.com/codeb-dev/codeb/pkg/team"
	"github.com/codeb-dev/codeb/pkg/types"
)

// dispatch routes a decoded envelope to its operation. Member and token
// tools alias each other: a token IS the member, so member_invite mints
// a token and member_remove revokes one.
func (s *Server) dispatch(ctx context.Context, auth *types.AuthContext, req request) (any, error) {
	switch req.Tool {
	case "deploy":
		return s.toolDeploy(ctx, auth, req.Params)
	case "promote":
		return s.toolPromote(ctx, auth, req.Params)
	case "rollback":
		return s.toolRollback(ctx, auth, req.Params)
	case "slot_status":
		return s.toolStatus(ctx, auth, req.Params)
	case "slot_list":
		return s.ctl.List(ctx, auth)
	case "slot_cleanup":
		return s.toolCleanup(ctx, auth, req.Params)
	case "audit_read":
		return s.toolAudit(ctx, auth, req.Params)
	case "team_create":
		return s.toolTeamCreate(ctx, auth, req.Params)
	case "team_list":
		return s.ctl.Teams().List(ctx, auth)
	case "team_get":
		return s.ctl.Teams().Get(ctx, auth)
	case "team_delete":
		return s.toolTeamDelete(ctx, auth, req.Params)
	case "team_settings":
		return s.toolTeamSettings(ctx, auth, req.Params)
	case "member_invite", "token_create":
		return s.toolTokenCreate(ctx, auth, req.Params)
	case "member_remove", "token_revoke":
		return s.toolTokenRevoke(ctx, auth, req.Params)
	case "member_list", "token_list":
		return s.ctl.Teams().ListTokens(ctx, auth)
	default:
		return nil, types.E(types.KindNotFound, "unknown tool %q", req.Tool)
	}
}

// pairParams is the common (project, environment) selector.
type pairParams struct {
	Project     string            `json:"project"`
	Environment types.Environment `json:"environment"`
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return types.E(types.KindValidation, "missing params")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return types.Wrap(types.KindValidation, err, "malformed params")
	}
	return nil
}

func (s *Server) toolDeploy(ctx context.Context, auth *types.AuthContext, raw json.RawMessage) (any, error) {
	var p struct {
		pairParams
		Version         string `json:"version"`
		Image           string `json:"image"`
		SkipHealthcheck bool   `json:"skip_healthcheck"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return s.ctl.Deploy(ctx, auth, engine.DeployRequest{
		Project:         p.Project,
		Environment:     p.Environment,
		Version:         p.Version,
		Image:           p.Image,
		SkipHealthcheck: p.SkipHealthcheck,
	})
}

func (s *Server) toolPromote(ctx context.Context, auth *types.AuthContext, raw json.RawMessage) (any, error) {
	var p pairParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return s.ctl.Promote(ctx, auth, engine.PromoteRequest{
		Project:     p.Project,
		Environment: p.Environment,
	})
}

func (s *Server) toolRollback(ctx context.Context, auth *types.AuthContext, raw json.RawMessage) (any, error) {
	var p struct {
		pairParams
		Reason string `json:"reason"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return s.ctl.Rollback(ctx, auth, engine.RollbackRequest{
		Project:     p.Project,
		Environment: p.Environment,
		Reason:      p.Reason,
	})
}

func (s *Server) toolStatus(ctx context.Context, auth *types.AuthContext, raw json.RawMessage) (any, error) {
	var p pairParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return s.ctl.Status(ctx, auth, p.Project, p.Environment)
}

func (s *Server) toolCleanup(ctx context.Context, auth *types.AuthContext, raw json.RawMessage) (any, error) {
	var p struct {
		pairParams
		Force bool `json:"force"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return s.ctl.Cleanup(ctx, auth, engine.CleanupRequest{
		Project:     p.Project,
		Environment: p.Environment,
		Force:       p.Force,
	})
}

func (s *Server) toolAudit(ctx context.Context, auth *types.AuthContext, raw json.RawMessage) (any, error) {
	var p struct {
		pairParams
		Operation types.EventType `json:"operation"`
		Limit     int             `json:"limit"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.Operation == "" {
		p.Operation = types.EventDeploy
	}
	return s.ctl.Audit(ctx, auth, p.Operation, p.Project, p.Environment, p.Limit)
}

// teamCreated is the team_create result: the only time the owner secret
// crosses the wire.
type teamCreated struct {
	Team        *types.Team `json:"team"`
	OwnerSecret string      `json:"owner_secret"`
}

func (s *Server) toolTeamCreate(ctx context.Context, auth *types.AuthContext, raw json.RawMessage) (any, error) {
	// Creating further teams is an owner-tier action.
	if err := s.ctl.Teams().Allowed(auth, types.CapTeam); err != nil {
		return nil, err
	}
	var p struct {
		TeamID string `json:"team_id"`
		Name   string `json:"name"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	t, secret, err := s.ctl.Teams().Bootstrap(ctx, p.TeamID, p.Name)
	if err != nil {
		return nil, err
	}
	return teamCreated{Team: t, OwnerSecret: secret}, nil
}

func (s *Server) toolTeamDelete(ctx context.Context, auth *types.AuthContext, raw json.RawMessage) (any, error) {
	var p struct {
		TeamID string `json:"team_id"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if err := s.ctl.Teams().Delete(ctx, auth, p.TeamID); err != nil {
		return nil, err
	}
	return map[string]string{"deleted": p.TeamID}, nil
}

func (s *Server) toolTeamSettings(ctx context.Context, auth *types.AuthContext, raw json.RawMessage) (any, error) {
	var p struct {
		DefaultEnvironment *types.Environment `json:"default_environment"`
		AutoPromote        *bool              `json:"auto_promote"`
		GraceHours         *int               `json:"grace_hours"`
		AllowedDomains     *[]string          `json:"allowed_domains"`
		NotifyWebhook      *string            `json:"notify_webhook"`
		AssignProjects     []string           `json:"assign_projects"`
		RemoveProjects     []string           `json:"remove_projects"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return s.ctl.Teams().UpdateSettings(ctx, auth, team.SettingsUpdate{
		DefaultEnvironment: p.DefaultEnvironment,
		AutoPromote:        p.AutoPromote,
		GraceHours:         p.GraceHours,
		AllowedDomains:     p.AllowedDomains,
		NotifyWebhook:      p.NotifyWebhook,
		AssignProjects:     p.AssignProjects,
		RemoveProjects:     p.RemoveProjects,
	})
}

// tokenCreated is the token_create result: the only time this token's
// secret crosses the wire.
type tokenCreated struct {
	Token  *types.Token `json:"token"`
	Secret string       `json:"secret"`
}

func (s *Server) toolTokenCreate(ctx context.Context, auth *types.AuthContext, raw json.RawMessage) (any, error) {
	var p struct {
		Name      string     `json:"name"`
		Role      types.Role `json:"role"`
		Projects  []string   `json:"projects"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	token, secret, err := s.ctl.Teams().CreateToken(ctx, auth, team.TokenSpec{
		Name:      p.Name,
		Role:      p.Role,
		Projects:  p.Projects,
		ExpiresAt: p.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}
	token.SecretHash = ""
	return tokenCreated{Token: token, Secret: secret}, nil
}

func (s *Server) toolTokenRevoke(ctx context.Context, auth *types.AuthContext, raw json.RawMessage) (any, error) {
	var p struct {
		TokenID string `json:"token_id"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if err := s.ctl.Teams().RevokeToken(ctx, auth, p.TokenID); err != nil {
		return nil, err
	}
	return map[string]string{"revoked": p.TokenID}, nil
}
