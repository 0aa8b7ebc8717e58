package team

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeb-dev/codeb/pkg/types"
)

// mintSecret generates a fresh token secret in presentation format.
func mintSecret(role types.Role) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate token secret: %w", err)
	}
	return fmt.Sprintf("%s%s_%s", SecretPrefix, role, base64.RawURLEncoding.EncodeToString(raw)), nil
}

// TokenSpec describes a token to issue.
type TokenSpec struct {
	Name      string
	Role      types.Role
	Projects  []string   // subset of the team's projects; empty = all
	ExpiresAt *time.Time // optional
}

// CreateToken issues a token for the issuer's team. The secret is
// returned exactly once and never stored. Issuance refuses roles above
// the issuer's (role_escalation) and a second owner token per team.
func (r *Registry) CreateToken(ctx context.Context, auth *types.AuthContext, spec TokenSpec) (*types.Token, string, error) {
	if !spec.Role.Valid() {
		return nil, "", types.E(types.KindValidation, "unknown role %q", spec.Role)
	}
	// Escalation is checked before the capability gate so a member asking
	// for an owner token hears "role_escalation", not a generic forbidden.
	if spec.Role.Level() > auth.Role.Level() {
		return nil, "", types.E(types.KindRoleEscalation, "%s token cannot issue %s token", auth.Role, spec.Role)
	}
	if err := r.Allowed(auth, types.CapMembers); err != nil {
		return nil, "", err
	}

	secret, err := mintSecret(spec.Role)
	if err != nil {
		return nil, "", err
	}

	token := &types.Token{
		ID:         uuid.NewString(),
		SecretHash: hashSecret(secret),
		Name:       spec.Name,
		TeamID:     auth.TeamID,
		Role:       spec.Role,
		Projects:   append([]string(nil), spec.Projects...),
		CreatedAt:  time.Now().UTC(),
		CreatedBy:  auth.TokenID,
		ExpiresAt:  spec.ExpiresAt,
	}

	err = r.update(ctx, func(d *document) error {
		team, ok := d.Teams[auth.TeamID]
		if !ok {
			return types.E(types.KindNotFound, "team %s not found", auth.TeamID)
		}
		if spec.Role == types.RoleOwner {
			return types.E(types.KindValidation, "team %s already has an owner token", team.ID)
		}
		for _, p := range spec.Projects {
			if !team.OwnsProject(p) {
				return types.E(types.KindValidation, "project %s does not belong to team %s", p, team.ID)
			}
		}
		d.Tokens[token.ID] = token
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return token, secret, nil
}

// RevokeToken marks a token revoked. Any role may revoke tokens it
// issued; admin and owner may revoke any team token. Revocation is
// permanent; the record stays for audit.
func (r *Registry) RevokeToken(ctx context.Context, auth *types.AuthContext, tokenID string) error {
	return r.update(ctx, func(d *document) error {
		t, ok := d.Tokens[tokenID]
		if !ok || t.TeamID != auth.TeamID {
			return types.E(types.KindNotFound, "token %s not found", tokenID)
		}
		if t.CreatedBy != auth.TokenID && !auth.Role.AtLeast(types.RoleAdmin) {
			return types.E(types.KindForbidden, "role %s may only revoke tokens it issued", auth.Role)
		}
		if t.Role == types.RoleOwner {
			return types.E(types.KindValidation, "owner token cannot be revoked")
		}
		t.Revoked = true
		return nil
	})
}

// ListTokens returns the team's tokens with secrets elided (only hashes
// are stored anyway).
func (r *Registry) ListTokens(ctx context.Context, auth *types.AuthContext) ([]*types.Token, error) {
	if err := r.Allowed(auth, types.CapRead); err != nil {
		return nil, err
	}
	var out []*types.Token
	err := r.view(ctx, func(d *document) error {
		for _, t := range d.Tokens {
			if t.TeamID == auth.TeamID {
				cp := *t
				cp.SecretHash = ""
				out = append(out, &cp)
			}
		}
		return nil
	})
	return out, err
}
