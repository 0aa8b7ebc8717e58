package team

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/types"
)

// SecretPrefix is the presentation prefix of every API token secret:
// codeb_{role}_{base64url(32 bytes)}.
const SecretPrefix = "codeb_"

// hashSecret is the stored form of a presented secret. The whole
// presented string is hashed, prefix included, so a forged prefix over a
// known suffix never matches.
func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Authenticate resolves a presented secret into an AuthContext. Revoked
// and expired tokens fail with unauthenticated (never forbidden: the
// caller has no proven identity to be forbidden as).
func (r *Registry) Authenticate(ctx context.Context, secret string) (*types.AuthContext, error) {
	if secret == "" {
		return nil, types.E(types.KindUnauthenticated, "missing token")
	}

	// Development mode accepts synthetic dev_{role} tokens with full
	// scope. Refused outright in production configs.
	if strings.HasPrefix(secret, "dev_") {
		if !r.cfg.DevMode {
			return nil, types.E(types.KindUnauthenticated, "dev tokens disabled")
		}
		role := types.Role(strings.TrimPrefix(secret, "dev_"))
		if !role.Valid() {
			return nil, types.E(types.KindUnauthenticated, "unknown dev role")
		}
		return &types.AuthContext{TokenID: "dev", TeamID: "dev", Role: role}, nil
	}

	if !strings.HasPrefix(secret, SecretPrefix) {
		return nil, types.E(types.KindUnauthenticated, "malformed token")
	}

	presented := []byte(hashSecret(secret))

	var match *types.Token
	err := r.view(ctx, func(d *document) error {
		for _, t := range d.Tokens {
			if subtle.ConstantTimeCompare(presented, []byte(t.SecretHash)) == 1 {
				match = t
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, types.E(types.KindUnauthenticated, "unknown token")
	}
	if match.Revoked {
		return nil, types.E(types.KindUnauthenticated, "token revoked")
	}
	if match.Expired(time.Now()) {
		return nil, types.E(types.KindUnauthenticated, "token expired")
	}

	r.touchLastUsed(match.ID)

	return &types.AuthContext{
		TokenID:  match.ID,
		TeamID:   match.TeamID,
		Role:     match.Role,
		Projects: append([]string(nil), match.Projects...),
	}, nil
}

// touchLastUsed stamps last-used-at in the background. Lost updates are
// tolerated; the stamp is advisory.
func (r *Registry) touchLastUsed(tokenID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := r.update(ctx, func(d *document) error {
			if t, ok := d.Tokens[tokenID]; ok {
				now := time.Now().UTC()
				t.LastUsedAt = &now
			}
			return nil
		})
		if err != nil {
			logger := log.WithComponent("team")
			logger.Debug().Err(err).Str("token_id", tokenID).Msg("last-used stamp failed")
		}
	}()
}

// Allowed checks the role matrix for a capability.
func (r *Registry) Allowed(auth *types.AuthContext, cap types.Capability) error {
	if !auth.Role.Allows(cap) {
		return types.E(types.KindForbidden, "role %s may not %s", auth.Role, cap)
	}
	return nil
}

// AllowedProject checks that the context may act on the project: the
// team must own it, and non-owner tokens must carry it in scope.
func (r *Registry) AllowedProject(ctx context.Context, auth *types.AuthContext, project string) error {
	if auth.TeamID == "dev" && r.cfg.DevMode {
		return nil
	}

	var team *types.Team
	err := r.view(ctx, func(d *document) error {
		team = d.Teams[auth.TeamID]
		return nil
	})
	if err != nil {
		return err
	}
	if team == nil {
		return types.E(types.KindForbidden, "team %s not found", auth.TeamID)
	}
	if !team.OwnsProject(project) {
		return types.E(types.KindForbidden, "project %s does not belong to team %s", project, auth.TeamID)
	}
	if !auth.ScopedTo(project) {
		return types.E(types.KindForbidden, "token not scoped to project %s", project)
	}
	return nil
}
