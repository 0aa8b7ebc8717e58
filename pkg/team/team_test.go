package team

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/executor"
	"github.com/codeb-dev/codeb/pkg/types"
)

func testRegistry(t *testing.T) (*Registry, *executor.Fake) {
	t.Helper()
	cfg := config.Default()
	cfg.BaseDomain = "codeb.dev"
	cfg.Servers = map[string]config.Server{"app-01": {Host: "10.0.0.10", User: "deploy"}}
	fake := executor.NewFake()
	return NewRegistry(cfg, fake), fake
}

// bootstrapTeam creates a team and returns the owner's auth context plus
// the raw owner secret.
func bootstrapTeam(t *testing.T, r *Registry, teamID string) (*types.AuthContext, string) {
	t.Helper()
	_, secret, err := r.Bootstrap(context.Background(), teamID, teamID)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	auth, err := r.Authenticate(context.Background(), secret)
	if err != nil {
		t.Fatalf("Authenticate owner: %v", err)
	}
	return auth, secret
}

func TestBootstrapAndAuthenticate(t *testing.T) {
	r, _ := testRegistry(t)
	auth, secret := bootstrapTeam(t, r, "acme")

	if !strings.HasPrefix(secret, "codeb_owner_") {
		t.Errorf("owner secret format = %q", secret)
	}
	if auth.TeamID != "acme" || auth.Role != types.RoleOwner {
		t.Errorf("auth = %+v", auth)
	}

	// A second bootstrap of the same slug is refused.
	if _, _, err := r.Bootstrap(context.Background(), "acme", "again"); !types.IsKind(err, types.KindValidation) {
		t.Errorf("duplicate team kind = %s, want validation", types.KindOf(err))
	}
}

func TestAuthenticateRejections(t *testing.T) {
	r, _ := testRegistry(t)
	bootstrapTeam(t, r, "acme")
	ctx := context.Background()

	tests := []struct {
		name   string
		secret string
	}{
		{"empty", ""},
		{"malformed", "not-a-token"},
		{"unknown", "codeb_member_AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"},
		{"dev token without dev mode", "dev_owner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Authenticate(ctx, tt.secret)
			if !types.IsKind(err, types.KindUnauthenticated) {
				t.Errorf("kind = %s, want unauthenticated", types.KindOf(err))
			}
		})
	}
}

func TestAuthenticateDevMode(t *testing.T) {
	r, _ := testRegistry(t)
	r.cfg.DevMode = true

	auth, err := r.Authenticate(context.Background(), "dev_admin")
	if err != nil {
		t.Fatalf("dev token in dev mode: %v", err)
	}
	if auth.TeamID != "dev" || auth.Role != types.RoleAdmin {
		t.Errorf("auth = %+v", auth)
	}

	if _, err := r.Authenticate(context.Background(), "dev_root"); !types.IsKind(err, types.KindUnauthenticated) {
		t.Error("unknown dev role must be refused")
	}
}

func TestExpiredTokenAuthenticatesAsNobody(t *testing.T) {
	r, _ := testRegistry(t)
	owner, _ := bootstrapTeam(t, r, "acme")
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	_, secret, err := r.CreateToken(ctx, owner, TokenSpec{Name: "ci", Role: types.RoleMember, ExpiresAt: &past})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	// Expired means no identity at all, not a weaker one.
	_, err = r.Authenticate(ctx, secret)
	if !types.IsKind(err, types.KindUnauthenticated) {
		t.Errorf("kind = %s, want unauthenticated", types.KindOf(err))
	}
}

func TestRevokedTokenNeverAuthenticates(t *testing.T) {
	r, _ := testRegistry(t)
	owner, _ := bootstrapTeam(t, r, "acme")
	ctx := context.Background()

	tok, secret, err := r.CreateToken(ctx, owner, TokenSpec{Name: "ci", Role: types.RoleMember})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Authenticate(ctx, secret); err != nil {
		t.Fatalf("fresh token must authenticate: %v", err)
	}

	if err := r.RevokeToken(ctx, owner, tok.ID); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if _, err := r.Authenticate(ctx, secret); !types.IsKind(err, types.KindUnauthenticated) {
		t.Errorf("revoked token kind = %s, want unauthenticated", types.KindOf(err))
	}
}

func TestCreateTokenEscalation(t *testing.T) {
	r, _ := testRegistry(t)
	owner, _ := bootstrapTeam(t, r, "acme")
	ctx := context.Background()

	_, memberSecret, err := r.CreateToken(ctx, owner, TokenSpec{Name: "dev", Role: types.RoleMember})
	if err != nil {
		t.Fatal(err)
	}
	member, err := r.Authenticate(ctx, memberSecret)
	if err != nil {
		t.Fatal(err)
	}

	// A member asking for an owner token hears role_escalation, not a
	// generic forbidden.
	_, _, err = r.CreateToken(ctx, member, TokenSpec{Name: "sneaky", Role: types.RoleOwner})
	if !types.IsKind(err, types.KindRoleEscalation) {
		t.Errorf("kind = %s, want role_escalation", types.KindOf(err))
	}

	// A member asking for a role it could hold still lacks the members
	// capability.
	_, _, err = r.CreateToken(ctx, member, TokenSpec{Name: "peer", Role: types.RoleViewer})
	if !types.IsKind(err, types.KindForbidden) {
		t.Errorf("kind = %s, want forbidden", types.KindOf(err))
	}
}

func TestCreateTokenSecondOwnerRefused(t *testing.T) {
	r, _ := testRegistry(t)
	owner, _ := bootstrapTeam(t, r, "acme")

	_, _, err := r.CreateToken(context.Background(), owner, TokenSpec{Name: "co-owner", Role: types.RoleOwner})
	if !types.IsKind(err, types.KindValidation) {
		t.Errorf("kind = %s, want validation", types.KindOf(err))
	}
}

func TestCreateTokenProjectScope(t *testing.T) {
	r, _ := testRegistry(t)
	owner, _ := bootstrapTeam(t, r, "acme")
	ctx := context.Background()

	if _, err := r.UpdateSettings(ctx, owner, SettingsUpdate{AssignProjects: []string{"shop"}}); err != nil {
		t.Fatal(err)
	}

	// Scope must be a subset of the team's projects.
	_, _, err := r.CreateToken(ctx, owner, TokenSpec{Name: "ci", Role: types.RoleMember, Projects: []string{"bank"}})
	if !types.IsKind(err, types.KindValidation) {
		t.Errorf("kind = %s, want validation", types.KindOf(err))
	}

	_, secret, err := r.CreateToken(ctx, owner, TokenSpec{Name: "ci", Role: types.RoleMember, Projects: []string{"shop"}})
	if err != nil {
		t.Fatal(err)
	}
	scoped, err := r.Authenticate(ctx, secret)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.AllowedProject(ctx, scoped, "shop"); err != nil {
		t.Errorf("scoped token must reach its project: %v", err)
	}
}

func TestRevokeRules(t *testing.T) {
	r, _ := testRegistry(t)
	owner, _ := bootstrapTeam(t, r, "acme")
	ctx := context.Background()

	adminTok, adminSecret, err := r.CreateToken(ctx, owner, TokenSpec{Name: "admin", Role: types.RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	admin, err := r.Authenticate(ctx, adminSecret)
	if err != nil {
		t.Fatal(err)
	}
	memberTok, memberSecret, err := r.CreateToken(ctx, admin, TokenSpec{Name: "ci", Role: types.RoleMember})
	if err != nil {
		t.Fatal(err)
	}
	member, err := r.Authenticate(ctx, memberSecret)
	if err != nil {
		t.Fatal(err)
	}

	// A member may not revoke a token it did not issue.
	if err := r.RevokeToken(ctx, member, adminTok.ID); !types.IsKind(err, types.KindForbidden) {
		t.Errorf("kind = %s, want forbidden", types.KindOf(err))
	}
	// Admin may revoke any team token.
	if err := r.RevokeToken(ctx, admin, memberTok.ID); err != nil {
		t.Errorf("admin revoke: %v", err)
	}
	// The owner token is irrevocable, even by the owner.
	var ownerTokenID string
	team, err := r.Get(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	ownerTokenID = team.OwnerTokenID
	if err := r.RevokeToken(ctx, owner, ownerTokenID); !types.IsKind(err, types.KindValidation) {
		t.Errorf("owner token revoke kind = %s, want validation", types.KindOf(err))
	}
}

func TestListTokensElidesHashes(t *testing.T) {
	r, _ := testRegistry(t)
	owner, _ := bootstrapTeam(t, r, "acme")
	ctx := context.Background()

	if _, _, err := r.CreateToken(ctx, owner, TokenSpec{Name: "ci", Role: types.RoleMember}); err != nil {
		t.Fatal(err)
	}
	tokens, err := r.ListTokens(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 2 { // owner + ci
		t.Fatalf("got %d tokens", len(tokens))
	}
	for _, tok := range tokens {
		if tok.SecretHash != "" {
			t.Error("listing must not expose secret hashes")
		}
	}
}

func TestUpdateSettings(t *testing.T) {
	r, _ := testRegistry(t)
	owner, _ := bootstrapTeam(t, r, "acme")
	ctx := context.Background()

	bad := 300
	if _, err := r.UpdateSettings(ctx, owner, SettingsUpdate{GraceHours: &bad}); !types.IsKind(err, types.KindValidation) {
		t.Errorf("out-of-range grace kind = %s, want validation", types.KindOf(err))
	}

	hours := 24
	auto := true
	team, err := r.UpdateSettings(ctx, owner, SettingsUpdate{
		GraceHours:     &hours,
		AutoPromote:    &auto,
		AssignProjects: []string{"shop", "blog"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if team.Settings.GraceHours != 24 || !team.Settings.AutoPromote {
		t.Errorf("settings = %+v", team.Settings)
	}
	if !team.OwnsProject("shop") || !team.OwnsProject("blog") {
		t.Errorf("projects = %v", team.Projects)
	}
}

func TestProjectOwnershipIsExclusive(t *testing.T) {
	r, _ := testRegistry(t)
	acme, _ := bootstrapTeam(t, r, "acme")
	rival, _ := bootstrapTeam(t, r, "rival")
	ctx := context.Background()

	if _, err := r.UpdateSettings(ctx, acme, SettingsUpdate{AssignProjects: []string{"shop"}}); err != nil {
		t.Fatal(err)
	}
	// Another team cannot claim it.
	_, err := r.UpdateSettings(ctx, rival, SettingsUpdate{AssignProjects: []string{"shop"}})
	if !types.IsKind(err, types.KindValidation) {
		t.Errorf("kind = %s, want validation", types.KindOf(err))
	}
	// And its tokens cannot act on it.
	if err := r.AllowedProject(ctx, rival, "shop"); !types.IsKind(err, types.KindForbidden) {
		t.Errorf("kind = %s, want forbidden", types.KindOf(err))
	}
}

func TestDeleteTeam(t *testing.T) {
	r, _ := testRegistry(t)
	owner, secret := bootstrapTeam(t, r, "acme")
	ctx := context.Background()

	if _, err := r.UpdateSettings(ctx, owner, SettingsUpdate{AssignProjects: []string{"shop"}}); err != nil {
		t.Fatal(err)
	}
	// Refused while projects remain.
	if err := r.Delete(ctx, owner, "acme"); !types.IsKind(err, types.KindValidation) {
		t.Errorf("kind = %s, want validation", types.KindOf(err))
	}

	if _, err := r.UpdateSettings(ctx, owner, SettingsUpdate{RemoveProjects: []string{"shop"}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete(ctx, owner, "acme"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// The team's tokens die with it.
	if _, err := r.Authenticate(ctx, secret); !types.IsKind(err, types.KindUnauthenticated) {
		t.Error("tokens of a deleted team must not authenticate")
	}
}
