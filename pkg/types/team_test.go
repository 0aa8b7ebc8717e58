package types

import (
	"testing"
	"time"
)

func TestRoleOrder(t *testing.T) {
	if !(RoleViewer.Level() < RoleMember.Level() &&
		RoleMember.Level() < RoleAdmin.Level() &&
		RoleAdmin.Level() < RoleOwner.Level()) {
		t.Error("roles must order viewer < member < admin < owner")
	}
	if Role("superuser").Valid() {
		t.Error("unknown role should not be valid")
	}
	if Role("superuser").Level() != 0 {
		t.Error("unknown role must rank below viewer")
	}
}

func TestRoleAllows(t *testing.T) {
	tests := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleViewer, CapRead, true},
		{RoleViewer, CapDeploy, false},
		{RoleViewer, CapMembers, false},
		{RoleViewer, CapTeam, false},
		{RoleMember, CapRead, true},
		{RoleMember, CapDeploy, true},
		{RoleMember, CapMembers, false},
		{RoleAdmin, CapDeploy, true},
		{RoleAdmin, CapMembers, true},
		{RoleAdmin, CapTeam, false},
		{RoleOwner, CapRead, true},
		{RoleOwner, CapTeam, true},
	}
	for _, tt := range tests {
		if got := tt.role.Allows(tt.cap); got != tt.want {
			t.Errorf("%s.Allows(%s) = %v, want %v", tt.role, tt.cap, got, tt.want)
		}
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	if (&Token{}).Expired(now) {
		t.Error("token without expiry never expires")
	}
	if (&Token{ExpiresAt: &future}).Expired(now) {
		t.Error("future expiry should not be expired")
	}
	if !(&Token{ExpiresAt: &past}).Expired(now) {
		t.Error("past expiry should be expired")
	}
	if !(&Token{ExpiresAt: &now}).Expired(now) {
		t.Error("expiry instant counts as expired")
	}
}

func TestAuthContextScopedTo(t *testing.T) {
	tests := []struct {
		name    string
		auth    AuthContext
		project string
		want    bool
	}{
		{"empty scope means all", AuthContext{Role: RoleMember}, "shop", true},
		{"in scope", AuthContext{Role: RoleMember, Projects: []string{"shop", "blog"}}, "shop", true},
		{"out of scope", AuthContext{Role: RoleMember, Projects: []string{"blog"}}, "shop", false},
		{"owner ignores scope", AuthContext{Role: RoleOwner, Projects: []string{"blog"}}, "shop", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.auth.ScopedTo(tt.project); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTeamOwnsProject(t *testing.T) {
	team := &Team{ID: "acme", Projects: []string{"shop", "blog"}}
	if !team.OwnsProject("shop") {
		t.Error("acme owns shop")
	}
	if team.OwnsProject("bank") {
		t.Error("acme does not own bank")
	}
}
