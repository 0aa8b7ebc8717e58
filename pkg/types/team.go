package types

import "time"

// Role is the permission tier of an API token. Roles form a strict total
// order: viewer < member < admin < owner.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// Roles lists all roles in ascending order.
var Roles = []Role{RoleViewer, RoleMember, RoleAdmin, RoleOwner}

// Level returns the role's rank in the hierarchy; unknown roles rank
// below viewer.
func (r Role) Level() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleMember:
		return 2
	case RoleAdmin:
		return 3
	case RoleOwner:
		return 4
	}
	return 0
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r.Level() > 0 }

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool { return r.Level() >= min.Level() }

// Capability names a class of operations guarded by the role matrix.
type Capability string

const (
	CapRead    Capability = "read"    // slot status, slot list, audit log
	CapDeploy  Capability = "deploy"  // deploy, promote, rollback, cleanup
	CapMembers Capability = "members" // invite/remove members, issue tokens
	CapTeam    Capability = "team"    // team settings, delete team
)

// minRoleFor is the default permission matrix: the weakest role that may
// exercise each capability.
var minRoleFor = map[Capability]Role{
	CapRead:    RoleViewer,
	CapDeploy:  RoleMember,
	CapMembers: RoleAdmin,
	CapTeam:    RoleOwner,
}

// Allows reports whether a role may exercise the capability.
func (r Role) Allows(c Capability) bool {
	min, ok := minRoleFor[c]
	return ok && r.AtLeast(min)
}

// TeamSettings holds per-team knobs consulted by the control plane and by
// callers.
type TeamSettings struct {
	DefaultEnvironment Environment `json:"default_environment,omitempty"`
	AutoPromote        bool        `json:"auto_promote"`
	GraceHours         int         `json:"grace_hours,omitempty"` // 0 = platform default
	AllowedDomains     []string    `json:"allowed_domains,omitempty"`
	NotifyWebhook      string      `json:"notify_webhook,omitempty"`
}

// Team is the unit of tenancy. A team owns projects and issues tokens.
type Team struct {
	ID           string       `json:"team_id"`
	Name         string       `json:"name"`
	OwnerTokenID string       `json:"owner_token_id"`
	Plan         string       `json:"plan,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	Settings     TeamSettings `json:"settings"`
	Projects     []string     `json:"projects"`
}

// OwnsProject reports whether the project belongs to the team.
func (t *Team) OwnsProject(project string) bool {
	for _, p := range t.Projects {
		if p == project {
			return true
		}
	}
	return false
}

// Token is both the credential and the member identity; there is no
// separate user record. Only the hash of the presented secret is stored.
type Token struct {
	ID         string     `json:"token_id"`
	SecretHash string     `json:"secret_hash"`
	Name       string     `json:"name,omitempty"`
	TeamID     string     `json:"team_id"`
	Role       Role       `json:"role"`
	Projects   []string   `json:"projects,omitempty"` // empty = all team projects
	CreatedAt  time.Time  `json:"created_at"`
	CreatedBy  string     `json:"created_by,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Revoked    bool       `json:"revoked,omitempty"`
}

// Expired reports whether the token is past its expiry at now.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// AuthContext is the resolved identity of an authenticated request.
// Projects is the effective scope: nil means every project of the team.
type AuthContext struct {
	TokenID  string
	TeamID   string
	Role     Role
	Projects []string
}

// ScopedTo reports whether the context's token scope includes the
// project. Owners are scoped to everything their team owns, so an empty
// scope always passes here; team membership of the project is checked
// separately.
func (a *AuthContext) ScopedTo(project string) bool {
	if len(a.Projects) == 0 || a.Role == RoleOwner {
		return true
	}
	for _, p := range a.Projects {
		if p == project {
			return true
		}
	}
	return false
}
