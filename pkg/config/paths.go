package config

import (
	"fmt"
	"path"

	"github.com/codeb-dev/codeb/pkg/types"
)

// Path derivations for everything the control plane persists on the
// application host. Filenames are pure functions of validated identifiers,
// so collisions are impossible by construction.

// SlotRegistryPath is the ProjectSlots JSON document.
func (c *Config) SlotRegistryPath(project string, env types.Environment) string {
	return path.Join(c.BaseDir, "registry", "slots", fmt.Sprintf("%s-%s.json", project, env))
}

// SlotRegistryDir is the directory holding all slot documents.
func (c *Config) SlotRegistryDir() string {
	return path.Join(c.BaseDir, "registry", "slots")
}

// SSOTPath is the port ledger document.
func (c *Config) SSOTPath() string {
	return path.Join(c.BaseDir, "registry", "ssot.json")
}

// TeamsPath is the teams registry document.
func (c *Config) TeamsPath() string {
	return path.Join(c.BaseDir, "config", "teams.json")
}

// AuditLogPath is the JSONL audit log for one operation type and
// (project, environment).
func (c *Config) AuditLogPath(op types.EventType, project string, env types.Environment) string {
	return path.Join(c.BaseDir, "logs", string(op), fmt.Sprintf("%s-%s.jsonl", project, env))
}

// UnitPath is the Quadlet container unit file for a slot.
func (c *Config) UnitPath(project string, env types.Environment, slot types.SlotName) string {
	return path.Join(c.BaseDir, "projects", project, ".config", "containers", "systemd",
		fmt.Sprintf("%s-%s-%s.container", project, env, slot))
}

// UnitName is the systemd service name a Quadlet unit generates.
func UnitName(project string, env types.Environment, slot types.SlotName) string {
	return fmt.Sprintf("%s-%s-%s", project, env, slot)
}

// SitePath is the Caddy site config file for a (project, environment).
func (c *Config) SitePath(project string, env types.Environment) string {
	return path.Join(c.ProxySitesDir, fmt.Sprintf("%s-%s.site", project, env))
}

// EnvFilePath is the environment file injected into a project's
// containers, one per environment.
func (c *Config) EnvFilePath(project string, env types.Environment) string {
	return path.Join(c.BaseDir, "projects", project, fmt.Sprintf(".env.%s", env))
}

// SiteDomain is the public domain a (project, environment) serves on.
// Production owns the bare project domain; other environments are
// suffixed.
func (c *Config) SiteDomain(project string, env types.Environment) string {
	if env == types.EnvProduction {
		return fmt.Sprintf("%s.%s", project, c.BaseDomain)
	}
	return fmt.Sprintf("%s-%s.%s", project, env, c.BaseDomain)
}

// PreviewURL is the slot-specific URL for validating a deployed but not
// yet promoted version.
func (c *Config) PreviewURL(project string, slot types.SlotName) string {
	return fmt.Sprintf("https://%s-%s.preview.%s", project, slot, c.BaseDomain)
}

// DefaultImage is the image reference used when a deploy names only a
// version.
func (c *Config) DefaultImage(project, version string) string {
	return fmt.Sprintf("ghcr.io/%s/%s:%s", c.RegistryOrg, project, version)
}
