package config

import (
	"testing"

	"github.com/codeb-dev/codeb/pkg/types"
)

func pathsConfig() *Config {
	cfg := Default()
	cfg.BaseDir = "/opt/codeb"
	cfg.ProxySitesDir = "/etc/caddy/sites"
	cfg.BaseDomain = "codeb.dev"
	cfg.RegistryOrg = "acme"
	return cfg
}

func TestPathDerivations(t *testing.T) {
	cfg := pathsConfig()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"slot registry", cfg.SlotRegistryPath("shop", types.EnvStaging), "/opt/codeb/registry/slots/shop-staging.json"},
		{"slot registry dir", cfg.SlotRegistryDir(), "/opt/codeb/registry/slots"},
		{"ssot", cfg.SSOTPath(), "/opt/codeb/registry/ssot.json"},
		{"teams", cfg.TeamsPath(), "/opt/codeb/config/teams.json"},
		{"audit", cfg.AuditLogPath(types.EventDeploy, "shop", types.EnvProduction), "/opt/codeb/logs/deploy/shop-production.jsonl"},
		{"unit", cfg.UnitPath("shop", types.EnvStaging, types.SlotBlue), "/opt/codeb/projects/shop/.config/containers/systemd/shop-staging-blue.container"},
		{"site", cfg.SitePath("shop", types.EnvStaging), "/etc/caddy/sites/shop-staging.site"},
		{"env file", cfg.EnvFilePath("shop", types.EnvProduction), "/opt/codeb/projects/shop/.env.production"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestSiteDomain(t *testing.T) {
	cfg := pathsConfig()

	// Production owns the bare project domain; other environments are
	// suffixed.
	if got := cfg.SiteDomain("shop", types.EnvProduction); got != "shop.codeb.dev" {
		t.Errorf("production domain = %q", got)
	}
	if got := cfg.SiteDomain("shop", types.EnvStaging); got != "shop-staging.codeb.dev" {
		t.Errorf("staging domain = %q", got)
	}
}

func TestPreviewURLAndImage(t *testing.T) {
	cfg := pathsConfig()

	if got := cfg.PreviewURL("shop", types.SlotGreen); got != "https://shop-green.preview.codeb.dev" {
		t.Errorf("preview URL = %q", got)
	}
	if got := cfg.DefaultImage("shop", "v2"); got != "ghcr.io/acme/shop:v2" {
		t.Errorf("default image = %q", got)
	}
	if got := UnitName("shop", types.EnvStaging, types.SlotBlue); got != "shop-staging-blue" {
		t.Errorf("unit name = %q", got)
	}
}
