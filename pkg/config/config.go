package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Server describes one host of the fixed fleet.
type Server struct {
	Host string `yaml:"host"` // IP or DNS name
	User string `yaml:"user"` // SSH user
	Role string `yaml:"role"` // app, streaming, storage, backup
	Port int    `yaml:"port"` // SSH port, 0 = 22
}

// Config is the explicit configuration of the control plane. It is built
// once at startup and passed to every component; there are no ambient
// globals. Validate rejects operation with missing required fields rather
// than defaulting silently.
type Config struct {
	// Servers maps logical names (app-01, stream-01, storage-01,
	// backup-01) to connection details.
	Servers map[string]Server `yaml:"servers"`

	// AppServer is the name of the application host where containers run
	// and registries live.
	AppServer string `yaml:"app_server"`

	// ControlHost is the server name the control plane itself runs on.
	// Commands targeting it execute locally instead of over SSH.
	ControlHost string `yaml:"control_host"`

	BaseDir       string `yaml:"base_dir"`        // e.g. /opt/codeb
	ProxySitesDir string `yaml:"proxy_sites_dir"` // Caddy sites directory
	BaseDomain    string `yaml:"base_domain"`     // e.g. codeb.dev
	RegistryOrg   string `yaml:"registry_org"`    // ghcr.io org for default images

	GraceHours int `yaml:"grace_hours"` // default grace window, hours

	DeployTimeout   time.Duration `yaml:"deploy_timeout"`
	PromoteTimeout  time.Duration `yaml:"promote_timeout"`
	RollbackTimeout time.Duration `yaml:"rollback_timeout"`
	CleanupTimeout  time.Duration `yaml:"cleanup_timeout"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`

	HealthInterval time.Duration `yaml:"health_interval"` // between health probes
	HealthSettle   time.Duration `yaml:"health_settle"`   // initial settle delay
	HealthWait     time.Duration `yaml:"health_wait"`     // total health wait budget

	MaxConcurrentPerHost int `yaml:"max_concurrent_per_host"`

	SSHKeyPath string `yaml:"ssh_key_path"`

	// DevMode bypasses the token signature check and accepts synthetic
	// dev_{role} tokens. Must be disabled in production.
	DevMode bool `yaml:"dev_mode"`

	ListenAddr string `yaml:"listen_addr"`

	CleanupScanInterval time.Duration `yaml:"cleanup_scan_interval"`
}

// Default returns a Config with platform defaults applied. Callers still
// have to fill in Servers, BaseDir, and BaseDomain.
func Default() *Config {
	return &Config{
		AppServer:            "app-01",
		BaseDir:              "/opt/codeb",
		ProxySitesDir:        "/etc/caddy/sites",
		RegistryOrg:          "codeb-dev",
		GraceHours:           48,
		DeployTimeout:        240 * time.Second,
		PromoteTimeout:       30 * time.Second,
		RollbackTimeout:      30 * time.Second,
		CleanupTimeout:       60 * time.Second,
		LockTimeout:          120 * time.Second,
		HealthInterval:       5 * time.Second,
		HealthSettle:         3 * time.Second,
		HealthWait:           60 * time.Second,
		MaxConcurrentPerHost: 8,
		ListenAddr:           ":8400",
		CleanupScanInterval:  time.Hour,
	}
}

// Load reads a YAML config file and applies CODEB_* environment
// overrides on top. A missing path loads defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CODEB_BASE_DIR"); v != "" {
		c.BaseDir = v
	}
	if v := os.Getenv("CODEB_PROXY_SITES_DIR"); v != "" {
		c.ProxySitesDir = v
	}
	if v := os.Getenv("CODEB_BASE_DOMAIN"); v != "" {
		c.BaseDomain = v
	}
	if v := os.Getenv("CODEB_REGISTRY_ORG"); v != "" {
		c.RegistryOrg = v
	}
	if v := os.Getenv("CODEB_GRACE_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.GraceHours = n
		}
	}
	if v := os.Getenv("CODEB_DEPLOY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DeployTimeout = d
		}
	}
	if v := os.Getenv("CODEB_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxConcurrentPerHost = n
		}
	}
	if v := os.Getenv("CODEB_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("CODEB_DEV_MODE"); v != "" {
		c.DevMode = v == "1" || v == "true"
	}
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir is required")
	}
	if c.BaseDomain == "" {
		return fmt.Errorf("base_domain is required")
	}
	if c.ProxySitesDir == "" {
		return fmt.Errorf("proxy_sites_dir is required")
	}
	if len(c.Servers) == 0 {
		return fmt.Errorf("at least one server must be configured")
	}
	if _, ok := c.Servers[c.AppServer]; !ok {
		return fmt.Errorf("app_server %q not present in servers", c.AppServer)
	}
	if c.GraceHours < 1 || c.GraceHours > 168 {
		return fmt.Errorf("grace_hours must be between 1 and 168, got %d", c.GraceHours)
	}
	return nil
}

// GracePeriod returns the default grace window as a duration.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.GraceHours) * time.Hour
}

// GracePeriodFor clamps a team override into the allowed 1-168h window;
// zero means use the platform default.
func (c *Config) GracePeriodFor(teamHours int) time.Duration {
	if teamHours <= 0 {
		return c.GracePeriod()
	}
	if teamHours > 168 {
		teamHours = 168
	}
	return time.Duration(teamHours) * time.Hour
}
