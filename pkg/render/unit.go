package render

import (
	"fmt"
	"strings"

	"github.com/codeb-dev/codeb/pkg/types"
)

// SlotIntent is everything needed to render a slot's container unit.
// Engines build intents; renderers turn them into text. Renderers hold
// no state and perform no I/O.
type SlotIntent struct {
	Project     string
	Environment types.Environment
	Slot        types.SlotName
	Port        int // host port owned by the slot
	Image       string
	Version     string
	TeamID      string
	EnvFile     string // absolute path, empty = none

	// InternalPort is the port the application listens on inside the
	// container; the health directive targets it. Zero defaults to 3000.
	InternalPort int

	MemoryLimit string // podman syntax, e.g. "512m"; empty = default
	CPULimit    string // e.g. "1.0"; empty = default
}

const (
	defaultInternalPort = 3000
	defaultMemoryLimit  = "512m"
	defaultCPULimit     = "1.0"
)

// ContainerName is the unit and container name for the slot.
func (in *SlotIntent) ContainerName() string {
	return fmt.Sprintf("%s-%s-%s", in.Project, in.Environment, in.Slot)
}

// QuadletUnit renders the systemd Quadlet .container file for a slot.
func QuadletUnit(in SlotIntent) string {
	internal := in.InternalPort
	if internal == 0 {
		internal = defaultInternalPort
	}
	mem := in.MemoryLimit
	if mem == "" {
		mem = defaultMemoryLimit
	}
	cpus := in.CPULimit
	if cpus == "" {
		cpus = defaultCPULimit
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Unit]\n")
	fmt.Fprintf(&b, "Description=%s %s slot (%s)\n", in.Project, in.Slot, in.Environment)
	fmt.Fprintf(&b, "\n[Container]\n")
	fmt.Fprintf(&b, "Image=%s\n", in.Image)
	fmt.Fprintf(&b, "ContainerName=%s\n", in.ContainerName())
	fmt.Fprintf(&b, "PublishPort=%d:%d\n", in.Port, internal)
	if in.EnvFile != "" {
		fmt.Fprintf(&b, "EnvironmentFile=%s\n", in.EnvFile)
	}
	fmt.Fprintf(&b, "Label=codeb.project=%s\n", in.Project)
	fmt.Fprintf(&b, "Label=codeb.environment=%s\n", in.Environment)
	fmt.Fprintf(&b, "Label=codeb.slot=%s\n", in.Slot)
	fmt.Fprintf(&b, "Label=codeb.version=%s\n", in.Version)
	if in.TeamID != "" {
		fmt.Fprintf(&b, "Label=codeb.team=%s\n", in.TeamID)
	}
	fmt.Fprintf(&b, "HealthCmd=curl -fsS http://localhost:%d/health || exit 1\n", internal)
	fmt.Fprintf(&b, "HealthInterval=30s\n")
	fmt.Fprintf(&b, "HealthRetries=3\n")
	fmt.Fprintf(&b, "Memory=%s\n", mem)
	fmt.Fprintf(&b, "PodmanArgs=--cpus %s\n", cpus)
	fmt.Fprintf(&b, "\n[Service]\n")
	fmt.Fprintf(&b, "Restart=on-failure\n")
	fmt.Fprintf(&b, "RestartSec=5\n")
	fmt.Fprintf(&b, "\n[Install]\n")
	fmt.Fprintf(&b, "WantedBy=default.target\n")
	return b.String()
}
