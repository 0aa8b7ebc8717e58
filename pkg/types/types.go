package types

import (
	"fmt"
	"time"
)

// Environment identifies one of the three deployment targets. Each
// (project, environment) pair owns its own slot document and port pair.
type Environment string

const (
	EnvStaging    Environment = "staging"
	EnvProduction Environment = "production"
	EnvPreview    Environment = "preview"
)

// Environments lists all valid environments in display order.
var Environments = []Environment{EnvStaging, EnvProduction, EnvPreview}

// Valid reports whether e is a known environment.
func (e Environment) Valid() bool {
	switch e {
	case EnvStaging, EnvProduction, EnvPreview:
		return true
	}
	return false
}

// PortRange returns the inclusive port range reserved for the environment.
// Blue slots hold the even port of a pair, green slots the odd.
func (e Environment) PortRange() (start, end int) {
	switch e {
	case EnvStaging:
		return 3000, 3499
	case EnvProduction:
		return 4000, 4499
	case EnvPreview:
		return 5000, 5999
	}
	return 0, 0
}

// SlotName names one of the two parallel runtime instances.
type SlotName string

const (
	SlotBlue  SlotName = "blue"
	SlotGreen SlotName = "green"
)

// Other returns the sibling slot name.
func (n SlotName) Other() SlotName {
	if n == SlotBlue {
		return SlotGreen
	}
	return SlotBlue
}

// Valid reports whether n is blue or green.
func (n SlotName) Valid() bool {
	return n == SlotBlue || n == SlotGreen
}

// SlotState is the lifecycle state of a single slot.
type SlotState string

const (
	SlotEmpty    SlotState = "empty"    // nothing running, no version
	SlotDeployed SlotState = "deployed" // container running, not serving traffic
	SlotActive   SlotState = "active"   // container serving traffic via the proxy
	SlotGrace    SlotState = "grace"    // previous active, kept for rollback
)

// HealthState is the last observed health of a slot's container.
type HealthState string

const (
	HealthUnknown   HealthState = "unknown"
	HealthHealthy   HealthState = "healthy"
	HealthUnhealthy HealthState = "unhealthy"
)

// Slot describes one of the two runtime instances of a
// (project, environment). The port is allocated once and stays stable for
// the lifetime of the pair; everything else changes per deploy.
type Slot struct {
	Name           SlotName    `json:"name"`
	State          SlotState   `json:"state"`
	Port           int         `json:"port"`
	Version        string      `json:"version,omitempty"`
	Image          string      `json:"image,omitempty"`
	DeployedAt     *time.Time  `json:"deployed_at,omitempty"`
	DeployedBy     string      `json:"deployed_by,omitempty"`
	PromotedAt     *time.Time  `json:"promoted_at,omitempty"`
	PromotedBy     string      `json:"promoted_by,omitempty"`
	RolledBackAt   *time.Time  `json:"rolled_back_at,omitempty"`
	RolledBackBy   string      `json:"rolled_back_by,omitempty"`
	GraceExpiresAt *time.Time  `json:"grace_expires_at,omitempty"`
	Health         HealthState `json:"health"`
}

// GraceExpired reports whether the slot is in grace and its window has
// elapsed at the given wall-clock instant.
func (s *Slot) GraceExpired(now time.Time) bool {
	return s.State == SlotGrace && s.GraceExpiresAt != nil && !now.Before(*s.GraceExpiresAt)
}

// Reset clears everything but the slot's name and port, returning it to
// the empty state.
func (s *Slot) Reset() {
	*s = Slot{Name: s.Name, Port: s.Port, State: SlotEmpty, Health: HealthUnknown}
}

// ProjectSlots is the per-(project, environment) registry document. It is
// the authoritative record of what should be running on the application
// host for that pair.
type ProjectSlots struct {
	Project      string      `json:"project_name"`
	Environment  Environment `json:"environment"`
	ActiveSlot   SlotName    `json:"active_slot"`
	Blue         Slot        `json:"blue"`
	Green        Slot        `json:"green"`
	LastUpdated  time.Time   `json:"last_updated"`
	MigratedFrom string      `json:"migrated_from,omitempty"`
}

// NewProjectSlots constructs the initial document for a first deploy: both
// slots empty, blue nominated as the active slot name, ports assigned from
// a freshly allocated pair.
func NewProjectSlots(project string, env Environment, bluePort, greenPort int) *ProjectSlots {
	return &ProjectSlots{
		Project:     project,
		Environment: env,
		ActiveSlot:  SlotBlue,
		Blue:        Slot{Name: SlotBlue, State: SlotEmpty, Port: bluePort, Health: HealthUnknown},
		Green:       Slot{Name: SlotGreen, State: SlotEmpty, Port: greenPort, Health: HealthUnknown},
		LastUpdated: time.Now().UTC(),
	}
}

// SlotFor returns a pointer to the named slot.
func (ps *ProjectSlots) SlotFor(name SlotName) *Slot {
	if name == SlotGreen {
		return &ps.Green
	}
	return &ps.Blue
}

// Active returns the slot currently nominated to serve traffic.
func (ps *ProjectSlots) Active() *Slot { return ps.SlotFor(ps.ActiveSlot) }

// Inactive returns the sibling of the active slot, the target of the next
// deploy.
func (ps *ProjectSlots) Inactive() *Slot { return ps.SlotFor(ps.ActiveSlot.Other()) }

// Validate checks the document's internal invariants. Every store goes
// through this; a violation means a bug in an engine, not bad user input.
func (ps *ProjectSlots) Validate() error {
	if err := ValidateProjectName(ps.Project); err != nil {
		return err
	}
	if !ps.Environment.Valid() {
		return E(KindInvariantViolation, "unknown environment %q", ps.Environment)
	}
	if !ps.ActiveSlot.Valid() {
		return E(KindInvariantViolation, "unknown active slot %q", ps.ActiveSlot)
	}
	if ps.Blue.Name != SlotBlue || ps.Green.Name != SlotGreen {
		return E(KindInvariantViolation, "slot names out of place")
	}

	// Port disjointness and range membership. Blue even, green odd.
	start, end := ps.Environment.PortRange()
	if ps.Blue.Port == ps.Green.Port {
		return E(KindInvariantViolation, "blue and green share port %d", ps.Blue.Port)
	}
	for _, s := range []*Slot{&ps.Blue, &ps.Green} {
		if s.Port < start || s.Port > end {
			return E(KindInvariantViolation, "%s port %d outside %s range %d-%d", s.Name, s.Port, ps.Environment, start, end)
		}
	}
	if ps.Blue.Port%2 != 0 {
		return E(KindInvariantViolation, "blue port %d is odd", ps.Blue.Port)
	}
	if ps.Green.Port%2 != 1 {
		return E(KindInvariantViolation, "green port %d is even", ps.Green.Port)
	}

	// State skeleton: at most one active, at most one grace.
	var active, grace int
	for _, s := range []*Slot{&ps.Blue, &ps.Green} {
		switch s.State {
		case SlotActive:
			active++
		case SlotGrace:
			grace++
		case SlotEmpty, SlotDeployed:
		default:
			return E(KindInvariantViolation, "%s has unknown state %q", s.Name, s.State)
		}
	}
	if active > 1 {
		return E(KindInvariantViolation, "both slots active")
	}
	if grace > 1 {
		return E(KindInvariantViolation, "both slots in grace")
	}

	// Active consistency: if any slot is active it must be the nominated one.
	for _, s := range []*Slot{&ps.Blue, &ps.Green} {
		if s.State == SlotActive && s.Name != ps.ActiveSlot {
			return E(KindInvariantViolation, "%s is active but active_slot is %s", s.Name, ps.ActiveSlot)
		}
	}

	// Grace discipline: expiry stamp present exactly on grace slots.
	for _, s := range []*Slot{&ps.Blue, &ps.Green} {
		if s.State == SlotGrace && s.GraceExpiresAt == nil {
			return E(KindInvariantViolation, "%s in grace without expiry", s.Name)
		}
		if s.State != SlotGrace && s.GraceExpiresAt != nil {
			return E(KindInvariantViolation, "%s not in grace but carries expiry", s.Name)
		}
	}

	// Monotone timestamps per slot.
	for _, s := range []*Slot{&ps.Blue, &ps.Green} {
		if s.DeployedAt != nil && s.PromotedAt != nil && s.PromotedAt.Before(*s.DeployedAt) {
			return E(KindInvariantViolation, "%s promoted before deployed", s.Name)
		}
		if s.PromotedAt != nil && s.RolledBackAt != nil && s.RolledBackAt.Before(*s.PromotedAt) {
			return E(KindInvariantViolation, "%s rolled back before promoted", s.Name)
		}
	}

	return nil
}

// Key returns the canonical "{project}-{environment}" identifier used for
// registry filenames, lock keys, and audit log paths.
func (ps *ProjectSlots) Key() string {
	return fmt.Sprintf("%s-%s", ps.Project, ps.Environment)
}
