/*
Package types defines the core data structures shared across the CodeB
control plane.

This package contains the domain model for Blue-Green slot deployments,
the team/token authorization entities, the audit event record, and the
typed error taxonomy. All components (executor, registries, engines,
transport) exchange these types rather than defining their own.

# Slot Model

Every (project, environment) pair owns exactly two slots, blue and green,
described by a single ProjectSlots document:

	┌──────────────── ProjectSlots (web, production) ─────────────┐
	│  active_slot: blue                                           │
	│                                                              │
	│  ┌───────── blue ─────────┐   ┌───────── green ────────┐    │
	│  │ state:   active        │   │ state:   deployed      │    │
	│  │ port:    4000          │   │ port:    4001          │    │
	│  │ version: sha-aaa       │   │ version: sha-bbb       │    │
	│  └────────────────────────┘   └────────────────────────┘    │
	└──────────────────────────────────────────────────────────────┘

Slot states form a small machine:

	empty → deployed → active → grace → empty
	                     ▲         │
	                     └─────────┘  (rollback)

Ports are allocated once per pair and never move: blue holds the even
port, green the odd, drawn from the environment's range (staging
3000-3499, production 4000-4499, preview 5000-5999).

# Invariants

ProjectSlots.Validate enforces the document invariants on every store:
port disjointness and range membership, at most one active and one grace
slot, active-slot consistency, grace expiry discipline, and monotone
per-slot timestamps. A validation failure here is an engine bug, not bad
input, and surfaces as an invariant_violation error.

# Authorization Model

A Team owns projects and issues Tokens. A token is the member identity;
its Role (viewer < member < admin < owner) gates capabilities through
Role.Allows, and its optional project scope restricts which of the team's
projects it may touch. AuthContext is the resolved identity attached to a
request after authentication.

# Errors

Error carries an ErrorKind from the control plane's taxonomy
(unauthenticated, forbidden, target_busy, port_exhausted, ...). KindOf
recovers the kind from a wrapped chain so the HTTP transport can map it
to a status code without string matching.
*/
package types
