/*
Package engine implements the Blue-Green slot operations.

Each (project, environment) owns two slots; exactly one serves traffic.
The engines move slots through their lifecycle:

	┌─────────┐  deploy   ┌──────────┐  promote  ┌────────┐
	│  empty  │──────────►│ deployed │──────────►│ active │
	└─────────┘           └──────────┘           └────────┘
	     ▲                      ▲                     │ promote
	     │ cleanup              │ rollback            ▼ (sibling)
	     │ (expired/forced)     │                ┌────────┐
	     └───────────────────────────────────────│ grace  │
	                                             └────────┘

Deploy prepares the inactive slot end to end — Quadlet unit written,
unit manager reloaded, container started, /health polled — and never
touches the proxy; that separation is what makes rollback instant later.
Promote renders the Caddy site for the deployed slot, reloads the proxy,
and swaps active/grace in the registry in one locked sequence. Rollback
repoints the proxy at the still-running grace slot. Cleanup reclaims
slots whose grace window elapsed.

Failure discipline: the registry is only advanced on explicit success. A
deploy that dies after writing its unit compensates by stopping the
service and deleting the unit; a promote that dies between proxy reload
and registry store leaves a detectable divergence that Status and
Reconcile report (and a re-promote repairs) but nothing repairs silently.

Every mutating operation appends an audit event with per-step timings;
deploy responses carry the full step trace so operators can see exactly
where a failed deploy stopped.

The engines assume the control loop already authorized the caller and
holds the per-(project, environment) lock; they contain no locking of
their own beyond what their collaborators provide.
*/
package engine
