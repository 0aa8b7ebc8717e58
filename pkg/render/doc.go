/*
Package render turns typed intents into the external collaborators'
config text.

The engines never assemble Quadlet or Caddy syntax themselves: they build
a SlotIntent (which container should run where, on which port, under
which labels) or a SiteIntent (which slot a domain routes to), and the
renderers here produce the exact file bytes. Renderers are pure functions
with no state and no I/O, which keeps them trivially table-testable and
makes promote idempotence a byte comparison.

SitePort parses a rendered site back into its routing port; it is how
status and reconcile decide whether the proxy and the registry agree on
who is serving traffic.
*/
package render
