/*
Package control is the policy layer between the transport and the slot
engines.

Every request passes through the same gate, in the same order:

	authorize (capability matrix + project scope)
	    │
	acquire per-(project, environment) lock   ── mutations only
	    │
	apply per-operation deadline
	    │
	engine call

Authorization runs before the lock so a forbidden caller never learns
whether an operation is in flight, and a denied request never queues.
Denials increment a counter and land in the audit log with the denied
operation as the reason.

Locking is per pair, not global: deploys to different projects proceed
in parallel, while two deploys to the same pair serialize. A caller that
cannot take the lock inside the configured wait gets busy and retries.

The Scanner shares the controller's lock table and sweeps all
registries on an interval, reclaiming grace slots whose window elapsed.
Pairs busy with a live operation are skipped, never waited on.
*/
package control
