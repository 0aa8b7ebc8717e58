/*
Package audit maintains the append-only record of every mutating
operation.

Events land as JSON lines in {base}/logs/{op}/{project}-{environment}.jsonl
and are never rewritten; the audit trail, not the registries, is the
source of truth for change history. Within a (project, environment) the
control loop serializes operations, so each successful call's event
precedes the next call's read.

Append is deliberately non-fatal: a deployment that completed is not
reported failed because its audit line raced a full disk. Failures are
logged at error level instead.
*/
package audit
