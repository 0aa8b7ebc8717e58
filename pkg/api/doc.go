/*
Package api is the HTTP surface of the control plane: one POST /
endpoint dispatching tool envelopes, /healthz, and /metrics.

The envelope is deliberately small:

	request:  { "tool": "deploy", "params": { ... } }
	response: { "success": true,  "tool": "deploy", "result": { ... } }
	          { "success": false, "tool": "deploy", "error": "...", "code": "target_busy" }

Callers authenticate with the raw token secret in Authorization: Bearer
(or X-CodeB-Token). The secret never appears in responses except at the
moment of issuance (team_create, token_create).

Error kinds map onto HTTP status: 401 unauthenticated, 403 forbidden
and role escalation, 404 unknown tool or entity, 400 validation, 409
every state refusal (busy, target busy, not deployed, no previous
version, unhealthy, port exhausted, health timeout), 500 everything
infrastructural.

All policy lives below this package: the server decodes, authenticates,
and encodes. Authorization, locking, and deadlines are the control
package's job.
*/
package api
