/*
Package team implements teams, API tokens, and every authorization
decision of the control plane.

A token is the member identity; there is no separate user record. Secrets
present as codeb_{role}_{base64url(32 bytes)} and only the SHA-256 of the
whole presented string is stored. Authentication walks the token set with
constant-time hash comparison, rejects revoked and expired tokens with
unauthenticated (never forbidden — an unproven caller has no identity to
be forbidden as), and resolves an AuthContext carrying the token's role
and effective project scope.

# Role Hierarchy

	viewer < member < admin < owner

	capability                          minimum role
	──────────────────────────────────  ────────────
	read status / audit log             viewer
	deploy, promote, rollback, cleanup  member
	invite members, issue tokens        admin
	team settings, delete team          owner

Token issuance can never escalate: a token is refused if its role would
exceed the issuer's. Exactly one owner token exists per team, minted at
Bootstrap and irrevocable.

# Scoping

AllowedProject gates every slot operation twice: the team must own the
project, and non-owner tokens must carry it in their scope (an empty
scope means all team projects). Authorization always runs before lock
acquisition so forbidden callers cannot stall valid targets.

The registry persists as {base}/config/teams.json with top-level teams
and tokens maps; all read-modify-write sequences are serialized under one
mutex. Last-used stamps are written behind the request, best effort.
*/
package team
