/*
Package config holds the explicit configuration of the CodeB control
plane and the path derivations for everything it persists.

Configuration is loaded once at startup (YAML file plus CODEB_*
environment overrides) and passed to every component; nothing reads
ambient globals. Validate refuses to run with missing required fields
instead of defaulting silently.

Path helpers (SlotRegistryPath, UnitPath, SitePath, ...) are the single
source of truth for the on-host layout:

	{base}/registry/slots/{project}-{environment}.json
	{base}/registry/ssot.json
	{base}/config/teams.json
	{base}/logs/{op}/{project}-{environment}.jsonl
	{base}/projects/{project}/.config/containers/systemd/{project}-{environment}-{slot}.container
	{proxy_sites}/{project}-{environment}.site
	{base}/projects/{project}/.env.{environment}

All identifiers flowing into these paths are validated against the tight
character classes in pkg/types before use.
*/
package config
