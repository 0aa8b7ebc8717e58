/*
Package registry persists the per-(project, environment) slot documents.

Each pair owns one JSON file at
{base}/registry/slots/{project}-{environment}.json describing both slots,
the active slot, and lifecycle timestamps. The filename is a pure
function of validated identifiers, so collisions cannot happen.

Save rechecks every document invariant (pkg/types ProjectSlots.Validate)
before writing and refuses violations — the registry never commits a
state the engines could not have produced. Writes go through the
executor's temp-file+rename path, so concurrent readers always see a
complete document.

The document does not exist until the first deploy, and Load reports
not_found for it; both-slots-empty documents are never written.
*/
package registry
