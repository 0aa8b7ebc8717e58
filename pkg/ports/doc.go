/*
Package ports maintains the SSOT port ledger for the fleet.

Every slot pair owns two adjacent ports, blue even and green odd, drawn
from the environment's range:

	staging     3000-3499
	production  4000-4499
	preview     5000-5999

The ledger persists as {base}/registry/ssot.json with ports.used and
ports.reserved arrays. AllocatePair scans the range ascending and takes
the first pair absent from used, reserved, and the live listening-port
snapshot of the app host; the pair is written back inside the same
critical section, so a crash between pick and persist leaves nothing
half-reserved.

The listening scan is advisory: if the transport cannot enumerate ports,
allocation proceeds on the ledger's own record alone.

Cleanup never releases ports — pairs stay stable for the life of a
project so its URLs and unit files never churn. Release exists as a
separate administrative operation.
*/
package ports
