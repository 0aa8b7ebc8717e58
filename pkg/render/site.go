package render

import (
	"fmt"
	"strings"

	"github.com/codeb-dev/codeb/pkg/types"
)

// SiteIntent describes which slot a (project, environment) domain should
// route to. Promote and rollback both reduce to rendering one of these
// and writing it over the previous site file.
type SiteIntent struct {
	Project     string
	Environment types.Environment
	Domain      string // full site domain
	Slot        types.SlotName
	Port        int
	Version     string
}

// CaddySite renders the Caddy site block routing the domain to the
// slot's port, with compression, security headers, a JSON access log,
// and identifying metadata headers.
func CaddySite(in SiteIntent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s {\n", in.Domain)
	fmt.Fprintf(&b, "\tencode gzip zstd\n")
	fmt.Fprintf(&b, "\n\theader {\n")
	fmt.Fprintf(&b, "\t\tX-Content-Type-Options \"nosniff\"\n")
	fmt.Fprintf(&b, "\t\tX-Frame-Options \"DENY\"\n")
	fmt.Fprintf(&b, "\t\tReferrer-Policy \"strict-origin-when-cross-origin\"\n")
	fmt.Fprintf(&b, "\t\tStrict-Transport-Security \"max-age=31536000; includeSubDomains\"\n")
	fmt.Fprintf(&b, "\t\tX-CodeB-Project \"%s\"\n", in.Project)
	fmt.Fprintf(&b, "\t\tX-CodeB-Environment \"%s\"\n", in.Environment)
	fmt.Fprintf(&b, "\t\tX-CodeB-Version \"%s\"\n", in.Version)
	fmt.Fprintf(&b, "\t\tX-CodeB-Slot \"%s\"\n", in.Slot)
	fmt.Fprintf(&b, "\t}\n")
	fmt.Fprintf(&b, "\n\tlog {\n")
	fmt.Fprintf(&b, "\t\toutput file /var/log/caddy/%s-%s.access.json\n", in.Project, in.Environment)
	fmt.Fprintf(&b, "\t\tformat json\n")
	fmt.Fprintf(&b, "\t}\n")
	fmt.Fprintf(&b, "\n\treverse_proxy localhost:%d\n", in.Port)
	fmt.Fprintf(&b, "}\n")
	return b.String()
}

// SitePort extracts the reverse_proxy port from a rendered site file.
// Used by status and reconcile to detect registry/proxy divergence; a
// file this function cannot parse counts as divergent.
func SitePort(site []byte) (int, bool) {
	for _, line := range strings.Split(string(site), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "reverse_proxy") {
			continue
		}
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			return 0, false
		}
		var port int
		if _, err := fmt.Sscanf(line[idx+1:], "%d", &port); err != nil {
			return 0, false
		}
		return port, true
	}
	return 0, false
}
