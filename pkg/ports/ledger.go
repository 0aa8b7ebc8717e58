package ports

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/executor"
	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/metrics"
	"github.com/codeb-dev/codeb/pkg/types"
)

// listenScan enumerates listening TCP ports on the app host. Audited
// literal snippet; the only shell-eval in the ledger.
const listenScan = `ss -tlnH 2>/dev/null | awk '{print $4}'`

// Ledger is the single source of truth for allocated ports. All
// mutations run under one critical section; AllocatePair is linearizable
// across all callers of this process.
type Ledger struct {
	cfg  *config.Config
	exec executor.Executor

	mu sync.Mutex
}

// doc is the on-disk shape of ssot.json.
type doc struct {
	Ports struct {
		Used     []int `json:"used"`
		Reserved []int `json:"reserved"`
	} `json:"ports"`
}

// NewLedger builds the ledger over the shared executor.
func NewLedger(cfg *config.Config, exec executor.Executor) *Ledger {
	return &Ledger{cfg: cfg, exec: exec}
}

func (l *Ledger) load(ctx context.Context) (*doc, error) {
	data, err := l.exec.ReadFile(ctx, l.cfg.AppServer, l.cfg.SSOTPath())
	if err != nil {
		if types.IsKind(err, types.KindNotFound) {
			return &doc{}, nil // first allocation ever
		}
		return nil, err
	}
	var d doc
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, types.Wrap(types.KindInternal, err, "parsing port ledger")
	}
	return &d, nil
}

func (l *Ledger) save(ctx context.Context, d *doc) error {
	sort.Ints(d.Ports.Used)
	sort.Ints(d.Ports.Reserved)
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return types.Wrap(types.KindInternal, err, "encoding port ledger")
	}
	if err := l.exec.WriteFile(ctx, l.cfg.AppServer, l.cfg.SSOTPath(), data); err != nil {
		return err
	}
	gaugeAllocated(d)
	return nil
}

// gaugeAllocated publishes the committed used-port count per environment
// range.
func gaugeAllocated(d *doc) {
	counts := make(map[types.Environment]int, len(types.Environments))
	for _, p := range d.Ports.Used {
		for _, env := range types.Environments {
			if start, end := env.PortRange(); p >= start && p <= end {
				counts[env]++
				break
			}
		}
	}
	for _, env := range types.Environments {
		metrics.PortsAllocated.WithLabelValues(string(env)).Set(float64(counts[env]))
	}
}

// listening returns the live listening-port snapshot from the app host.
// A failed scan degrades to "no extra ports in use": the ledger's own
// record plus deploy-time collision checks still guard allocation.
func (l *Ledger) listening(ctx context.Context) map[int]bool {
	out := make(map[int]bool)
	res, err := l.exec.Run(ctx, l.cfg.AppServer, executor.ShellCmd(listenScan))
	if err != nil {
		logger := log.WithComponent("ports")
		logger.Warn().Err(err).Msg("listening-port scan failed, relying on ledger only")
		return out
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Local address is host:port; take everything after the last colon.
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			continue
		}
		if p, err := strconv.Atoi(line[idx+1:]); err == nil {
			out[p] = true
		}
	}
	return out
}

// AllocatePair reserves the lowest free (even, odd) pair in the
// environment's range and records it in the ledger within the same
// critical section. Fails with port_exhausted when no pair remains.
func (l *Ledger) AllocatePair(ctx context.Context, env types.Environment) (bluePort, greenPort int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, err := l.load(ctx)
	if err != nil {
		return 0, 0, err
	}

	taken := make(map[int]bool, len(d.Ports.Used)+len(d.Ports.Reserved))
	for _, p := range d.Ports.Used {
		taken[p] = true
	}
	for _, p := range d.Ports.Reserved {
		taken[p] = true
	}
	live := l.listening(ctx)

	start, end := env.PortRange()
	for p := start; p+1 <= end; p += 2 {
		if taken[p] || taken[p+1] || live[p] || live[p+1] {
			continue
		}
		d.Ports.Used = append(d.Ports.Used, p, p+1)
		if err := l.save(ctx, d); err != nil {
			// Nothing was committed; the pair stays free.
			return 0, 0, err
		}
		logger := log.WithComponent("ports")
		logger.Info().
			Str("environment", string(env)).
			Int("blue", p).Int("green", p+1).
			Msg("allocated port pair")
		return p, p + 1, nil
	}

	return 0, 0, types.E(types.KindPortExhausted, "no free port pair in %s range %d-%d", env, start, end)
}

// Release removes ports from the used set. Slot cleanup deliberately
// does not call this so pairs stay stable per project; callers are the
// administrator and the deploy compensation for a pair whose document
// never stored.
func (l *Ledger) Release(ctx context.Context, ports []int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, err := l.load(ctx)
	if err != nil {
		return err
	}
	drop := make(map[int]bool, len(ports))
	for _, p := range ports {
		drop[p] = true
	}
	kept := d.Ports.Used[:0]
	for _, p := range d.Ports.Used {
		if !drop[p] {
			kept = append(kept, p)
		}
	}
	d.Ports.Used = kept
	return l.save(ctx, d)
}

// Snapshot returns the current used set.
func (l *Ledger) Snapshot(ctx context.Context) (map[int]bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(d.Ports.Used))
	for _, p := range d.Ports.Used {
		out[p] = true
	}
	return out, nil
}
