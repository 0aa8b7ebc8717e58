package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/executor"
	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/types"
)

// Log is the append-only audit trail. One JSONL file exists per
// (operation, project, environment); lines are never rewritten.
type Log struct {
	cfg  *config.Config
	exec executor.Executor

	mu sync.Mutex
}

// NewLog builds the audit log over the shared executor.
func NewLog(cfg *config.Config, exec executor.Executor) *Log {
	return &Log{cfg: cfg, exec: exec}
}

// Append writes one event. IDs and timestamps are stamped here if the
// caller left them zero. Append failures are logged but not returned as
// operation failures: a deploy that succeeded is not un-deployed because
// the audit write raced a full disk — it is, however, loudly logged.
func (l *Log) Append(ctx context.Context, ev types.AuditEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	if err := l.append(ctx, ev); err != nil {
		logger := log.WithComponent("audit")
		logger.Error().Err(err).
			Str("event", string(ev.Type)).
			Str("project", ev.Project).
			Msg("audit append failed")
	}
}

func (l *Log) append(ctx context.Context, ev types.AuditEvent) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}

	p := l.cfg.AuditLogPath(ev.Type, ev.Project, ev.Environment)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.exec.MkdirAll(ctx, l.cfg.AppServer, path.Dir(p)); err != nil {
		return err
	}
	// Appending must not truncate-and-rewrite: the log is append-only by
	// contract, and >> keeps concurrent readers safe on a line boundary.
	cmd := executor.Command{
		Name:  "sh",
		Args:  []string{"-c", fmt.Sprintf("cat >> %s", shellQuote(p))},
		Stdin: append(line, '\n'),
	}
	_, err = l.exec.Run(ctx, l.cfg.AppServer, cmd)
	return err
}

// Read returns the events of one operation type for a
// (project, environment), oldest first. Limit 0 means all.
func (l *Log) Read(ctx context.Context, op types.EventType, project string, env types.Environment, limit int) ([]types.AuditEvent, error) {
	p := l.cfg.AuditLogPath(op, project, env)
	data, err := l.exec.ReadFile(ctx, l.cfg.AppServer, p)
	if err != nil {
		if types.IsKind(err, types.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var out []types.AuditEvent
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev types.AuditEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue // a torn trailing line; skip, never fail the read
		}
		out = append(out, ev)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
