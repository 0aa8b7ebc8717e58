package audit

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/executor"
	"github.com/codeb-dev/codeb/pkg/types"
)

func testLog(t *testing.T) (*Log, *executor.Fake, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.BaseDomain = "codeb.dev"
	cfg.Servers = map[string]config.Server{"app-01": {Host: "10.0.0.10", User: "deploy"}}
	fake := executor.NewFake()
	return NewLog(cfg, fake), fake, cfg
}

func TestAppendStampsAndWrites(t *testing.T) {
	l, fake, _ := testLog(t)

	l.Append(context.Background(), types.AuditEvent{
		Type:        types.EventDeploy,
		Project:     "shop",
		Environment: types.EnvStaging,
		ToSlot:      types.SlotBlue,
		ToVersion:   "v1",
		Success:     true,
	})

	calls := fake.CommandsMatching("cat >>")
	if len(calls) != 1 {
		t.Fatalf("got %d append commands, want 1", len(calls))
	}
	if !strings.Contains(calls[0].Cmd.String(), "shop-staging.jsonl") {
		t.Errorf("append path wrong: %s", calls[0].Cmd.String())
	}

	var ev types.AuditEvent
	if err := json.Unmarshal(calls[0].Cmd.Stdin, &ev); err != nil {
		t.Fatalf("appended line must be one JSON object: %v", err)
	}
	if ev.ID == "" || ev.Timestamp.IsZero() {
		t.Error("Append must stamp id and timestamp")
	}
	if ev.ToVersion != "v1" || !ev.Success {
		t.Errorf("event = %+v", ev)
	}
	if !strings.HasSuffix(string(calls[0].Cmd.Stdin), "\n") {
		t.Error("JSONL lines must end with a newline")
	}
}

func TestReadParsesLog(t *testing.T) {
	l, fake, cfg := testLog(t)
	ctx := context.Background()

	lines := []string{
		`{"id":"1","event":"promote","project":"shop","environment":"staging","to_slot":"blue","success":true}`,
		`{"id":"2","event":"promote","project":"shop","environment":"staging","to_slot":"green","success":true}`,
		``,
		`{"id":"3","event":"promote","pro`, // torn tail from a crash mid-append
	}
	path := cfg.AuditLogPath(types.EventPromote, "shop", types.EnvStaging)
	if err := fake.WriteFile(ctx, cfg.AppServer, path, []byte(strings.Join(lines, "\n"))); err != nil {
		t.Fatal(err)
	}

	events, err := l.Read(ctx, types.EventPromote, "shop", types.EnvStaging, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 (torn line skipped)", len(events))
	}
	if events[0].ID != "1" || events[1].ID != "2" {
		t.Error("events must come back oldest first")
	}

	// Limit keeps the most recent entries.
	events, err = l.Read(ctx, types.EventPromote, "shop", types.EnvStaging, 1)
	if err != nil || len(events) != 1 || events[0].ID != "2" {
		t.Errorf("limited read = %+v, %v", events, err)
	}
}

func TestReadMissingLog(t *testing.T) {
	l, _, _ := testLog(t)

	events, err := l.Read(context.Background(), types.EventRollback, "ghost", types.EnvStaging, 0)
	if err != nil || events != nil {
		t.Errorf("missing log = %v, %v; want nil, nil", events, err)
	}
}
