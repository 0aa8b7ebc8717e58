package executor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/codeb-dev/codeb/pkg/types"
)

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Cmd("systemctl", "--user", "start", "shop-staging-blue.service"), "systemctl --user start shop-staging-blue.service"},
		{ShellCmd("ss -tlnH | awk '{print $4}'"), "sh -c ss -tlnH | awk '{print $4}'"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCommandArgv(t *testing.T) {
	argv := Cmd("rm", "-f", "/tmp/x").argv()
	if len(argv) != 3 || argv[0] != "rm" {
		t.Errorf("argv = %v", argv)
	}

	shell := ShellCmd("echo hi").argv()
	if len(shell) != 3 || shell[0] != "sh" || shell[1] != "-c" {
		t.Errorf("shell argv = %v", shell)
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "'plain'"},
		{"with space", "'with space'"},
		{"it's", `'it'\''s'`},
	}
	for _, tt := range tests {
		if got := shellQuote(tt.in); got != tt.want {
			t.Errorf("shellQuote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuoteArgv(t *testing.T) {
	got := quoteArgv([]string{"cat", "/opt/codeb/registry/slots/shop-staging.json"})
	want := "'cat' '/opt/codeb/registry/slots/shop-staging.json'"
	if got != want {
		t.Errorf("quoteArgv = %q, want %q", got, want)
	}
}

func TestExitError(t *testing.T) {
	err := exitError(Cmd("systemctl", "--user", "start", "x.service"), Result{Exit: 5, Stderr: "unit not found"})
	if !types.IsKind(err, types.KindNonzeroExit) {
		t.Errorf("kind = %s, want nonzero_exit", types.KindOf(err))
	}
	if !strings.Contains(err.Error(), "exited 5") || !strings.Contains(err.Error(), "unit not found") {
		t.Errorf("error text = %q", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	long := strings.Repeat("x", 20)
	if got := truncate(long, 10); got != strings.Repeat("x", 10)+"..." {
		t.Errorf("truncate long = %q", got)
	}
}

func TestFakeHandlers(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	// Unmatched commands succeed with empty output.
	res, err := f.Run(ctx, "app-01", Cmd("systemctl", "--user", "daemon-reload"))
	if err != nil || res.Exit != 0 {
		t.Fatalf("default: %v %v", res, err)
	}

	f.Handle("is-active", func(string, Command) (Result, error) {
		return Result{Stdout: "active"}, nil
	})
	// Last registration wins.
	f.Handle("is-active", func(string, Command) (Result, error) {
		return Result{Exit: 3, Stdout: "inactive"}, errors.New("inactive")
	})

	res, err = f.Run(ctx, "app-01", Cmd("systemctl", "--user", "is-active", "x.service"))
	if err == nil || res.Exit != 3 {
		t.Errorf("override should win: %v %v", res, err)
	}

	if got := len(f.CommandsMatching("is-active")); got != 1 {
		t.Errorf("recorded %d is-active calls, want 1", got)
	}
}

func TestFakeFiles(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	if _, err := f.ReadFile(ctx, "app-01", "/missing"); !types.IsKind(err, types.KindNotFound) {
		t.Errorf("missing file kind = %s, want not_found", types.KindOf(err))
	}

	if err := f.WriteFile(ctx, "app-01", "/x", []byte("one")); err != nil {
		t.Fatal(err)
	}
	data, err := f.ReadFile(ctx, "app-01", "/x")
	if err != nil || string(data) != "one" {
		t.Errorf("roundtrip = %q, %v", data, err)
	}

	// Files are per server.
	if _, err := f.ReadFile(ctx, "storage-01", "/x"); !types.IsKind(err, types.KindNotFound) {
		t.Error("files must not leak across servers")
	}

	f.RemoveFile("app-01", "/x")
	if _, err := f.ReadFile(ctx, "app-01", "/x"); !types.IsKind(err, types.KindNotFound) {
		t.Error("removed file should be gone")
	}
}

func TestReadFileCmd(t *testing.T) {
	got := readFileCmd("/opt/codeb/registry/ssot.json").String()
	want := "env LC_ALL=C cat /opt/codeb/registry/ssot.json"
	if got != want {
		t.Errorf("readFileCmd = %q, want %q", got, want)
	}
}

func TestMissingFile(t *testing.T) {
	tests := []struct {
		stderr string
		want   bool
	}{
		{"cat: /opt/codeb/registry/ssot.json: No such file or directory", true},
		{"cat: /opt/codeb/registry/ssot.json: Permission denied", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := missingFile(tt.stderr); got != tt.want {
			t.Errorf("missingFile(%q) = %v, want %v", tt.stderr, got, tt.want)
		}
	}
}

func TestFakeFailWrite(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	f.FailWrite("/slots/", errors.New("disk full"))

	if err := f.WriteFile(ctx, "app-01", "/opt/codeb/registry/slots/web-staging.json", []byte("{}")); err == nil {
		t.Error("matching write must fail")
	}
	if err := f.WriteFile(ctx, "app-01", "/opt/codeb/registry/ssot.json", []byte("{}")); err != nil {
		t.Errorf("unmatched write failed: %v", err)
	}
}

func TestLocalRun(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	res, err := l.Run(ctx, "local", Cmd("sh", "-c", "echo hello"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("stdout = %q", res.Stdout)
	}

	_, err = l.Run(ctx, "local", Cmd("sh", "-c", "exit 3"))
	if !types.IsKind(err, types.KindNonzeroExit) {
		t.Errorf("kind = %s, want nonzero_exit", types.KindOf(err))
	}
}
