package executor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/codeb-dev/codeb/pkg/types"
)

// Local executes commands on the host running the control plane,
// bypassing the SSH transport entirely.
type Local struct{}

// NewLocal returns a local executor.
func NewLocal() *Local { return &Local{} }

// Run implements Executor.
func (l *Local) Run(ctx context.Context, server string, cmd Command) (Result, error) {
	argv := cmd.argv()
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if len(cmd.Stdin) > 0 {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}

	start := time.Now()
	err := c.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctx.Err() != nil {
		res.Exit = -1
		return res, types.Wrap(types.KindTimeout, ctx.Err(), "local command: %s", cmd.String())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.Exit = exitErr.ExitCode()
			return res, exitError(cmd, res)
		}
		return res, types.Wrap(types.KindTransport, err, "local command: %s", cmd.String())
	}
	return res, nil
}

// ReadFile implements Executor.
func (l *Local) ReadFile(ctx context.Context, server, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.Wrap(types.KindNotFound, err, "reading %s", path)
		}
		return nil, types.Wrap(types.KindTransport, err, "reading %s", path)
	}
	return data, nil
}

// WriteFile implements Executor with the same temp+rename discipline as
// the remote path.
func (l *Local) WriteFile(ctx context.Context, server, path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return types.Wrap(types.KindTransport, err, "writing %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return types.Wrap(types.KindTransport, err, "renaming %s", tmp)
	}
	return nil
}

// MkdirAll implements Executor.
func (l *Local) MkdirAll(ctx context.Context, server, path string) error {
	if err := os.MkdirAll(filepath.Clean(path), 0o755); err != nil {
		return types.Wrap(types.KindTransport, err, "mkdir %s", path)
	}
	return nil
}
