package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/codeb-dev/codeb/pkg/config"
	"github.com/codeb-dev/codeb/pkg/log"
	"github.com/codeb-dev/codeb/pkg/types"
)

// Fleet executes commands on the fixed server set. Targets matching the
// control host run locally; everything else goes over SSH. In-flight
// commands per server are bounded by a semaphore so a stuck host cannot
// absorb the whole connection budget.
type Fleet struct {
	cfg *config.Config

	mu      sync.Mutex
	clients map[string]*ssh.Client
	sems    map[string]chan struct{}

	local *Local
}

// NewFleet builds an executor over the configured servers.
func NewFleet(cfg *config.Config) *Fleet {
	return &Fleet{
		cfg:     cfg,
		clients: make(map[string]*ssh.Client),
		sems:    make(map[string]chan struct{}),
		local:   NewLocal(),
	}
}

// Close tears down all cached SSH connections.
func (f *Fleet) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, c := range f.clients {
		c.Close()
		delete(f.clients, name)
	}
	return nil
}

func (f *Fleet) isLocal(server string) bool {
	return server == f.cfg.ControlHost
}

// acquire takes a slot in the per-server semaphore, respecting ctx.
func (f *Fleet) acquire(ctx context.Context, server string) (release func(), err error) {
	f.mu.Lock()
	sem, ok := f.sems[server]
	if !ok {
		n := f.cfg.MaxConcurrentPerHost
		if n <= 0 {
			n = 8
		}
		sem = make(chan struct{}, n)
		f.sems[server] = sem
	}
	f.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, types.Wrap(types.KindTimeout, ctx.Err(), "waiting for command slot on %s", server)
	}
}

// client returns a cached SSH connection to the server, dialing if
// needed.
func (f *Fleet) client(server string) (*ssh.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[server]; ok {
		return c, nil
	}

	srv, ok := f.cfg.Servers[server]
	if !ok {
		return nil, types.E(types.KindTransport, "unknown server %q", server)
	}

	key, err := os.ReadFile(f.cfg.SSHKeyPath)
	if err != nil {
		return nil, types.Wrap(types.KindTransport, err, "reading ssh key")
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, types.Wrap(types.KindTransport, err, "parsing ssh key")
	}

	port := srv.Port
	if port == 0 {
		port = 22
	}
	clientCfg := &ssh.ClientConfig{
		User:            srv.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // fleet hosts are pinned by IP in config
		Timeout:         10 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", srv.Host, port)
	c, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return nil, types.Wrap(types.KindTransport, err, "dialing %s (%s)", server, addr)
	}

	f.clients[server] = c
	return c, nil
}

// dropClient discards a cached connection after a transport failure so
// the next call redials.
func (f *Fleet) dropClient(server string) {
	f.mu.Lock()
	if c, ok := f.clients[server]; ok {
		c.Close()
		delete(f.clients, server)
	}
	f.mu.Unlock()
}

// Run implements Executor.
func (f *Fleet) Run(ctx context.Context, server string, cmd Command) (Result, error) {
	if f.isLocal(server) {
		return f.local.Run(ctx, server, cmd)
	}

	release, err := f.acquire(ctx, server)
	if err != nil {
		return Result{}, err
	}
	defer release()

	client, err := f.client(server)
	if err != nil {
		return Result{}, err
	}

	sess, err := client.NewSession()
	if err != nil {
		f.dropClient(server)
		return Result{}, types.Wrap(types.KindTransport, err, "opening session on %s", server)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	if len(cmd.Stdin) > 0 {
		sess.Stdin = bytes.NewReader(cmd.Stdin)
	}

	start := time.Now()
	line := quoteArgv(cmd.argv())

	done := make(chan error, 1)
	go func() { done <- sess.Run(line) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		// Best-effort kill; the session close tears down the remote
		// process for non-interactive commands.
		_ = sess.Signal(ssh.SIGKILL)
		sess.Close()
		<-done
		return Result{
			Exit:     -1,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: time.Since(start),
		}, types.Wrap(types.KindTimeout, ctx.Err(), "command on %s: %s", server, cmd.String())
	}

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			res.Exit = exitErr.ExitStatus()
			return res, exitError(cmd, res)
		}
		f.dropClient(server)
		return res, types.Wrap(types.KindTransport, err, "running on %s: %s", server, cmd.String())
	}

	logger := log.WithComponent("executor")
	logger.Debug().
		Str("server", server).
		Str("cmd", cmd.Name).
		Dur("duration", res.Duration).
		Msg("command completed")
	return res, nil
}

// ReadFile implements Executor.
func (f *Fleet) ReadFile(ctx context.Context, server, path string) ([]byte, error) {
	if f.isLocal(server) {
		return f.local.ReadFile(ctx, server, path)
	}
	res, err := f.Run(ctx, server, readFileCmd(path))
	if err != nil {
		if types.IsKind(err, types.KindNonzeroExit) && missingFile(res.Stderr) {
			return nil, types.Wrap(types.KindNotFound, err, "reading %s", path)
		}
		return nil, err
	}
	return []byte(res.Stdout), nil
}

// readFileCmd reads a remote file. LC_ALL=C pins cat's diagnostics so
// missing-file detection does not depend on the host's locale.
func readFileCmd(path string) Command {
	return Cmd("env", "LC_ALL=C", "cat", path)
}

// missingFile reports whether a failed read's diagnostics name a path
// that does not exist.
func missingFile(stderr string) bool {
	return strings.Contains(stderr, "No such file")
}

// WriteFile implements Executor. The write lands in path.tmp first and is
// renamed into place so concurrent readers never observe a partial file.
func (f *Fleet) WriteFile(ctx context.Context, server, path string, data []byte) error {
	if f.isLocal(server) {
		return f.local.WriteFile(ctx, server, path, data)
	}
	tmp := path + ".tmp"
	write := Command{Name: "sh", Args: []string{"-c", fmt.Sprintf("cat > %s && mv %s %s", shellQuote(tmp), shellQuote(tmp), shellQuote(path))}, Stdin: data}
	if _, err := f.Run(ctx, server, write); err != nil {
		return err
	}
	return nil
}

// MkdirAll implements Executor.
func (f *Fleet) MkdirAll(ctx context.Context, server, path string) error {
	if f.isLocal(server) {
		return f.local.MkdirAll(ctx, server, path)
	}
	_, err := f.Run(ctx, server, Cmd("mkdir", "-p", path))
	return err
}
