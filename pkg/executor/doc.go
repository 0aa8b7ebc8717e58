/*
Package executor provides the remote command primitive the engines drive
the fleet with.

Every interaction with a server reduces to four operations on the
Executor interface: run a command, read a file, write a file atomically,
make a directory. Engines stay ignorant of the transport; tests
substitute the in-memory Fake.

# Fleet Topology

The fleet is a fixed named set of servers (app-01, stream-01, storage-01,
backup-01) from pkg/config. A command whose target is the host the
control plane runs on executes locally through os/exec; everything else
rides an SSH session:

	Engine ──► Executor.Run("app-01", Cmd("systemctl", "--user", "start", unit))
	              │
	              ├── target == control host ──► os/exec
	              └── otherwise ──────────────► ssh session (cached client)

Connections are cached per server and redialed after transport failures.
In-flight commands per server are bounded (default 8) by a semaphore so
one wedged host cannot exhaust the connection budget.

# Typed Commands

Command carries an executable name and argument list; arguments are
shell-quoted individually at the transport boundary, never interpolated
into a command string. ShellCmd exists for the few audited literal
pipelines (the listening-port scan) and is the only shell-eval path.

# Failure Taxonomy

Run fails with exactly one of three kinds: transport (dial, auth, i/o),
timeout (context deadline, with a best-effort remote kill), or
nonzero_exit (carrying the exit code and truncated output). The executor
never retries; retrying is the caller's policy decision, and mutating
steps are never retried anywhere in the control plane.

WriteFile lands in path.tmp and renames into place, so concurrent readers
of registries never observe partial writes.
*/
package executor
