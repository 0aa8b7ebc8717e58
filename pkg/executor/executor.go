package executor

import (
	"context"
	"strings"
	"time"

	"github.com/codeb-dev/codeb/pkg/types"
)

// Command is a typed remote command: an executable name plus an argument
// list, optionally with stdin bytes. Arguments are never interpolated
// into a shell string unless Shell is set, which is reserved for
// well-audited literal snippets (pipelines like the listening-port scan).
type Command struct {
	Name  string
	Args  []string
	Stdin []byte

	// Shell, when non-empty, is passed verbatim to `sh -c`. Name and
	// Args must be empty in that case.
	Shell string
}

// Cmd builds an argv-style command.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// ShellCmd builds a shell-eval command from a literal snippet.
func ShellCmd(script string) Command {
	return Command{Shell: script}
}

// String renders the command for logs.
func (c Command) String() string {
	if c.Shell != "" {
		return "sh -c " + c.Shell
	}
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// argv returns the final argument vector to execute.
func (c Command) argv() []string {
	if c.Shell != "" {
		return []string{"sh", "-c", c.Shell}
	}
	return append([]string{c.Name}, c.Args...)
}

// Result is the outcome of a completed command. A non-zero exit is
// reported through the returned error, not here; Result always carries
// whatever output was captured.
type Result struct {
	Exit     int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Executor runs commands and moves files on a named server of the fleet.
// Implementations never retry; retry policy belongs to callers.
type Executor interface {
	// Run executes the command on the named server, honoring ctx for
	// cancellation and deadline. Failure kinds: transport, timeout,
	// nonzero_exit.
	Run(ctx context.Context, server string, cmd Command) (Result, error)

	// ReadFile returns the contents of a remote file.
	ReadFile(ctx context.Context, server, path string) ([]byte, error)

	// WriteFile writes data atomically: to path.tmp, then rename.
	WriteFile(ctx context.Context, server, path string, data []byte) error

	// MkdirAll creates the directory and its parents.
	MkdirAll(ctx context.Context, server, path string) error
}

// truncate keeps error payloads readable; full output stays in Result.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// exitError builds the nonzero_exit error carrying code and truncated
// output.
func exitError(cmd Command, res Result) error {
	return types.E(types.KindNonzeroExit, "%s exited %d: %s",
		cmd.String(), res.Exit, truncate(strings.TrimSpace(res.Stderr+" "+res.Stdout), 512))
}

// shellQuote quotes a string for safe embedding in a POSIX shell word.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// quoteArgv renders an argv as a shell line for transports that only
// accept a command string (SSH sessions).
func quoteArgv(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		parts[i] = shellQuote(a)
	}
	return strings.Join(parts, " ")
}
