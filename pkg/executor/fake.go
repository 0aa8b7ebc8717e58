package executor

import (
	"context"
	"strings"
	"sync"

	"github.com/codeb-dev/codeb/pkg/types"
)

// Fake is an in-memory Executor for tests. Files live in a per-server
// map; commands are recorded and answered by registered handlers, with
// unmatched commands succeeding with empty output.
type Fake struct {
	mu         sync.Mutex
	files      map[string]map[string][]byte // server -> path -> data
	handlers   []fakeHandler
	writeFails []fakeWriteFail
	Commands   []FakeCall
}

type fakeWriteFail struct {
	substr string
	err    error
}

// FakeCall records one executed command.
type FakeCall struct {
	Server string
	Cmd    Command
}

type fakeHandler struct {
	match func(server string, cmd Command) bool
	fn    func(server string, cmd Command) (Result, error)
}

// NewFake returns an empty fake executor.
func NewFake() *Fake {
	return &Fake{files: make(map[string]map[string][]byte)}
}

// Handle registers a handler for commands whose rendered string contains
// the given substring.
func (f *Fake) Handle(substr string, fn func(server string, cmd Command) (Result, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, fakeHandler{
		match: func(server string, cmd Command) bool {
			return strings.Contains(cmd.String(), substr)
		},
		fn: fn,
	})
}

// Fail makes every command containing substr fail with the given error.
func (f *Fake) Fail(substr string, err error) {
	f.Handle(substr, func(string, Command) (Result, error) {
		return Result{Exit: 1}, err
	})
}

// Run implements Executor.
func (f *Fake) Run(ctx context.Context, server string, cmd Command) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{Exit: -1}, types.Wrap(types.KindTimeout, err, "fake: %s", cmd.String())
	}
	f.mu.Lock()
	f.Commands = append(f.Commands, FakeCall{Server: server, Cmd: cmd})
	handlers := make([]fakeHandler, len(f.handlers))
	copy(handlers, f.handlers)
	f.mu.Unlock()

	// Last registration wins, so tests can override earlier scripting.
	for i := len(handlers) - 1; i >= 0; i-- {
		if handlers[i].match(server, cmd) {
			return handlers[i].fn(server, cmd)
		}
	}
	return Result{}, nil
}

// ReadFile implements Executor.
func (f *Fake) ReadFile(ctx context.Context, server, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[server][path]
	if !ok {
		return nil, types.E(types.KindNotFound, "fake: no file %s on %s", path, server)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// FailWrite makes WriteFile fail for any path containing substr.
func (f *Fake) FailWrite(substr string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeFails = append(f.writeFails, fakeWriteFail{substr: substr, err: err})
}

// WriteFile implements Executor.
func (f *Fake) WriteFile(ctx context.Context, server, path string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.writeFails) - 1; i >= 0; i-- {
		if strings.Contains(path, f.writeFails[i].substr) {
			return f.writeFails[i].err
		}
	}
	if f.files[server] == nil {
		f.files[server] = make(map[string][]byte)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	f.files[server][path] = stored
	return nil
}

// MkdirAll implements Executor.
func (f *Fake) MkdirAll(ctx context.Context, server, path string) error { return nil }

// File returns the current contents of a fake file, or nil.
func (f *Fake) File(server, path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[server][path]
}

// RemoveFile deletes a fake file.
func (f *Fake) RemoveFile(server, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files[server], path)
}

// CommandsMatching returns recorded calls whose rendered command contains
// the substring.
func (f *Fake) CommandsMatching(substr string) []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []FakeCall
	for _, c := range f.Commands {
		if strings.Contains(c.Cmd.String(), substr) {
			out = append(out, c)
		}
	}
	return out
}
