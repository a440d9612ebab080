// Package execx runs the external programs sysextctl drives (losetup, mount,
// umount, systemd-sysext, eject, lsblk). Success or failure is decided by the
// exit status only; stdout is returned for the few callers that parse it.
package execx

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Runner executes a program and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RealRunner implements Runner with os/exec.
type RealRunner struct{}

// NewRealRunner creates a new RealRunner.
func NewRealRunner() *RealRunner {
	return &RealRunner{}
}

// Run executes name with args. A non-zero exit status is returned as an error
// carrying the command line and trimmed stderr.
func (r *RealRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return stdout.Bytes(), fmt.Errorf("%s: %w", CommandLine(name, args), err)
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w: %s", CommandLine(name, args), err, msg)
	}

	return stdout.Bytes(), nil
}

// CommandLine renders name and args the way they would be typed.
func CommandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// Call records one invocation made through a FakeRunner.
type Call struct {
	Name string
	Args []string
}

// String renders the call as a command line.
func (c Call) String() string {
	return CommandLine(c.Name, c.Args)
}

// HandlerFunc scripts the result of a faked program.
type HandlerFunc func(args []string) ([]byte, error)

// FakeRunner implements Runner for tests. Programs without a handler succeed
// with empty output.
type FakeRunner struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	calls    []Call
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{handlers: make(map[string]HandlerFunc)}
}

// Handle registers fn as the behaviour of program name.
func (r *FakeRunner) Handle(name string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Run records the call and dispatches to the registered handler.
func (r *FakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Name: name, Args: append([]string(nil), args...)})
	fn := r.handlers[name]
	r.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(args)
}

// Calls returns a copy of all recorded calls, in order.
func (r *FakeRunner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns the recorded calls to program name, in order.
func (r *FakeRunner) CallsTo(name string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
