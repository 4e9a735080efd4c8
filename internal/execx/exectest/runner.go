// Package exectest provides a scripted execx.Runner for tests.
package exectest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"gpustack/internal/execx"
)

// Response is a canned reply for one command line
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Err is returned as-is when set, e.g. to simulate a missing binary.
	Err error
}

// Runner replays scripted responses keyed by the full command line.
// A key with several queued responses pops them in order and repeats the
// last one once the queue is drained.
type Runner struct {
	mu        sync.Mutex
	responses map[string][]Response
	paths     map[string]string
	calls     []string
}

// NewRunner creates an empty scripted runner
func NewRunner() *Runner {
	return &Runner{
		responses: make(map[string][]Response),
		paths:     make(map[string]string),
	}
}

// On queues responses for a command line such as "docker --version"
func (r *Runner) On(commandLine string, responses ...Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[commandLine] = append(r.responses[commandLine], responses...)
	return r
}

// WithPath makes LookPath succeed for name
func (r *Runner) WithPath(name, path string) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths[name] = path
	return r
}

// Run implements execx.Runner
func (r *Runner) Run(_ context.Context, name string, args ...string) (execx.Result, error) {
	line := execx.CommandLine(name, args...)

	r.mu.Lock()
	r.calls = append(r.calls, line)
	queue, ok := r.responses[line]
	var resp Response
	if ok && len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			r.responses[line] = queue[1:]
		}
	}
	r.mu.Unlock()

	if !ok {
		return execx.Result{ExitCode: -1}, fmt.Errorf("%s: %w", name, execx.ErrNotFound)
	}
	if resp.Err != nil {
		return execx.Result{ExitCode: -1}, resp.Err
	}

	res := execx.Result{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode}
	if resp.ExitCode != 0 {
		return res, &execx.ExitError{Command: line, Code: resp.ExitCode, Output: res.Output()}
	}
	return res, nil
}

// Stream implements execx.Streamer by writing the scripted output to the writers
func (r *Runner) Stream(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) (execx.Result, error) {
	res, err := r.Run(ctx, name, args...)
	if stdout != nil {
		_, _ = io.WriteString(stdout, res.Stdout)
	}
	if stderr != nil {
		_, _ = io.WriteString(stderr, res.Stderr)
	}
	return res, err
}

// LookPath implements execx.Runner
func (r *Runner) LookPath(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.paths[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%s: %w", name, execx.ErrNotFound)
}

// Calls returns every command line run so far
func (r *Runner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// CountPrefix counts calls starting with prefix
func (r *Runner) CountPrefix(prefix string) int {
	n := 0
	for _, c := range r.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}
