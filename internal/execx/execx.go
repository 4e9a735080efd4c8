// Package execx runs the external CLIs (docker, nvidia-smi, ollama) the
// setup flow depends on behind a single interface so callers can be tested
// without the real binaries.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Result captures the outcome of one external command
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output returns trimmed stderr when present, otherwise trimmed stdout.
func (r Result) Output() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// Runner invokes external commands
type Runner interface {
	// Run executes name with args and waits for it to exit. A non-zero exit
	// is reported as an *ExitError alongside the populated Result.
	Run(ctx context.Context, name string, args ...string) (Result, error)
	// LookPath reports the resolved path of an executable.
	LookPath(name string) (string, error)
}

// Streamer is implemented by runners that can copy output to writers while
// the command is still running, e.g. for download progress.
type Streamer interface {
	Stream(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) (Result, error)
}

// RunStreaming runs the command through r's Streamer when it has one.
// Otherwise the captured output is written once the command exits.
func RunStreaming(ctx context.Context, r Runner, stdout, stderr io.Writer, name string, args ...string) (Result, error) {
	if s, ok := r.(Streamer); ok {
		return s.Stream(ctx, stdout, stderr, name, args...)
	}
	res, err := r.Run(ctx, name, args...)
	if stdout != nil {
		_, _ = io.WriteString(stdout, res.Stdout)
	}
	if stderr != nil {
		_, _ = io.WriteString(stderr, res.Stderr)
	}
	return res, err
}

// ExitError reports a command that ran but exited non-zero
type ExitError struct {
	Command string
	Code    int
	Output  string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s exited with status %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Command, e.Code, e.Output)
}

// ErrNotFound is returned when the executable is not on PATH
var ErrNotFound = errors.New("executable not found")

// ExecRunner implements Runner with os/exec
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command and captures stdout and stderr
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return r.Stream(ctx, nil, nil, name, args...)
}

// Stream executes the command, copying its output to the given writers as it
// arrives. The Result still carries the full captured output.
func (r *ExecRunner) Stream(ctx context.Context, stdoutW, stderrW io.Writer, name string, args ...string) (Result, error) {
	// #nosec G204: binaries are fixed; arguments come from validated config.
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, stdoutW)
	cmd.Stderr = tee(&stderr, stderrW)

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &ExitError{Command: CommandLine(name, args...), Code: res.ExitCode, Output: res.Output()}
	}
	if errors.Is(err, exec.ErrNotFound) {
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	res.ExitCode = -1
	return res, fmt.Errorf("failed to run %s: %w", name, err)
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

// LookPath resolves an executable on PATH
func (r *ExecRunner) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return path, nil
}

// CommandLine renders name and args as a single space-separated string
func CommandLine(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
