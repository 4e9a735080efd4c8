// Package failure classifies the errors the setup flow can surface and maps
// them to soft or fatal handling, remediation hints and process exit codes.
package failure

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure
type Kind string

const (
	// MissingPrerequisite means a required runtime or tool was not found.
	MissingPrerequisite Kind = "missing_prerequisite"
	// ValidationRejected means the model name violated the naming policy.
	ValidationRejected Kind = "validation_rejected"
	// LaunchFailed means the compose start command exited non-zero.
	LaunchFailed Kind = "launch_failed"
	// HealthTimeout means the container never reported healthy in time.
	HealthTimeout Kind = "health_timeout"
	// HealthFailed means the container reported unhealthy.
	HealthFailed Kind = "health_failed"
	// PullFailed means the model pull exited non-zero or had no target.
	PullFailed Kind = "pull_failed"
	// ProbeUnavailable means the GPU query tool was missing or failed.
	ProbeUnavailable Kind = "probe_unavailable"
	// HostBusy means another gpustack run holds the host lock.
	HostBusy Kind = "host_busy"
)

// Exit codes returned by the CLI
const (
	ExitOK    = 0
	ExitFatal = 1
)

// Error is a classified failure
type Error struct {
	Kind Kind
	Op   string
	Hint string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with the default hint for its kind
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Hint: DefaultHint(kind), Err: err}
}

// WithHint replaces the remediation hint
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsSoft reports whether err should be logged as a warning instead of
// aborting the flow
func IsSoft(err error) bool {
	k, ok := KindOf(err)
	if !ok {
		return false
	}
	return k == HealthTimeout || k == ProbeUnavailable
}

// HintOf returns the remediation hint carried by err, if any
func HintOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Hint
	}
	return ""
}

// ExitCode maps err to the process exit code
func ExitCode(err error) int {
	if err == nil || IsSoft(err) {
		return ExitOK
	}
	return ExitFatal
}

// DefaultHint returns the remediation text for a kind
func DefaultHint(kind Kind) string {
	switch kind {
	case MissingPrerequisite:
		return "Install Docker (https://docs.docker.com/engine/install/) and make sure the daemon is running"
	case ValidationRejected:
		return "Use a quantized tag such as llama3:8b-instruct-q4_K_M"
	case LaunchFailed:
		return "Check the compose file and run 'docker compose logs' for details"
	case HealthTimeout:
		return "The container may have no health check configured; verify it manually with 'docker ps'"
	case HealthFailed:
		return "Inspect the container with 'docker logs' and fix the reported problem before retrying"
	case PullFailed:
		return "Check network connectivity and the model name, then re-run the pull"
	case ProbeUnavailable:
		return "Install the NVIDIA driver and NVIDIA Container Toolkit (https://docs.nvidia.com/datacenter/cloud-native/container-toolkit/install-guide.html)"
	case HostBusy:
		return "Wait for the other run to finish, or run 'gpustack unlock' if it crashed"
	default:
		return ""
	}
}
