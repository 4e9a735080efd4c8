package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gpustack/internal/execx"
)

const (
	// Container status constants
	containerStatusRunning = "running"
)

// ContainerHealth is the health status reported by the container runtime
type ContainerHealth string

const (
	HealthStarting  ContainerHealth = "starting"
	HealthHealthy   ContainerHealth = "healthy"
	HealthUnhealthy ContainerHealth = "unhealthy"
	HealthUnknown   ContainerHealth = "unknown"
)

// ParseContainerHealth maps inspect output to a ContainerHealth; "none" (no
// health check configured) and anything unrecognised become unknown
func ParseContainerHealth(s string) ContainerHealth {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "starting":
		return HealthStarting
	case "healthy":
		return HealthHealthy
	case "unhealthy":
		return HealthUnhealthy
	default:
		return HealthUnknown
	}
}

// Runtime represents a container runtime (Docker or Podman)
type Runtime interface {
	// Binary returns the CLI name ("docker" or "podman")
	Binary() string
	// Version returns the client version string
	Version(ctx context.Context) (string, error)
	// IsRunning checks if the runtime daemon is reachable
	IsRunning(ctx context.Context) bool
	// ComposeUp starts services defined in a compose file
	ComposeUp(ctx context.Context, composeFile string, services ...string) error
	// IsContainerVisible reports whether a running container has exactly this name
	IsContainerVisible(ctx context.Context, name string) (bool, error)
	// GetContainerHealth returns the health check status of a container
	GetContainerHealth(ctx context.Context, name string) (ContainerHealth, error)
	// GetContainerStatus returns the state of a container (running, exited, ...)
	GetContainerStatus(ctx context.Context, name string) (string, error)
	// Exec runs a command inside a container
	Exec(ctx context.Context, name string, args ...string) (execx.Result, error)
	// ExecStream runs a command inside a container, copying output as it arrives
	ExecStream(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) (execx.Result, error)
	// GetContainerLogs returns logs from a container
	GetContainerLogs(ctx context.Context, name string, tail int) (string, error)
}

// GenericRuntime implements Runtime for Docker or Podman
type GenericRuntime struct {
	binary string // "docker" or "podman"
	runner execx.Runner
}

// NewGenericRuntime creates a new generic runtime with the specified binary
func NewGenericRuntime(binary string, runner execx.Runner) *GenericRuntime {
	return &GenericRuntime{binary: binary, runner: runner}
}

// Binary returns the runtime CLI name
func (r *GenericRuntime) Binary() string {
	return r.binary
}

// Version returns the output of "<binary> --version"
func (r *GenericRuntime) Version(ctx context.Context) (string, error) {
	res, err := r.runner.Run(ctx, r.binary, "--version")
	if err != nil {
		return "", fmt.Errorf("%s --version failed: %w", r.binary, err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// IsRunning checks if the runtime daemon is running
func (r *GenericRuntime) IsRunning(ctx context.Context) bool {
	_, err := r.runner.Run(ctx, r.binary, "info")
	return err == nil
}

// ComposeUp starts services using compose
func (r *GenericRuntime) ComposeUp(ctx context.Context, composeFile string, services ...string) error {
	args := []string{"compose"}
	if composeFile != "" {
		args = append(args, "-f", composeFile)
	}
	args = append(args, "up", "-d")
	args = append(args, services...)

	if _, err := r.runner.Run(ctx, r.binary, args...); err != nil {
		return fmt.Errorf("%s compose up failed: %w", r.binary, err)
	}
	return nil
}

// IsContainerVisible lists running containers filtered by name and looks for an exact match
func (r *GenericRuntime) IsContainerVisible(ctx context.Context, name string) (bool, error) {
	res, err := r.runner.Run(ctx, r.binary, "ps", "--filter", "name=^"+name+"$", "--format", "{{.Names}}")
	if err != nil {
		return false, fmt.Errorf("failed to list %s containers: %w", r.binary, err)
	}

	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.TrimSpace(line) == name {
			return true, nil
		}
	}
	return false, nil
}

// GetContainerHealth reads .State.Health.Status; containers without a health check report unknown
func (r *GenericRuntime) GetContainerHealth(ctx context.Context, name string) (ContainerHealth, error) {
	res, err := r.runner.Run(ctx, r.binary, "inspect", "--format", "{{if .State.Health}}{{.State.Health.Status}}{{else}}none{{end}}", name)
	if err != nil {
		return HealthUnknown, fmt.Errorf("failed to inspect %s container health: %w", r.binary, err)
	}
	return ParseContainerHealth(res.Stdout), nil
}

// GetContainerStatus returns the status of a container
func (r *GenericRuntime) GetContainerStatus(ctx context.Context, name string) (string, error) {
	res, err := r.runner.Run(ctx, r.binary, "inspect", "-f", "{{.State.Status}}", name)
	if err != nil {
		return "", fmt.Errorf("failed to get %s container status: %w", r.binary, err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Exec runs a command inside a container
func (r *GenericRuntime) Exec(ctx context.Context, name string, args ...string) (execx.Result, error) {
	full := append([]string{"exec", name}, args...)
	return r.runner.Run(ctx, r.binary, full...)
}

// ExecStream runs a command inside a container and streams its output
func (r *GenericRuntime) ExecStream(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) (execx.Result, error) {
	full := append([]string{"exec", name}, args...)
	return execx.RunStreaming(ctx, r.runner, stdout, stderr, r.binary, full...)
}

// GetContainerLogs returns logs from a container
func (r *GenericRuntime) GetContainerLogs(ctx context.Context, name string, tail int) (string, error) {
	args := []string{"logs"}
	if tail > 0 {
		args = append(args, "--tail", strconv.Itoa(tail))
	}
	args = append(args, name)

	res, err := r.runner.Run(ctx, r.binary, args...)
	if err != nil {
		return "", fmt.Errorf("failed to get %s logs: %w", r.binary, err)
	}
	// docker logs writes container stderr to our stderr
	return res.Stdout + res.Stderr, nil
}

// NewDockerRuntime creates a new Docker runtime
func NewDockerRuntime(runner execx.Runner) *GenericRuntime {
	return NewGenericRuntime("docker", runner)
}

// NewPodmanRuntime creates a new Podman runtime (best-effort support)
func NewPodmanRuntime(runner execx.Runner) *GenericRuntime {
	return NewGenericRuntime("podman", runner)
}

// DetectRuntime returns the requested runtime, or the first available one for "auto"
func DetectRuntime(ctx context.Context, runner execx.Runner, desired string) (Runtime, error) {
	desired = strings.ToLower(strings.TrimSpace(desired))

	docker := NewDockerRuntime(runner)
	podman := NewPodmanRuntime(runner)

	switch desired {
	case "docker":
		if _, err := docker.Version(ctx); err != nil {
			return nil, fmt.Errorf("docker requested but not available: %w", err)
		}
		return docker, nil
	case "podman":
		if _, err := podman.Version(ctx); err != nil {
			return nil, fmt.Errorf("podman requested but not available: %w", err)
		}
		return podman, nil
	case "", "auto":
		if _, err := docker.Version(ctx); err == nil {
			return docker, nil
		}
		if _, err := podman.Version(ctx); err == nil {
			return podman, nil
		}
	default:
		return nil, fmt.Errorf("unknown container runtime '%s' (expected docker|podman|auto)", desired)
	}

	return nil, fmt.Errorf("no container runtime detected (Docker or Podman required)")
}
