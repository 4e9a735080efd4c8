package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gpustack/internal/execx"
	"gpustack/internal/failure"
	"gpustack/internal/logging"
	"gpustack/internal/prompt"
	"gpustack/internal/services"
)

// ErrNoTarget is returned when neither the container nor a local ollama binary is available
var ErrNoTarget = errors.New("no target available")

// PullerOptions configures a Puller
type PullerOptions struct {
	ContainerName string
	Binary        string // ollama CLI name, inside the container and on the host
	Mode          Mode
	Confirmer     prompt.Confirmer
	// Progress receives the pull output as it arrives; nil keeps it buffered.
	Progress io.Writer
}

// Puller downloads models through the ollama CLI, preferring the running
// container over a host binary
type Puller struct {
	runtime   services.Runtime
	runner    execx.Runner
	logger    *logging.Logger
	container string
	binary    string
	mode      Mode
	confirmer prompt.Confirmer
	progress  io.Writer
}

// NewPuller creates a puller
func NewPuller(runtime services.Runtime, runner execx.Runner, logger *logging.Logger, opts PullerOptions) *Puller {
	if opts.Binary == "" {
		opts.Binary = "ollama"
	}
	if opts.Mode == "" {
		opts.Mode = ModeStrict
	}
	return &Puller{
		runtime:   runtime,
		runner:    runner,
		logger:    logger,
		container: opts.ContainerName,
		binary:    opts.Binary,
		mode:      opts.Mode,
		confirmer: opts.Confirmer,
		progress:  opts.Progress,
	}
}

// Pull validates model and runs a single "ollama pull". On success the
// installed models are listed for the log; listing errors are not returned.
func (p *Puller) Pull(ctx context.Context, model string) (PullResult, error) {
	if err := Validate(ctx, model, p.mode, p.confirmer); err != nil {
		p.logger.Warn("model.validation.rejected", "Model name rejected", map[string]interface{}{
			"model":  model,
			"mode":   string(p.mode),
			"reason": RejectionReason(err),
		})
		return PullResult{Model: model}, err
	}

	target, err := p.selectTarget(ctx)
	if err != nil {
		p.logger.Error("model.pull.no_target", "No container or local ollama binary to pull with", map[string]interface{}{
			"model":     model,
			"container": p.container,
		})
		return PullResult{Model: model}, failure.New(failure.PullFailed, "pull model", err)
	}

	p.logger.Info("model.pull.started", "Pulling model", map[string]interface{}{
		"model":  model,
		"target": string(target),
	})

	if _, err := p.pull(ctx, target, model); err != nil {
		p.logger.Error("model.pull.failed", "Model pull failed", map[string]interface{}{
			"model":  model,
			"target": string(target),
			"error":  err.Error(),
		})
		return PullResult{Model: model, Target: target}, failure.New(failure.PullFailed, "pull model", err)
	}

	result := PullResult{Model: model, Target: target}
	installed, err := p.list(ctx, target)
	if err != nil {
		p.logger.Warn("model.list.failed", "Failed to list models after pull", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		result.Installed = installed
	}

	p.logger.Info("model.pull.completed", "Model pull completed", map[string]interface{}{
		"model":     model,
		"target":    string(target),
		"installed": len(result.Installed),
	})
	return result, nil
}

// Installed lists model names known to ollama via the same target selection as Pull
func (p *Puller) Installed(ctx context.Context) ([]string, error) {
	target, err := p.selectTarget(ctx)
	if err != nil {
		return nil, err
	}
	return p.list(ctx, target)
}

func (p *Puller) selectTarget(ctx context.Context) (Target, error) {
	if p.runtime != nil && p.container != "" {
		visible, err := p.runtime.IsContainerVisible(ctx, p.container)
		if err != nil {
			p.logger.Debug("model.target.container_check_failed", "Container listing failed", map[string]interface{}{
				"container": p.container,
				"error":     err.Error(),
			})
		}
		if visible {
			return TargetContainer, nil
		}
	}

	if _, err := p.runner.LookPath(p.binary); err == nil {
		return TargetLocal, nil
	}
	return "", ErrNoTarget
}

func (p *Puller) run(ctx context.Context, target Target, args ...string) (execx.Result, error) {
	if target == TargetContainer {
		return p.runtime.Exec(ctx, p.container, append([]string{p.binary}, args...)...)
	}
	return p.runner.Run(ctx, p.binary, args...)
}

func (p *Puller) pull(ctx context.Context, target Target, model string) (execx.Result, error) {
	if p.progress == nil {
		return p.run(ctx, target, "pull", model)
	}
	if target == TargetContainer {
		return p.runtime.ExecStream(ctx, p.progress, p.progress, p.container, p.binary, "pull", model)
	}
	return execx.RunStreaming(ctx, p.runner, p.progress, p.progress, p.binary, "pull", model)
}

func (p *Puller) list(ctx context.Context, target Target) ([]string, error) {
	res, err := p.run(ctx, target, "list")
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return ParseList(res.Stdout), nil
}

// ParseList extracts model names from "ollama list" output
func ParseList(output string) []string {
	var names []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] == "NAME" {
			continue
		}
		names = append(names, fields[0])
	}
	return names
}
