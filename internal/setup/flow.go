// Package setup runs the end-to-end provisioning flow: prerequisites,
// model name policy, GPU probe, VRAM advice, container start, model pull
// and an API reachability check.
package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gpustack/internal/config"
	"gpustack/internal/execx"
	"gpustack/internal/failure"
	"gpustack/internal/gpu"
	"gpustack/internal/logging"
	"gpustack/internal/metrics"
	"gpustack/internal/models"
	"gpustack/internal/prompt"
	"gpustack/internal/services"
	"gpustack/internal/vram"
)

// Deps are the collaborators a Flow drives. Zero values are filled from the
// configuration and the real system.
type Deps struct {
	Runner    execx.Runner
	Runtime   services.Runtime
	Prober    gpu.Prober
	Clock     services.Clock
	Confirmer prompt.Confirmer
	Logger    *logging.Logger
	// OnStep is called as each step finishes, e.g. to print progress.
	OnStep func(StepResult)
	// PullProgress receives "ollama pull" output while the model downloads.
	PullProgress io.Writer
}

// Flow is one configured setup run
type Flow struct {
	cfg       config.Config
	runner    execx.Runner
	runtime   services.Runtime
	prober    gpu.Prober
	clock     services.Clock
	confirmer prompt.Confirmer
	logger    *logging.Logger
	onStep    func(StepResult)
	progress  io.Writer
	metrics   *metrics.Writer
}

// NewFlow creates a flow for cfg
func NewFlow(cfg config.Config, deps Deps) *Flow {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.Runner == nil {
		deps.Runner = execx.NewExecRunner()
	}
	if deps.Runtime == nil {
		deps.Runtime = services.NewGenericRuntime(cfg.ContainerRuntime, deps.Runner)
	}
	if deps.Prober == nil {
		deps.Prober = gpu.NewProber(cfg.GPU.Source, deps.Runner, deps.Logger)
	}
	if deps.Clock == nil {
		deps.Clock = services.RealClock{}
	}
	if deps.Confirmer == nil {
		deps.Confirmer = prompt.DenyConfirmer{}
	}

	return &Flow{
		cfg:       cfg,
		runner:    deps.Runner,
		runtime:   deps.Runtime,
		prober:    deps.Prober,
		clock:     deps.Clock,
		confirmer: deps.Confirmer,
		logger:    deps.Logger,
		onStep:    deps.OnStep,
		progress:  deps.PullProgress,
		metrics:   metrics.NewWriter(deps.Logger),
	}
}

// Run executes every step in order. It returns the report and the first
// fatal error; warnings are recorded in the report only.
func (f *Flow) Run(ctx context.Context) (Report, error) {
	start := f.clock.Now()
	report := Report{
		Model:         f.cfg.Model,
		ModelExplicit: f.cfg.ModelExplicit(),
		Mode:          f.cfg.Validation.Mode,
	}

	f.logger.Info("setup.start", "Starting setup", map[string]interface{}{
		"model":    report.Model,
		"explicit": report.ModelExplicit,
		"mode":     report.Mode,
		"runtime":  f.runtime.Binary(),
	})

	err := f.run(ctx, &report)

	report.Success = err == nil
	report.Duration = f.clock.Now().Sub(start)
	f.writeMetrics(&report, start)

	if err != nil {
		f.logger.Error("setup.failed", "Setup failed", map[string]interface{}{
			"error":    err.Error(),
			"duration": report.Duration.Seconds(),
		})
		return report, err
	}

	f.logger.Info("setup.completed", "Setup completed", map[string]interface{}{
		"warnings": len(report.Warnings()),
		"pulled":   report.Pulled,
		"duration": report.Duration.Seconds(),
	})
	return report, nil
}

func (f *Flow) run(ctx context.Context, report *Report) error {
	if err := f.checkPrerequisites(ctx, report); err != nil {
		return err
	}
	if err := f.preflight(report); err != nil {
		return err
	}

	f.probeGPU(ctx, report)

	if err := f.startContainer(ctx, report); err != nil {
		return err
	}
	if err := f.ensureModel(ctx, report); err != nil {
		return err
	}

	f.checkReachability(ctx, report)
	return nil
}

func (f *Flow) checkPrerequisites(ctx context.Context, report *Report) error {
	version, err := f.runtime.Version(ctx)
	if err != nil {
		ferr := failure.New(failure.MissingPrerequisite, f.runtime.Binary(), err)
		f.record(report, StepPrerequisites, StatusFatal, fmt.Sprintf("%s not available", f.runtime.Binary()), ferr)
		return ferr
	}
	f.record(report, StepPrerequisites, StatusOK, version, nil)
	return nil
}

// preflight applies the naming policy before any container work; only a
// model needing confirmation in warn mode is deferred to the pull step
func (f *Flow) preflight(report *Report) error {
	v := models.Evaluate(report.Model)

	switch {
	case v.Decision == models.DecisionAccept:
		f.record(report, StepValidation, StatusOK, fmt.Sprintf("%s is quantized", report.Model), nil)
		return nil
	case v.Decision == models.DecisionNeedsConfirmation && models.Mode(report.Mode) == models.ModeWarn:
		f.record(report, StepValidation, StatusWarn, fmt.Sprintf("%s: %s, confirmation required before pulling", report.Model, v.Reason), nil)
		return nil
	}

	ferr := failure.New(failure.ValidationRejected, "validate model", &models.RejectionError{Model: report.Model, Reason: v.Reason})
	f.record(report, StepValidation, StatusFatal, ferr.Err.Error(), ferr)
	return ferr
}

func (f *Flow) probeGPU(ctx context.Context, report *Report) {
	if f.cfg.GPU.Skip {
		f.record(report, StepGPU, StatusSkipped, "GPU probe skipped by configuration", nil)
		return
	}

	gpuReport, err := f.prober.Probe(ctx)
	report.GPU = &gpuReport
	if err != nil {
		f.record(report, StepGPU, StatusWarn, err.Error(), err)
	} else {
		best, _ := gpuReport.Largest()
		f.record(report, StepGPU, StatusOK, fmt.Sprintf("%d GPU(s), largest %s with %d MB", len(gpuReport.GPUs), best.Name, best.VRAMTotalMB), nil)
	}

	if f.cfg.GPU.VerifyContainer {
		detector := gpu.NewToolkitDetector(f.runner, f.logger, f.runtime.Binary(), f.cfg.GPU.TestImage)
		toolkit := detector.DetectContainerToolkit(ctx, true)
		report.Toolkit = &toolkit
		if toolkit.ContainerRun {
			f.record(report, StepToolkit, StatusOK, "GPU visible inside containers", nil)
		} else {
			terr := failure.New(failure.ProbeUnavailable, "container toolkit", errors.New(toolkit.ErrorMessage))
			f.record(report, StepToolkit, StatusWarn, "GPU container check failed: "+toolkit.ErrorMessage, terr)
		}
	}

	if err != nil {
		return
	}
	if advice, ok := vram.ClassifyReport(gpuReport); ok {
		report.Advice = &advice
		status := StatusOK
		if advice.Tier == vram.TierLow {
			status = StatusWarn
		}
		f.record(report, StepAdvisor, status, advice.Message, nil)
	}
}

func (f *Flow) startContainer(ctx context.Context, report *Report) error {
	orch := services.NewOrchestrator(f.runtime, f.clock, f.logger)
	target := services.Target{
		ComposeFile: f.cfg.ComposeFile,
		Service:     f.cfg.ServiceName,
		Container:   f.cfg.ContainerName,
	}
	timeout := time.Duration(f.cfg.Health.TimeoutSeconds) * time.Second
	interval := time.Duration(f.cfg.Health.IntervalSeconds) * time.Second

	res, err := orch.EnsureRunning(ctx, target, timeout, interval)
	report.Health = &res

	switch {
	case err == nil:
		f.record(report, StepContainer, StatusOK, fmt.Sprintf("container %s healthy after %d poll(s)", target.Container, res.Polls), nil)
		return nil
	case failure.IsSoft(err):
		f.record(report, StepContainer, StatusWarn, err.Error(), err)
		return nil
	default:
		f.record(report, StepContainer, StatusFatal, err.Error(), err)
		return err
	}
}

func (f *Flow) ensureModel(ctx context.Context, report *Report) error {
	puller := models.NewPuller(f.runtime, f.runner, f.logger, models.PullerOptions{
		ContainerName: f.cfg.ContainerName,
		Binary:        f.cfg.Ollama.Binary,
		Mode:          models.Mode(report.Mode),
		Confirmer:     f.confirmer,
		Progress:      f.progress,
	})

	installed, err := puller.Installed(ctx)
	if err != nil {
		f.logger.Warn("model.list.failed", "Could not list installed models", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		report.Installed = installed
		if models.Contains(installed, report.Model) {
			f.record(report, StepModel, StatusOK, fmt.Sprintf("%s already installed", report.Model), nil)
			return nil
		}
		if !report.ModelExplicit && models.HasQuantized(installed) {
			f.record(report, StepModel, StatusOK, "a quantized model is already installed", nil)
			return nil
		}
	}

	res, err := puller.Pull(ctx, report.Model)
	if err != nil {
		if models.Mode(report.Mode) == models.ModeWarn {
			f.record(report, StepModel, StatusWarn, err.Error(), err)
			return nil
		}
		f.record(report, StepModel, StatusFatal, err.Error(), err)
		return err
	}

	report.Pulled = true
	if len(res.Installed) > 0 {
		report.Installed = res.Installed
	}
	f.record(report, StepModel, StatusOK, fmt.Sprintf("pulled %s via %s", report.Model, res.Target), nil)
	return nil
}

func (f *Flow) checkReachability(ctx context.Context, report *Report) {
	if !f.cfg.Health.HTTPCheck {
		f.record(report, StepReachability, StatusSkipped, "HTTP check disabled", nil)
		return
	}

	check := services.OllamaTagsCheck(f.cfg.Ollama.URL)
	status, err := check.Check(ctx)
	report.Endpoint = status
	if err != nil {
		f.record(report, StepReachability, StatusWarn, fmt.Sprintf("%s not reachable: %v", check.URL, err), nil)
		return
	}
	f.record(report, StepReachability, StatusOK, fmt.Sprintf("%s reachable", check.URL), nil)
}

func (f *Flow) writeMetrics(report *Report, start time.Time) {
	if f.cfg.Metrics.Textfile == "" {
		return
	}

	sample := metrics.SetupSample{
		Timestamp:   start.Add(report.Duration),
		Success:     report.Success,
		Duration:    report.Duration,
		Model:       report.Model,
		ModelPulled: report.Pulled,
	}
	if report.Health != nil {
		sample.HealthPolls = report.Health.Polls
	}
	if report.GPU != nil {
		if best, ok := report.GPU.Largest(); ok {
			mb := best.VRAMTotalMB
			sample.VRAMTotalMB = &mb
		}
	}

	if err := f.metrics.Write(sample, f.cfg.Metrics.Textfile); err != nil {
		f.record(report, StepMetrics, StatusWarn, err.Error(), nil)
	}
}

// record appends a step result, logs it and notifies the observer
func (f *Flow) record(report *Report, name string, status StepStatus, message string, err error) {
	result := StepResult{Name: name, Status: status, Message: message, Hint: failure.HintOf(err)}
	report.Steps = append(report.Steps, result)

	payload := map[string]interface{}{
		"step":   name,
		"status": string(status),
	}
	if k, ok := failure.KindOf(err); ok {
		payload["kind"] = string(k)
	}

	switch status {
	case StatusFatal:
		f.logger.Error("setup.step", message, payload)
	case StatusWarn:
		f.logger.Warn("setup.step", message, payload)
	default:
		f.logger.Info("setup.step", message, payload)
	}

	if f.onStep != nil {
		f.onStep(result)
	}
}
