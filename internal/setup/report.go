package setup

import (
	"time"

	"gpustack/internal/gpu"
	"gpustack/internal/services"
	"gpustack/internal/vram"
)

// Step names in execution order
const (
	StepPrerequisites = "prerequisites"
	StepValidation    = "validation"
	StepGPU           = "gpu"
	StepToolkit       = "toolkit"
	StepAdvisor       = "advisor"
	StepContainer     = "container"
	StepModel         = "model"
	StepReachability  = "reachability"
	StepMetrics       = "metrics"
)

// StepStatus is the outcome of one step
type StepStatus string

const (
	StatusOK      StepStatus = "ok"
	StatusWarn    StepStatus = "warn"
	StatusFatal   StepStatus = "fatal"
	StatusSkipped StepStatus = "skipped"
)

// StepResult records what a step did
type StepResult struct {
	Name    string     `json:"name"`
	Status  StepStatus `json:"status"`
	Message string     `json:"message"`
	Hint    string     `json:"hint,omitempty"`
}

// Report collects everything a setup run observed
type Report struct {
	RunID         string                      `json:"run_id,omitempty"`
	Model         string                      `json:"model"`
	ModelExplicit bool                        `json:"model_explicit"`
	Mode          string                      `json:"validation_mode"`
	Steps         []StepResult                `json:"steps"`
	GPU           *gpu.GPUReport              `json:"gpu,omitempty"`
	Toolkit       *gpu.ContainerToolkitReport `json:"toolkit,omitempty"`
	Advice        *vram.Advice                `json:"advice,omitempty"`
	Health        *services.RunResult         `json:"health,omitempty"`
	Installed     []string                    `json:"installed,omitempty"`
	Pulled        bool                        `json:"pulled"`
	Endpoint      services.HealthStatus       `json:"endpoint,omitempty"`
	Success       bool                        `json:"success"`
	Duration      time.Duration               `json:"duration"`
}

// Warnings returns the steps that finished with a warning
func (r Report) Warnings() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Status == StatusWarn {
			out = append(out, s)
		}
	}
	return out
}

// Step returns the result for name, if that step ran
func (r Report) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}
