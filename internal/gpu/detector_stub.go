//go:build !cuda

package gpu

import (
	"context"
	"errors"

	"gpustack/internal/failure"
	"gpustack/internal/logging"
)

// NVMLProber is unavailable in builds without the cuda tag.
type NVMLProber struct {
	logger *logging.Logger
}

// NewNVMLProber creates a prober that always reports NVML as disabled.
func NewNVMLProber(logger *logging.Logger) *NVMLProber {
	return &NVMLProber{logger: logger}
}

// Probe returns ProbeUnavailable; rebuild with -tags cuda for NVML support.
func (d *NVMLProber) Probe(_ context.Context) (GPUReport, error) {
	d.logger.Info("gpu.detect.disabled", "Skipping NVML detection (built without cuda tag)", nil)

	report := GPUReport{
		Source:       SourceNVML,
		GPUs:         []GPUInfo{},
		ErrorMessage: "NVML disabled: rebuild with -tags cuda",
	}
	return report, failure.New(failure.ProbeUnavailable, "nvml", errors.New(report.ErrorMessage))
}
