package gpu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gpustack/internal/execx"
	"gpustack/internal/failure"
	"gpustack/internal/fsutil"
	"gpustack/internal/logging"
)

// Prober reads GPU attributes from the host
type Prober interface {
	Probe(ctx context.Context) (GPUReport, error)
}

var smiQueryArgs = []string{
	"--query-gpu=name,driver_version,memory.total,memory.free",
	"--format=csv,noheader,nounits",
}

// SMIProber queries devices through nvidia-smi
type SMIProber struct {
	runner execx.Runner
	logger *logging.Logger
	binary string
}

// NewSMIProber creates a prober that shells out to nvidia-smi
func NewSMIProber(runner execx.Runner, logger *logging.Logger) *SMIProber {
	return &SMIProber{runner: runner, logger: logger, binary: "nvidia-smi"}
}

// Probe runs the device query and parses one GPUInfo per output line
func (p *SMIProber) Probe(ctx context.Context) (GPUReport, error) {
	p.logger.Info("gpu.probe.start", "Querying GPU via nvidia-smi", nil)

	report := GPUReport{Source: SourceSMI, GPUs: make([]GPUInfo, 0)}

	res, err := p.runner.Run(ctx, p.binary, smiQueryArgs...)
	if err != nil {
		report.ErrorMessage = err.Error()
		p.logger.Warn("gpu.probe.failed", "nvidia-smi query failed", map[string]interface{}{
			"error": err.Error(),
		})
		if errors.Is(err, execx.ErrNotFound) {
			return report, failure.New(failure.ProbeUnavailable, "nvidia-smi", fmt.Errorf("nvidia-smi not found: %w", err))
		}
		return report, failure.New(failure.ProbeUnavailable, "nvidia-smi", err)
	}

	gpus, err := ParseSMIOutput(res.Stdout)
	if err != nil {
		report.ErrorMessage = err.Error()
		return report, failure.New(failure.ProbeUnavailable, "nvidia-smi", err)
	}
	if len(gpus) == 0 {
		report.ErrorMessage = "no GPUs reported"
		return report, failure.New(failure.ProbeUnavailable, "nvidia-smi", errors.New("no GPUs reported"))
	}

	report.GPUs = gpus
	report.DriverVersion = gpus[0].DriverVersion

	for _, g := range gpus {
		p.logger.Info("gpu.device.detected", "GPU device detected", map[string]interface{}{
			"index":         g.Index,
			"name":          g.Name,
			"vram_total_mb": g.VRAMTotalMB,
			"vram_free_mb":  g.VRAMFreeMB,
		})
	}

	return report, nil
}

// ParseSMIOutput parses "name, driver, total, free" CSV lines without a header
func ParseSMIOutput(out string) ([]GPUInfo, error) {
	gpus := make([]GPUInfo, 0)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("unexpected nvidia-smi line %q: want 4 fields, got %d", line, len(fields))
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		total, err := parseMB(fields[2])
		if err != nil {
			return nil, fmt.Errorf("invalid memory.total %q: %w", fields[2], err)
		}
		free, err := parseMB(fields[3])
		if err != nil {
			return nil, fmt.Errorf("invalid memory.free %q: %w", fields[3], err)
		}

		gpus = append(gpus, GPUInfo{
			Index:         len(gpus),
			Name:          fields[0],
			DriverVersion: fields[1],
			VRAMTotalMB:   total,
			VRAMFreeMB:    free,
		})
	}
	return gpus, nil
}

// parseMB accepts "12288" as well as "12288 MiB" in case units were not stripped
func parseMB(s string) (int, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "MiB"))
	return strconv.Atoi(s)
}

// SaveReport saves the GPU report to a JSON file
func SaveReport(logger *logging.Logger, report GPUReport, filepath string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := fsutil.AtomicWriteFile(filepath, data, fsutil.DefaultFilePermissions, logger); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	logger.Info("gpu.report.saved", "GPU report saved", map[string]interface{}{
		"filepath": filepath,
	})

	return nil
}

// NewProber returns the prober for a configured source ("smi" or "nvml")
func NewProber(source string, runner execx.Runner, logger *logging.Logger) Prober {
	if source == "nvml" {
		return NewNVMLProber(logger)
	}
	return NewSMIProber(runner, logger)
}
