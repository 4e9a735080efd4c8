//go:build cuda

package gpu

import (
	"context"
	"errors"
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"gpustack/internal/failure"
	"gpustack/internal/logging"
)

const bytesPerMB = 1024 * 1024

// NVMLProber reads GPU attributes through NVML
type NVMLProber struct {
	nvml   NVMLInterface
	logger *logging.Logger
}

// NewNVMLProber creates a prober backed by the real NVML library
func NewNVMLProber(logger *logging.Logger) *NVMLProber {
	return &NVMLProber{nvml: NewRealNVML(), logger: logger}
}

// NewNVMLProberWithNVML creates a prober with a custom NVML interface (for testing)
func NewNVMLProberWithNVML(nvmlInterface NVMLInterface, logger *logging.Logger) *NVMLProber {
	return &NVMLProber{nvml: nvmlInterface, logger: logger}
}

// Probe performs GPU detection and returns a report
func (d *NVMLProber) Probe(_ context.Context) (GPUReport, error) {
	d.logger.Info("gpu.probe.start", "Starting NVML GPU detection", nil)

	report := GPUReport{Source: SourceNVML, GPUs: make([]GPUInfo, 0)}

	ret := d.nvml.Init()
	if ret != nvml.SUCCESS {
		report.ErrorMessage = fmt.Sprintf("Failed to initialize NVML: %v", nvml.ErrorString(ret))
		d.logger.Warn("gpu.nvml.init.failed", "NVML initialization failed", map[string]interface{}{
			"error": report.ErrorMessage,
		})
		return report, failure.New(failure.ProbeUnavailable, "nvml", errors.New(report.ErrorMessage))
	}
	defer d.nvml.Shutdown()

	driverVersion, ret := d.nvml.SystemGetDriverVersion()
	if ret != nvml.SUCCESS {
		d.logger.Warn("gpu.driver.version.failed", "Failed to get driver version", map[string]interface{}{
			"error": nvml.ErrorString(ret),
		})
	} else {
		report.DriverVersion = driverVersion
	}

	cudaVersion, ret := d.nvml.SystemGetCudaDriverVersion()
	if ret == nvml.SUCCESS {
		report.CUDAVersion = cudaVersion
	}

	count, ret := d.nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		report.ErrorMessage = fmt.Sprintf("Failed to get device count: %v", nvml.ErrorString(ret))
		d.logger.Error("gpu.device.count.failed", "Failed to get GPU count", map[string]interface{}{
			"error": report.ErrorMessage,
		})
		return report, failure.New(failure.ProbeUnavailable, "nvml", errors.New(report.ErrorMessage))
	}

	for i := 0; i < count; i++ {
		device, ret := d.nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			d.logger.Warn("gpu.device.handle.failed", "Failed to get device handle", map[string]interface{}{
				"index": i,
				"error": nvml.ErrorString(ret),
			})
			continue
		}

		info := GPUInfo{Index: i, DriverVersion: report.DriverVersion}

		if name, ret := device.GetName(); ret == nvml.SUCCESS {
			info.Name = name
		}
		if uuid, ret := device.GetUUID(); ret == nvml.SUCCESS {
			info.UUID = uuid
		}
		if mem, ret := device.GetMemoryInfo(); ret == nvml.SUCCESS {
			info.VRAMTotalMB = int(mem.Total / bytesPerMB)
			info.VRAMFreeMB = int(mem.Free / bytesPerMB)
		}

		report.GPUs = append(report.GPUs, info)

		d.logger.Info("gpu.device.detected", "GPU device detected", map[string]interface{}{
			"index":         i,
			"name":          info.Name,
			"uuid":          info.UUID,
			"vram_total_mb": info.VRAMTotalMB,
			"vram_free_mb":  info.VRAMFreeMB,
		})
	}

	if len(report.GPUs) == 0 {
		report.ErrorMessage = "no GPUs reported"
		return report, failure.New(failure.ProbeUnavailable, "nvml", errors.New(report.ErrorMessage))
	}

	return report, nil
}
