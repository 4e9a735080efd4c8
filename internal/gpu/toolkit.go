package gpu

import (
	"context"
	"encoding/json"
	"strings"

	"gpustack/internal/execx"
	"gpustack/internal/logging"
)

// ToolkitDetector handles NVIDIA Container Toolkit detection
type ToolkitDetector struct {
	runner    execx.Runner
	logger    *logging.Logger
	binary    string
	testImage string
}

// NewToolkitDetector creates a new toolkit detector for the given runtime binary
func NewToolkitDetector(runner execx.Runner, logger *logging.Logger, binary, testImage string) *ToolkitDetector {
	if binary == "" {
		binary = "docker"
	}
	return &ToolkitDetector{
		runner:    runner,
		logger:    logger,
		binary:    binary,
		testImage: testImage,
	}
}

// DetectContainerToolkit checks whether the runtime lists the nvidia runtime
// and, when runContainer is set, whether a --gpus all container can see the GPU
func (td *ToolkitDetector) DetectContainerToolkit(ctx context.Context, runContainer bool) ContainerToolkitReport {
	td.logger.Info("gpu.toolkit.detect.start", "Starting Container Toolkit detection", nil)

	report := ContainerToolkitReport{}

	if _, err := td.runner.Run(ctx, td.binary, "info"); err != nil {
		report.ErrorMessage = td.binary + " is not available: " + err.Error()
		td.logger.Warn("gpu.toolkit.docker.unavailable", "Container runtime not reachable", map[string]interface{}{
			"error": err.Error(),
		})
		return report
	}

	support, detail := td.detectNvidiaRuntime(ctx)
	report.DockerSupport = support
	if !support {
		report.ErrorMessage = detail
		td.logger.Info("gpu.toolkit.runtime.absent", "NVIDIA runtime not detected", map[string]interface{}{
			"detail": detail,
		})
	} else {
		report.ToolkitVersion = td.toolkitVersion(ctx)
	}

	if runContainer {
		out, err := td.RunGPUContainer(ctx)
		if err != nil {
			report.ErrorMessage = err.Error()
		} else {
			report.ContainerRun = true
			report.ContainerGPU = out
			// A working --gpus run proves support even when the runtime list is not conclusive.
			report.DockerSupport = true
			if report.ErrorMessage == detail {
				report.ErrorMessage = ""
			}
		}
	}

	td.logger.Info("gpu.toolkit.detected", "Container Toolkit detection finished", map[string]interface{}{
		"docker_support": report.DockerSupport,
		"container_run":  report.ContainerRun,
		"version":        report.ToolkitVersion,
	})

	return report
}

// RunGPUContainer runs nvidia-smi inside a throwaway --gpus all container
func (td *ToolkitDetector) RunGPUContainer(ctx context.Context) (string, error) {
	res, err := td.runner.Run(ctx, td.binary, "run", "--rm", "--gpus", "all", td.testImage, "nvidia-smi", "-L")
	if err != nil {
		td.logger.Warn("gpu.toolkit.container.failed", "GPU container run failed", map[string]interface{}{
			"image": td.testImage,
			"error": err.Error(),
		})
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (td *ToolkitDetector) detectNvidiaRuntime(ctx context.Context) (bool, string) {
	res, err := td.runner.Run(ctx, td.binary, "info", "--format", "{{json .Runtimes}}")
	if err == nil {
		runtimes := make(map[string]json.RawMessage)
		if jsonErr := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &runtimes); jsonErr == nil {
			if _, ok := runtimes["nvidia"]; ok {
				return true, ""
			}
			return false, "NVIDIA runtime not listed in " + td.binary + " info"
		}
		td.logger.Warn("gpu.toolkit.runtime.parse_failed", "Failed to parse runtime json", nil)
	}

	res, err = td.runner.Run(ctx, td.binary, "info")
	if err != nil {
		return false, td.binary + " info failed: " + err.Error()
	}
	if strings.Contains(res.Stdout, "nvidia") {
		return true, ""
	}
	return false, "NVIDIA runtime not listed in " + td.binary + " info"
}

func (td *ToolkitDetector) toolkitVersion(ctx context.Context) string {
	res, err := td.runner.Run(ctx, "nvidia-container-toolkit", "--version")
	if err != nil {
		// The toolkit CLI is optional on PATH
		return ""
	}

	// Expected format: "NVIDIA Container Toolkit version X.Y.Z"
	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.Contains(line, "version") {
			parts := strings.Fields(line)
			if len(parts) > 0 {
				return parts[len(parts)-1]
			}
		}
	}
	return ""
}
