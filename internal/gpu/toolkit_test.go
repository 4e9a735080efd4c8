package gpu

import (
	"context"
	"strings"
	"testing"

	"gpustack/internal/execx/exectest"
	"gpustack/internal/logging"
)

const testImage = "nvidia/cuda:12.3.1-base-ubuntu22.04"

func TestToolkitDetector_RuntimeListed(t *testing.T) {
	runner := exectest.NewRunner().
		On("docker info", exectest.Response{Stdout: "Server Version: 26.1"}).
		On("docker info --format {{json .Runtimes}}", exectest.Response{Stdout: `{"nvidia":{"path":"nvidia-container-runtime"},"runc":{"path":"runc"}}`}).
		On("nvidia-container-toolkit --version", exectest.Response{Stdout: "NVIDIA Container Toolkit version 1.14.5\n"})

	report := NewToolkitDetector(runner, logging.Nop(), "docker", testImage).DetectContainerToolkit(context.Background(), false)

	if !report.DockerSupport {
		t.Errorf("Expected docker support, got %+v", report)
	}
	if report.ToolkitVersion != "1.14.5" {
		t.Errorf("Expected version 1.14.5, got %q", report.ToolkitVersion)
	}
	if report.ContainerRun {
		t.Error("Container run should not be attempted")
	}
	if runner.CountPrefix("docker run") != 0 {
		t.Error("Expected no docker run invocation")
	}
}

func TestToolkitDetector_DockerUnavailable(t *testing.T) {
	runner := exectest.NewRunner()

	report := NewToolkitDetector(runner, logging.Nop(), "docker", testImage).DetectContainerToolkit(context.Background(), true)

	if report.DockerSupport {
		t.Error("Expected no docker support")
	}
	if report.ErrorMessage == "" {
		t.Error("Expected error message")
	}
}

func TestToolkitDetector_RuntimeMissing_ContainerRunSucceeds(t *testing.T) {
	runner := exectest.NewRunner().
		On("docker info", exectest.Response{Stdout: "Runtimes: runc"}).
		On("docker info --format {{json .Runtimes}}", exectest.Response{Stdout: `{"runc":{}}`}).
		On("docker run --rm --gpus all "+testImage+" nvidia-smi -L", exectest.Response{Stdout: "GPU 0: NVIDIA GeForce RTX 3060 (UUID: GPU-abc)\n"})

	report := NewToolkitDetector(runner, logging.Nop(), "docker", testImage).DetectContainerToolkit(context.Background(), true)

	if !report.ContainerRun || !report.DockerSupport {
		t.Errorf("Expected container run success to imply support, got %+v", report)
	}
	if report.ErrorMessage != "" {
		t.Errorf("Expected error cleared, got %q", report.ErrorMessage)
	}
	if report.ContainerGPU != "GPU 0: NVIDIA GeForce RTX 3060 (UUID: GPU-abc)" {
		t.Errorf("Unexpected container output %q", report.ContainerGPU)
	}
}

func TestToolkitDetector_ContainerRunFails(t *testing.T) {
	runner := exectest.NewRunner().
		On("docker info", exectest.Response{}).
		On("docker info --format {{json .Runtimes}}", exectest.Response{Stdout: `{"nvidia":{}}`}).
		On("docker run --rm --gpus all "+testImage+" nvidia-smi -L", exectest.Response{
			ExitCode: 125,
			Stderr:   "could not select device driver \"\" with capabilities: [[gpu]]",
		})

	report := NewToolkitDetector(runner, logging.Nop(), "docker", testImage).DetectContainerToolkit(context.Background(), true)

	if report.ContainerRun {
		t.Error("Expected container run failure")
	}
	// The runtime list alone does not prove passthrough; callers branch on ContainerRun.
	if !report.DockerSupport {
		t.Error("Expected listed nvidia runtime to still be reported")
	}
	if !strings.Contains(report.ErrorMessage, "could not select device driver") {
		t.Errorf("Expected runtime stderr in error message, got %q", report.ErrorMessage)
	}
	if report.ContainerGPU != "" {
		t.Errorf("Expected no container GPU output, got %q", report.ContainerGPU)
	}
}
