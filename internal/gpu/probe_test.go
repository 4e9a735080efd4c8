package gpu

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gpustack/internal/execx"
	"gpustack/internal/execx/exectest"
	"gpustack/internal/failure"
	"gpustack/internal/logging"
)

const smiQuery = "nvidia-smi --query-gpu=name,driver_version,memory.total,memory.free --format=csv,noheader,nounits"

func TestParseSMIOutput(t *testing.T) {
	out := "NVIDIA GeForce RTX 4070, 550.54.14, 12282, 11800\nNVIDIA GeForce GTX 1660, 550.54.14, 6144 MiB, 5900\n\n"

	gpus, err := ParseSMIOutput(out)
	if err != nil {
		t.Fatalf("ParseSMIOutput() error = %v", err)
	}
	if len(gpus) != 2 {
		t.Fatalf("Expected 2 GPUs, got %d", len(gpus))
	}

	if gpus[0].Name != "NVIDIA GeForce RTX 4070" {
		t.Errorf("Expected name 'NVIDIA GeForce RTX 4070', got %q", gpus[0].Name)
	}
	if gpus[0].DriverVersion != "550.54.14" {
		t.Errorf("Expected driver 550.54.14, got %q", gpus[0].DriverVersion)
	}
	if gpus[0].VRAMTotalMB != 12282 || gpus[0].VRAMFreeMB != 11800 {
		t.Errorf("Unexpected memory values: %+v", gpus[0])
	}
	if gpus[1].Index != 1 || gpus[1].VRAMTotalMB != 6144 {
		t.Errorf("Unexpected second GPU: %+v", gpus[1])
	}
}

func TestParseSMIOutput_Malformed(t *testing.T) {
	tests := []string{
		"RTX 4090, 550.1, 24564",
		"RTX 4090, 550.1, lots, 100",
		"RTX 4090, 550.1, 24564, N/A",
	}

	for _, in := range tests {
		if _, err := ParseSMIOutput(in); err == nil {
			t.Errorf("Expected error for %q", in)
		}
	}
}

func TestSMIProber_Success(t *testing.T) {
	runner := exectest.NewRunner().On(smiQuery, exectest.Response{
		Stdout: "NVIDIA GeForce RTX 3060, 535.104.05, 12288, 12000\n",
	})

	report, err := NewSMIProber(runner, logging.Nop()).Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if report.Source != SourceSMI {
		t.Errorf("Expected source %s, got %s", SourceSMI, report.Source)
	}
	if report.DriverVersion != "535.104.05" {
		t.Errorf("Expected driver version, got %q", report.DriverVersion)
	}
	if len(report.GPUs) != 1 || report.GPUs[0].VRAMTotalMB != 12288 {
		t.Errorf("Unexpected GPUs: %+v", report.GPUs)
	}
}

func TestSMIProber_MissingTool(t *testing.T) {
	runner := exectest.NewRunner()

	report, err := NewSMIProber(runner, logging.Nop()).Probe(context.Background())
	if !failure.Is(err, failure.ProbeUnavailable) {
		t.Fatalf("Expected ProbeUnavailable, got %v", err)
	}
	if !errors.Is(err, execx.ErrNotFound) {
		t.Errorf("Expected wrapped ErrNotFound, got %v", err)
	}
	if !failure.IsSoft(err) {
		t.Error("ProbeUnavailable should be soft")
	}
	if report.ErrorMessage == "" {
		t.Error("Expected error message in report")
	}
}

func TestSMIProber_QueryFails(t *testing.T) {
	runner := exectest.NewRunner().On(smiQuery, exectest.Response{
		ExitCode: 9,
		Stderr:   "NVIDIA-SMI has failed because it couldn't communicate with the NVIDIA driver",
	})

	_, err := NewSMIProber(runner, logging.Nop()).Probe(context.Background())
	if !failure.Is(err, failure.ProbeUnavailable) {
		t.Fatalf("Expected ProbeUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "couldn't communicate") {
		t.Errorf("Expected driver message surfaced verbatim, got %v", err)
	}
}

func TestSMIProber_NoDevices(t *testing.T) {
	runner := exectest.NewRunner().On(smiQuery, exectest.Response{Stdout: "\n"})

	if _, err := NewSMIProber(runner, logging.Nop()).Probe(context.Background()); !failure.Is(err, failure.ProbeUnavailable) {
		t.Errorf("Expected ProbeUnavailable for empty output, got %v", err)
	}
}

func TestGPUReport_Largest(t *testing.T) {
	report := GPUReport{GPUs: []GPUInfo{
		{Index: 0, VRAMTotalMB: 8192},
		{Index: 1, VRAMTotalMB: 24576},
		{Index: 2, VRAMTotalMB: 12288},
	}}

	best, ok := report.Largest()
	if !ok || best.Index != 1 {
		t.Errorf("Expected GPU 1, got %+v (ok=%v)", best, ok)
	}

	if _, ok := (GPUReport{}).Largest(); ok {
		t.Error("Expected no largest GPU for empty report")
	}
}

func TestSaveReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpu_report.json")
	report := GPUReport{
		Source:        SourceSMI,
		DriverVersion: "535.104.05",
		GPUs:          []GPUInfo{{Name: "Test GPU", VRAMTotalMB: 8192}},
	}

	if err := SaveReport(logging.Nop(), report, path); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	if !strings.Contains(string(data), "\"vram_total_mb\": 8192") {
		t.Errorf("Unexpected report content: %s", data)
	}
}

func TestNewProber(t *testing.T) {
	runner := exectest.NewRunner()

	if _, ok := NewProber("smi", runner, logging.Nop()).(*SMIProber); !ok {
		t.Error("Expected SMIProber for smi source")
	}
	if _, ok := NewProber("nvml", runner, logging.Nop()).(*NVMLProber); !ok {
		t.Error("Expected NVMLProber for nvml source")
	}
}
