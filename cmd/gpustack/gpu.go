package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"gpustack/internal/config"
	"gpustack/internal/failure"
	"gpustack/internal/gpu"
	"gpustack/internal/services"
	"gpustack/internal/vram"
)

type gpuCheckOptions struct {
	save      string
	container bool
	source    string
}

func newGPUCheckCommand(c *cli) *cobra.Command {
	opts := &gpuCheckOptions{}

	cmd := &cobra.Command{
		Use:   "gpu-check",
		Short: "Probe the GPU and the NVIDIA container toolkit",
		Long: `Query the NVIDIA driver for devices and VRAM, print the VRAM advice and check
whether the container runtime lists the nvidia runtime. Unless disabled with
--container=false (or gpu.verify_container), a throwaway --gpus all container
runs nvidia-smi to prove GPU passthrough; a failed run exits with status 1.`,
		Example: `  gpustack gpu-check
  gpustack gpu-check --container=false --save /tmp/gpu_report.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := config.Overrides{
				GPUSource: opts.source,
				VerifyGPU: boolFlag(cmd, "container", opts.container),
			}
			if err := c.load(o); err != nil {
				return err
			}
			return runGPUCheck(cmd, c, opts)
		},
	}

	cmd.Flags().StringVar(&opts.save, "save", "", "write the GPU report as JSON to this path")
	cmd.Flags().BoolVar(&opts.container, "container", true, "run nvidia-smi in a --gpus all container (default from gpu.verify_container)")
	cmd.Flags().StringVar(&opts.source, "source", "", "probe source (smi or nvml)")

	return cmd
}

func runGPUCheck(cmd *cobra.Command, c *cli, opts *gpuCheckOptions) error {
	ctx := cmd.Context()

	c.out.title("GPU Detection Report")
	prober := gpu.NewProber(c.cfg.GPU.Source, c.env.runner, c.logger)
	report, probeErr := prober.Probe(ctx)
	if probeErr != nil {
		c.out.fail(fmt.Sprintf("GPU probe (%s) failed: %v", report.Source, probeErr))
	} else {
		c.out.ok(fmt.Sprintf("%d GPU(s) via %s", len(report.GPUs), report.Source))
		c.out.field("Driver Version", report.DriverVersion)
		if report.CUDAVersion > 0 {
			c.out.field("CUDA Version", report.CUDAVersion)
		}
		for _, g := range report.GPUs {
			c.out.line("  GPU %d: %s", g.Index, g.Name)
			c.out.field("  Memory", fmt.Sprintf("%d MB total, %d MB free", g.VRAMTotalMB, g.VRAMFreeMB))
		}
		if advice, ok := vram.ClassifyReport(report); ok {
			if advice.Tier == vram.TierLow {
				c.out.warn(advice.Message)
			} else {
				c.out.ok(advice.Message)
			}
		}
	}
	c.out.line("")

	c.out.title("Container Runtime")
	var toolkitErr error
	rt, rtErr := services.DetectRuntime(ctx, c.env.runner, c.cfg.ContainerRuntime)
	if rtErr != nil {
		c.out.fail(rtErr.Error())
	} else {
		verify := c.cfg.GPU.VerifyContainer
		detector := gpu.NewToolkitDetector(c.env.runner, c.logger, rt.Binary(), c.cfg.GPU.TestImage)
		toolkit := detector.DetectContainerToolkit(ctx, verify)
		toolkitErr = reportToolkit(c, rt.Binary(), verify, toolkit)
	}
	c.out.line("")

	if opts.save != "" {
		if err := gpu.SaveReport(c.logger, report, opts.save); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		c.out.line("Detailed report saved to: %s", opts.save)
	}

	// The probe is the point of this command, so its failure is fatal here.
	if probeErr != nil {
		return fatal(probeErr)
	}
	if toolkitErr != nil {
		return fatal(toolkitErr)
	}
	return nil
}

// reportToolkit prints the toolkit result. When the container run was
// requested its outcome decides success; the runtime list alone is not proof.
func reportToolkit(c *cli, binary string, verified bool, toolkit gpu.ContainerToolkitReport) error {
	if toolkit.ToolkitVersion != "" {
		c.out.field("Toolkit Version", toolkit.ToolkitVersion)
	}

	if verified {
		if toolkit.ContainerRun {
			c.out.ok(fmt.Sprintf("GPU visible inside %s containers", binary))
			c.out.field("Container GPU", toolkit.ContainerGPU)
			return nil
		}
		c.out.fail(fmt.Sprintf("%s --gpus all container run failed: %s", binary, toolkit.ErrorMessage))
		return failure.New(failure.ProbeUnavailable, "container gpu check", errors.New(toolkit.ErrorMessage)).
			WithHint(fmt.Sprintf("Run 'sudo nvidia-ctk runtime configure --runtime=%s' and restart the daemon, or pass --container=false to skip this check", binary))
	}

	if toolkit.DockerSupport {
		c.out.ok(fmt.Sprintf("%s lists the nvidia runtime (container run not verified)", binary))
		return nil
	}
	c.out.warn(fmt.Sprintf("%s GPU support not detected: %s", binary, toolkit.ErrorMessage))
	c.out.hint("Install the NVIDIA Container Toolkit: https://docs.nvidia.com/datacenter/cloud-native/container-toolkit/install-guide.html")
	return nil
}
