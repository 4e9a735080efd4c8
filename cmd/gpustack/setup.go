package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gpustack/internal/config"
	"gpustack/internal/setup"
)

type setupOptions struct {
	mode        string
	container   string
	composeFile string
	skipGPU     bool
	json        bool
}

func newSetupCommand(c *cli) *cobra.Command {
	opts := &setupOptions{}

	cmd := &cobra.Command{
		Use:   "setup [MODEL]",
		Short: "Check prerequisites, start Ollama and pull a model",
		Long: `Run the full provisioning flow: docker check, model name policy, GPU probe,
VRAM advice, compose up with health polling, model pull and an API
reachability check. Warnings do not change the exit code; any fatal step
exits with status 1.`,
		Example: `  gpustack setup
  gpustack setup llama3:8b-instruct-q4_K_M
  OLLAMA_MODEL=mistral:7b-instruct-q5_K_M gpustack setup --mode warn`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := config.Overrides{
				ContainerName:  opts.container,
				ComposeFile:    opts.composeFile,
				ValidationMode: opts.mode,
				SkipGPU:        boolFlag(cmd, "skip-gpu", opts.skipGPU),
			}
			if len(args) == 1 {
				o.Model = args[0]
			}
			if err := c.load(o); err != nil {
				return err
			}
			return c.withHostLock("setup", func() error {
				return runSetup(cmd, c, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", "", "validation mode for unquantized names (strict or warn)")
	cmd.Flags().StringVar(&opts.container, "container", "", "container name to watch")
	cmd.Flags().StringVarP(&opts.composeFile, "compose-file", "f", "", "compose file to start")
	cmd.Flags().BoolVar(&opts.skipGPU, "skip-gpu", false, "skip the GPU probe")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the final report as JSON")

	return cmd
}

func runSetup(cmd *cobra.Command, c *cli, opts *setupOptions) error {
	if !opts.json {
		c.out.title(fmt.Sprintf("gpustack setup (%s, %s mode)", c.cfg.Model, c.cfg.Validation.Mode))
	}

	deps := setup.Deps{
		Runner:    c.env.runner,
		Runtime:   c.runtime(),
		Clock:     c.clock(),
		Confirmer: c.confirmer(),
		Logger:    c.logger,
	}
	if !opts.json {
		deps.OnStep = c.out.step
		deps.PullProgress = c.env.stdout
	}

	report, err := setup.NewFlow(c.cfg, deps).Run(cmd.Context())
	report.RunID = c.runID

	if opts.json {
		data, jerr := json.MarshalIndent(report, "", "  ")
		if jerr != nil {
			return fmt.Errorf("failed to encode report: %w", jerr)
		}
		c.out.line("%s", data)
		return err
	}

	if err == nil {
		if n := len(report.Warnings()); n > 0 {
			c.out.ok(fmt.Sprintf("Setup finished with %d warning(s) in %s", n, report.Duration.Round(time.Millisecond)))
		} else {
			c.out.ok(fmt.Sprintf("Setup finished in %s", report.Duration.Round(time.Millisecond)))
		}
		c.out.line("  Try: docker exec -it %s ollama run %s", c.cfg.ContainerName, c.cfg.Model)
	}
	return err
}
