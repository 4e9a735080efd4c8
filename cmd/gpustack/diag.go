package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gpustack/internal/config"
	"gpustack/internal/diag"
	"gpustack/internal/gpu"
)

type diagOptions struct {
	output  string
	noLogs  bool
	logTail int
}

func newDiagCommand(c *cli) *cobra.Command {
	opts := &diagOptions{}

	cmd := &cobra.Command{
		Use:   "diag",
		Short: "Write a support bundle with config, GPU report and container logs",
		Long: `Collect the effective configuration, the GPU report, container state and
recent container logs into a ZIP file with a checksummed manifest. Secrets in
configuration and logs are redacted.`,
		Example: `  gpustack diag
  gpustack diag --output /tmp/gpustack-diag.zip --tail 200`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(config.Overrides{}); err != nil {
				return err
			}

			cfg := diag.NewConfig(version, c.cfg.ContainerName, time.Now())
			cfg.RunID = c.runID
			cfg.LogFile = c.cfg.Logging.File
			cfg.IncludeLogs = !opts.noLogs
			if opts.output != "" {
				cfg.OutputPath = opts.output
			}
			if opts.logTail > 0 {
				cfg.LogTail = opts.logTail
			}

			sources := diag.Sources{
				Settings: &c.cfg,
				Runtime:  c.runtime(),
				Prober:   gpu.NewProber(c.cfg.GPU.Source, c.env.runner, c.logger),
			}
			path, err := diag.NewPackager(cfg, sources, c.logger).CreatePackage(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to create diagnostic package: %w", err)
			}
			c.out.ok(fmt.Sprintf("Diagnostic package written to %s", path))
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "bundle path (default gpustack-diag-<timestamp>.zip)")
	cmd.Flags().BoolVar(&opts.noLogs, "no-logs", false, "leave container and gpustack logs out of the bundle")
	cmd.Flags().IntVar(&opts.logTail, "tail", diag.DefaultLogTail, "container log lines to include")

	return cmd
}
