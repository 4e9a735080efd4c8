package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"gpustack/internal/config"
	"gpustack/internal/models"
)

func newPullCommand(c *cli) *cobra.Command {
	var mode, container string

	cmd := &cobra.Command{
		Use:   "pull MODEL",
		Short: "Validate and pull a model into the Ollama container",
		Long: `Pull a model with "ollama pull", inside the running container when it is
visible, otherwise with a local ollama binary. The name is checked first:
unquantized names are refused in strict mode and need confirmation in warn
mode.`,
		Example: `  gpustack pull llama3:8b-instruct-q4_K_M
  gpustack pull mistral:7b --mode warn`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(config.Overrides{Model: args[0], ValidationMode: mode, ContainerName: container}); err != nil {
				return err
			}

			puller := models.NewPuller(c.runtime(), c.env.runner, c.logger, models.PullerOptions{
				ContainerName: c.cfg.ContainerName,
				Binary:        c.cfg.Ollama.Binary,
				Mode:          models.Mode(c.cfg.Validation.Mode),
				Confirmer:     c.confirmer(),
				Progress:      c.env.stdout,
			})

			return c.withHostLock("pull", func() error {
				c.out.line("Pulling %s...", c.cfg.Model)
				res, err := puller.Pull(cmd.Context(), c.cfg.Model)
				if err != nil {
					return err
				}
				c.out.ok(fmt.Sprintf("Pulled %s via %s", res.Model, res.Target))
				for _, name := range res.Installed {
					c.out.line("  %s", name)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "validation mode (strict or warn)")
	cmd.Flags().StringVar(&container, "container", "", "container to pull into")

	return cmd
}

func newValidateCommand(c *cli) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "validate MODEL",
		Short: "Check a model name against the quantization policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(config.Overrides{Model: args[0], ValidationMode: mode}); err != nil {
				return err
			}

			v := models.Evaluate(c.cfg.Model)
			c.out.field("Model", v.Model)
			c.out.field("Verdict", v.Decision)
			if v.Reason != "" {
				c.out.field("Reason", v.Reason)
			}

			err := models.Validate(cmd.Context(), c.cfg.Model, models.Mode(c.cfg.Validation.Mode), c.confirmer())
			if err != nil {
				return err
			}
			c.out.ok(fmt.Sprintf("%s accepted (%s mode)", c.cfg.Model, c.cfg.Validation.Mode))
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "validation mode (strict or warn)")

	return cmd
}

func newModelsCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models installed in Ollama",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(config.Overrides{}); err != nil {
				return err
			}

			infos, err := models.NewOllamaClient(c.cfg.Ollama.URL, c.logger).List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to query %s: %w", c.cfg.Ollama.URL, err)
			}
			if len(infos) == 0 {
				c.out.line("No models installed at %s", c.cfg.Ollama.URL)
				c.out.hint("Run 'gpustack pull MODEL' to download one")
				return nil
			}

			tw := tabwriter.NewWriter(c.env.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED\tQUANTIZED")
			for _, m := range infos {
				modified := "-"
				if !m.ModifiedAt.IsZero() {
					modified = units.HumanDuration(time.Since(m.ModifiedAt)) + " ago"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", m.Name, units.HumanSize(float64(m.Size)), modified, models.HasQuantTag(m.Name))
			}
			return tw.Flush()
		},
	}

	return cmd
}
