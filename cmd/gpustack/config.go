package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gpustack/internal/config"
)

func newConfigCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(config.Overrides{}); err != nil {
				return err
			}
			data, err := yaml.Marshal(c.cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			fmt.Fprint(c.env.stdout, string(data))
			c.out.line("# model source: %s", c.cfg.ModelSource)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "test [PATH]",
		Short: "Validate a configuration file",
		Long:  "Validate a YAML or TOML configuration file. Without PATH the system config file is checked.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.SystemConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := config.LoadFrom(path); err != nil {
				return err
			}
			c.out.ok(fmt.Sprintf("%s is valid", path))
			return nil
		},
	})

	return cmd
}

func newVersionCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gpustack version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			c.out.line("gpustack version %s", version)
		},
	}
}
