package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gpustack/internal/config"
	"gpustack/internal/configdir"
	"gpustack/internal/gpulock"
	"gpustack/internal/services"
)

type serviceOptions struct {
	container   string
	composeFile string
}

func (o *serviceOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.container, "container", "", "container name")
	cmd.Flags().StringVarP(&o.composeFile, "compose-file", "f", "", "compose file")
}

func (o *serviceOptions) overrides() config.Overrides {
	return config.Overrides{ContainerName: o.container, ComposeFile: o.composeFile}
}

func (c *cli) ollamaService() *services.OllamaService {
	target := services.Target{
		ComposeFile: c.cfg.ComposeFile,
		Service:     c.cfg.ServiceName,
		Container:   c.cfg.ContainerName,
	}
	return services.NewOllamaService(target, c.cfg.Ollama.URL, c.runtime(), c.clock(), c.logger)
}

func newStartCommand(c *cli) *cobra.Command {
	opts := &serviceOptions{}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the Ollama container and wait until it is healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(opts.overrides()); err != nil {
				return err
			}

			timeout := time.Duration(c.cfg.Health.TimeoutSeconds) * time.Second
			interval := time.Duration(c.cfg.Health.IntervalSeconds) * time.Second
			c.out.line("Starting %s (timeout %s, poll every %s)...", c.cfg.ServiceName, timeout, interval)

			return c.withHostLock("start", func() error {
				res, err := c.ollamaService().Start(cmd.Context(), timeout, interval)
				if err != nil {
					return err
				}
				c.out.ok(fmt.Sprintf("%s is healthy after %d poll(s)", c.cfg.ContainerName, res.Polls))
				return nil
			})
		},
	}
	opts.bind(cmd)

	return cmd
}

func newStatusCommand(c *cli) *cobra.Command {
	opts := &serviceOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show container state, health and API reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(opts.overrides()); err != nil {
				return err
			}

			status, err := c.ollamaService().Status(cmd.Context())
			if err != nil {
				return err
			}

			c.out.title("Service Status")
			c.out.field("Service", status.Name)
			c.out.field("Container", status.Container)
			c.out.field("Daemon", reachability(status.Daemon))
			c.out.field("State", status.State)
			c.out.field("Health", status.Health)
			c.out.field("API", fmt.Sprintf("%s (%s)", status.Endpoint, c.cfg.Ollama.URL))
			if status.Message != "" {
				c.out.field("Message", status.Message)
			}

			lock, err := gpulock.NewManager(configdir.StateDir(), c.logger).GetStatus()
			switch {
			case err != nil:
				c.out.field("Host Lock", "unreadable: "+err.Error())
			case lock.Free():
				c.out.field("Host Lock", "free")
			default:
				c.out.field("Host Lock", fmt.Sprintf("%s (run %s, pid %d, since %s)",
					lock.Holder, lock.RunID, lock.PID, lock.SinceTS.Format(time.RFC3339)))
			}
			return nil
		},
	}
	opts.bind(cmd)

	return cmd
}

func newLogsCommand(c *cli) *cobra.Command {
	opts := &serviceOptions{}
	tail := 100

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the Ollama container logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(opts.overrides()); err != nil {
				return err
			}

			logs, err := c.ollamaService().Logs(cmd.Context(), tail)
			if err != nil {
				return err
			}
			fmt.Fprint(c.env.stdout, logs)
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().IntVarP(&tail, "tail", "n", tail, "number of lines to show (0 for all)")

	return cmd
}

func newUnlockCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Remove the host lock left behind by a crashed run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(config.Overrides{}); err != nil {
				return err
			}

			previous, err := gpulock.NewManager(configdir.StateDir(), c.logger).ForceUnlock()
			if err != nil {
				return fmt.Errorf("failed to remove host lock: %w", err)
			}
			if previous.Free() {
				c.out.ok("Host lock was not held")
				return nil
			}
			c.out.ok(fmt.Sprintf("Removed host lock held by %s (run %s)", previous.Holder, previous.RunID))
			return nil
		},
	}
}

func reachability(ok bool) string {
	if ok {
		return "reachable"
	}
	return "unreachable"
}
