package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gpustack/internal/config"
	"gpustack/internal/configdir"
	"gpustack/internal/execx"
	"gpustack/internal/failure"
	"gpustack/internal/gpulock"
	"gpustack/internal/logging"
	"gpustack/internal/prompt"
	"gpustack/internal/services"
)

// environment holds process-level collaborators so commands can be driven
// from tests without touching the real system
type environment struct {
	runner    execx.Runner
	getenv    func(string) string
	stdin     *os.File
	stdout    io.Writer
	stderr    io.Writer
	confirmer prompt.Confirmer
	clock     services.Clock
}

func defaultEnvironment() environment {
	return environment{
		runner: execx.NewExecRunner(),
		getenv: os.Getenv,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// globalOptions are the persistent root flags
type globalOptions struct {
	configPath string
	logLevel   string
	runtime    string
	verbose    bool
}

// cli is the state shared by every command after configuration is loaded
type cli struct {
	env    environment
	opts   globalOptions
	cfg    config.Config
	logger *logging.Logger
	runID  string
	out    console
}

// run executes the command line and maps the outcome to an exit code
func run(ctx context.Context, args []string, env environment) int {
	c := &cli{env: env, out: newConsole(env.stdout)}
	root := newRootCommand(c)
	root.SetArgs(args)
	root.SetOut(env.stdout)
	root.SetErr(env.stderr)

	err := root.ExecuteContext(ctx)
	c.close()

	code := failure.ExitCode(err)
	var forced *fatalError
	if errors.As(err, &forced) {
		code = failure.ExitFatal
	}
	if code == failure.ExitOK {
		if err != nil {
			c.out.warn(err.Error())
		}
		return code
	}

	errOut := newConsole(env.stderr)
	errOut.fail(err.Error())
	if hint := failure.HintOf(err); hint != "" {
		errOut.hint(hint)
	}
	return code
}

// fatalError marks an otherwise soft failure as fatal for the current command
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }

func (e *fatalError) Unwrap() error { return e.err }

func fatal(err error) error {
	return &fatalError{err: err}
}

func newRootCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gpustack",
		Short: "Run Ollama in Docker on an NVIDIA GPU",
		Long: `gpustack checks Docker and the NVIDIA driver stack, starts the Ollama
container from a compose file, waits for its health check and pulls a
quantized model.

Configuration is read from /etc/gpustack/config.yaml, ~/.gpustack/config.yaml,
the --config file, OLLAMA_* / GPUSTACK_* environment variables and flags, in
increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&c.opts.configPath, "config", "c", "", "config file (yaml or toml)")
	cmd.PersistentFlags().StringVar(&c.opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&c.opts.runtime, "runtime", "", "container runtime (docker or podman)")
	cmd.PersistentFlags().BoolVarP(&c.opts.verbose, "verbose", "v", false, "write info and debug logs to stderr")

	cmd.AddCommand(
		newSetupCommand(c),
		newGPUCheckCommand(c),
		newStartCommand(c),
		newStatusCommand(c),
		newLogsCommand(c),
		newPullCommand(c),
		newValidateCommand(c),
		newModelsCommand(c),
		newDiagCommand(c),
		newUnlockCommand(c),
		newConfigCommand(c),
		newVersionCommand(c),
	)

	return cmd
}

// load builds the effective configuration and the logger. Command-specific
// overrides are applied last.
func (c *cli) load(o config.Overrides) error {
	cfg, err := config.Load(c.opts.configPath, c.env.getenv)
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(o)
	if c.opts.runtime != "" {
		cfg.ContainerRuntime = c.opts.runtime
	}
	if c.opts.logLevel != "" {
		cfg.Logging.Level = c.opts.logLevel
	}
	if verrs := cfg.Validate(); len(verrs) > 0 {
		return errors.New(config.FormatValidationErrors(verrs))
	}
	c.cfg = cfg

	logger, err := c.newLogger()
	if err != nil {
		return err
	}
	c.runID = uuid.NewString()
	c.logger = logger.WithRunID(c.runID)
	return nil
}

func (c *cli) newLogger() (*logging.Logger, error) {
	level, err := logging.ParseLevel(c.cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format := logging.Format(c.cfg.Logging.Format)

	if c.cfg.Logging.File != "" {
		return logging.NewFileLogger(level, format, c.cfg.Logging.File)
	}

	// Without a log file stderr only carries warnings unless -v is given,
	// so console output stays readable.
	if !c.opts.verbose && (level == logging.LevelDebug || level == logging.LevelInfo) {
		level = logging.LevelWarn
	}
	return logging.NewLoggerWithWriter(level, format, c.env.stderr), nil
}

func (c *cli) close() {
	if c.logger != nil {
		if err := c.logger.Close(); err != nil {
			fmt.Fprintf(c.env.stderr, "failed to close log file: %v\n", err)
		}
	}
}

// withHostLock runs fn while holding the host lock for this run
func (c *cli) withHostLock(holder string, fn func() error) error {
	lock := gpulock.NewManager(configdir.StateDir(), c.logger)
	if err := lock.Acquire(holder, c.runID); err != nil {
		if errors.Is(err, gpulock.ErrHeld) {
			return failure.New(failure.HostBusy, holder, err).
				WithHint(fmt.Sprintf("Wait for the other run to finish, or run 'gpustack unlock' to remove %s", lock.Path()))
		}
		return err
	}
	defer func() {
		if err := lock.Release(c.runID); err != nil {
			c.logger.Warn("gpu.lock.release_failed", "Failed to release GPU host lock", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()
	return fn()
}

func (c *cli) runtime() services.Runtime {
	return services.NewGenericRuntime(c.cfg.ContainerRuntime, c.env.runner)
}

func (c *cli) clock() services.Clock {
	if c.env.clock != nil {
		return c.env.clock
	}
	return services.RealClock{}
}

// confirmer prefers an injected confirmer, then the interactive prompt on a TTY
func (c *cli) confirmer() prompt.Confirmer {
	if c.env.confirmer != nil {
		return c.env.confirmer
	}
	if c.env.stdin != nil {
		if out, ok := c.env.stdout.(*os.File); ok {
			return prompt.NewTerminalConfirmer(c.env.stdin, out)
		}
		return prompt.NewLineConfirmer(c.env.stdin, c.env.stdout)
	}
	return prompt.DenyConfirmer{}
}

func boolFlag(cmd *cobra.Command, name string, value bool) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}
