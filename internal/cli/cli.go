// Package cli implements jobctl, a command line console for the job client.
//
// Command structure:
//
//	jobctl
//	├── images                 list available images
//	├── list [--status S]      list jobs
//	├── get <id>               show one job
//	├── logs <id>              print job logs
//	├── start <image> [...]    start a job
//	├── stop <id>              stop a job
//	├── restart <id>           restart a job
//	├── wait <id>              poll until a job reaches a status
//	└── settings               show effective settings
//
// Settings come from flags, then JOBCTL_* environment variables, then
// jobctl.yaml, then defaults. The simulated backend lives only for the
// duration of one invocation.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"jobconsole/internal/client"
	"jobconsole/internal/config"
	"jobconsole/internal/job"
	"jobconsole/internal/remote"
	"jobconsole/internal/simulator"
)

// Version is reported by jobctl --version.
var Version = "dev"

// Option configures the CLI.
type Option func(*app)

// WithBackend makes every command use b instead of building a client from settings.
func WithBackend(b job.Backend) Option {
	return func(a *app) { a.backend = b }
}

// WithClock sets the clock used by wait.
func WithClock(c clock.Clock) Option {
	return func(a *app) { a.clock = c }
}

// WithOutput redirects command output and diagnostics.
func WithOutput(out, errOut io.Writer) Option {
	return func(a *app) {
		a.out = out
		a.errOut = errOut
	}
}

type app struct {
	cfgFile string
	verbose bool

	out     io.Writer
	errOut  io.Writer
	clock   clock.Clock
	backend job.Backend

	cfg      *config.ClientConfig
	settings *client.Settings
	printer  *printer
	timeout  time.Duration
}

// BuildCLI returns the jobctl root command.
func BuildCLI(opts ...Option) *cobra.Command {
	a := &app{
		out:    os.Stdout,
		errOut: os.Stderr,
		clock:  clock.RealClock{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a.rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "jobctl",
		Short:         "jobctl: manage container jobs on a real or simulated backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: ./jobctl.yaml if present)")
	flags.String("address", config.DefaultBackendAddress, "remote backend base URL")
	flags.Bool("simulated", true, "use the in-process simulated backend")
	flags.StringP("output", "o", "table", "output format: table, json or yaml")
	flags.Duration("timeout", config.DefaultRequestTimeout, "per-command timeout")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.buildImagesCommand(),
		a.buildListCommand(),
		a.buildGetCommand(),
		a.buildLogsCommand(),
		a.buildStartCommand(),
		a.buildStopCommand(),
		a.buildRestartCommand(),
		a.buildWaitCommand(),
		a.buildSettingsCommand(),
	)
	return root
}

// setup resolves settings and builds the backend once per invocation.
func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level})))

	cfg, err := config.LoadClientConfig(a.cfgFile)
	if err != nil {
		return err
	}
	v := cfg.Viper()
	flags := cmd.Flags()
	for key, name := range map[string]string{
		config.BackendAddressKey: "address",
		config.UseSimulatedKey:   "simulated",
		config.OutputKey:         "output",
		config.TimeoutKey:        "timeout",
	} {
		if f := flags.Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding --%s: %w", name, err)
			}
		}
	}
	cfg.BackendAddress = strings.TrimRight(v.GetString(config.BackendAddressKey), "/")
	cfg.UseSimulated = v.GetBool(config.UseSimulatedKey)
	cfg.Output = v.GetString(config.OutputKey)
	cfg.Timeout = v.GetDuration(config.TimeoutKey)
	a.cfg = cfg

	a.printer, err = newPrinter(a.out, cfg.Output)
	if err != nil {
		return err
	}
	a.timeout = cfg.Timeout
	if a.timeout <= 0 {
		a.timeout = config.DefaultRequestTimeout
	}

	a.settings = client.NewSettings()
	a.settings.SetBackendAddress(cfg.BackendAddress)
	a.settings.SetUseSimulatedBackend(cfg.UseSimulated)
	if a.backend != nil {
		return nil
	}

	if !cfg.UseSimulated {
		if err := job.ValidateAddress(cfg.BackendAddress); err != nil {
			return err
		}
	}
	a.backend = client.New(
		a.settings,
		simulator.New(simulator.DefaultConfig()),
		remote.New(a.settings, remote.Options{Timeout: a.timeout}),
		nil,
	)
	return nil
}

// commandContext bounds one command by the configured timeout.
func (a *app) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.timeout)
}
