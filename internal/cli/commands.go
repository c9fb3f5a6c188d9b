package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jobconsole/internal/apperrors"
	"jobconsole/internal/config"
	"jobconsole/internal/job"
	"jobconsole/pkg/backoff"
)

func (a *app) buildImagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "images",
		Short: "List available images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			images, err := a.backend.ListImages(ctx)
			if err != nil {
				return fmt.Errorf("failed to list images: %w", err)
			}
			return a.printer.images(images)
		},
	}
}

func (a *app) buildListCommand() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var want job.Status
			if status != "" {
				s, ok := job.ParseStatus(status)
				if !ok {
					return apperrors.Validation("status", "unknown status "+status)
				}
				want = s
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			jobs, err := a.backend.ListJobs(ctx)
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}
			if want != "" {
				filtered := jobs[:0]
				for _, j := range jobs {
					if j.Status == want {
						filtered = append(filtered, j)
					}
				}
				jobs = filtered
			}
			return a.printer.jobs(jobs)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only show jobs with this status")
	return cmd
}

func (a *app) buildGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			j, err := a.backend.GetJob(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get job: %w", err)
			}
			return a.printer.job(j)
		},
	}
}

func (a *app) buildLogsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <job-id>",
		Short: "Print the logs of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			logs, err := a.backend.GetLogs(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get logs: %w", err)
			}
			return a.printer.logs(logs)
		},
	}
}

func (a *app) buildStartCommand() *cobra.Command {
	var (
		name    string
		env     []string
		command string
		volumes []string
		ports   []string
		cpus    float64
		memory  string
	)

	cmd := &cobra.Command{
		Use:   "start <image>",
		Short: "Start a job from an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			envMap, err := job.ParseEnv(env)
			if err != nil {
				return err
			}
			cfg := job.Config{
				Name:    name,
				Env:     envMap,
				Command: job.ParseCommand(command),
				Volumes: volumes,
				Ports:   ports,
			}
			if cmd.Flags().Changed("cpus") {
				if err := job.ValidateCPUs(cpus); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("cpus") || memory != "" {
				cfg.Resources = &job.Resources{CPUs: cpus, Memory: memory}
			}
			image := args[0]
			if err := job.ValidateStart(image, cfg); err != nil {
				return err
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			j, err := a.backend.StartJob(ctx, image, cfg)
			if err != nil {
				return fmt.Errorf("failed to start job: %w", err)
			}
			return a.printer.job(j)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "job name (default: Job <id>)")
	flags.StringArrayVarP(&env, "env", "e", nil, "environment variable KEY=VALUE (repeatable)")
	flags.StringVar(&command, "cmd", "", "command line, split on whitespace")
	flags.StringArrayVar(&volumes, "volume", nil, "volume mapping host:container (repeatable)")
	flags.StringArrayVarP(&ports, "port", "p", nil, "port mapping host:container (repeatable)")
	flags.Float64Var(&cpus, "cpus", 0, "CPU limit")
	flags.StringVar(&memory, "memory", "", "memory limit, e.g. 512m")
	return cmd
}

func (a *app) buildStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <job-id>",
		Short: "Stop a pending or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			if err := a.backend.StopJob(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to stop job: %w", err)
			}
			return a.printer.message("Job %s stopped", args[0])
		},
	}
}

func (a *app) buildRestartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restart <job-id>",
		Short: "Restart a finished job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			j, err := a.backend.RestartJob(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to restart job: %w", err)
			}
			return a.printer.job(j)
		},
	}
}

func (a *app) buildWaitCommand() *cobra.Command {
	var (
		status  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait <job-id>",
		Short: "Wait until a job reaches a status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			want, ok := job.ParseStatus(status)
			if !ok {
				return apperrors.Validation("status", "unknown status "+status)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			j, err := a.waitFor(ctx, args[0], want)
			if err != nil {
				return err
			}
			return a.printer.job(j)
		},
	}

	cmd.Flags().StringVar(&status, "status", string(job.StatusRunning), "status to wait for")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "maximum time to wait")
	return cmd
}

// waitFor polls the job until it has status want. Transient failures are
// retried; a terminal status other than want ends the wait.
func (a *app) waitFor(ctx context.Context, id string, want job.Status) (*job.Job, error) {
	var last *job.Job
	err := backoff.Poll(ctx, a.clock, &backoff.Config{Initial: 200 * time.Millisecond, Max: 2 * time.Second},
		func(ctx context.Context) (bool, error) {
			j, err := a.backend.GetJob(ctx, id)
			switch {
			case apperrors.IsRetryable(err):
				return false, nil
			case err != nil:
				return false, err
			}
			last = j
			if j.Status == want {
				return true, nil
			}
			if j.Status.IsTerminal() && !want.IsTerminal() {
				return false, fmt.Errorf("job %s reached %s while waiting for %s", id, j.Status, want)
			}
			return false, nil
		})
	if err != nil {
		if ctx.Err() != nil && last != nil {
			return nil, fmt.Errorf("timed out waiting for job %s to reach %s (last status %s)", id, want, last.Status)
		}
		return nil, err
	}
	return last, nil
}

// effectiveSettings is what the settings command prints.
type effectiveSettings struct {
	Backend        string `json:"backend" yaml:"backend"`
	BackendAddress string `json:"backendAddress" yaml:"backendAddress"`
	Output         string `json:"output" yaml:"output"`
	Timeout        string `json:"timeout" yaml:"timeout"`
	ConfigFile     string `json:"configFile,omitempty" yaml:"configFile,omitempty"`
}

func (a *app) buildSettingsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Show effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := a.settings.Snapshot()
			s := effectiveSettings{
				Backend:        "remote",
				BackendAddress: snap.BackendAddress,
				Output:         a.cfg.Output,
				Timeout:        a.timeout.String(),
				ConfigFile:     a.cfg.ConfigFileUsed(),
			}
			if snap.UseSimulatedBackend {
				s.Backend = "simulated"
			}
			if ok, err := a.printer.structured(s); ok {
				return err
			}
			configFile := s.ConfigFile
			if configFile == "" {
				configFile = "(none, " + config.ConfigName + ".yaml not found)"
			}
			return a.printer.message("Backend:\t%s\nAddress:\t%s\nOutput:\t%s\nTimeout:\t%s\nConfig file:\t%s",
				s.Backend, s.BackendAddress, s.Output, s.Timeout, configFile)
		},
	}
}
