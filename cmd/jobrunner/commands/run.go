package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vulntor/jobrunner/cmd/jobrunner/internal/format"
	"github.com/vulntor/jobrunner/pkg/demo"
)

func newRunCommand() *cobra.Command {
	var (
		params  map[string]string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:     "run <job>",
		GroupID: "jobs",
		Short:   "Run a job, waiting up to the sync timeout before following it in the background",
		Long: fmt.Sprintf(`Start a job and wait for it for up to --timeout (jobs.sync_timeout).

Jobs that finish in time print their result directly. Longer jobs are moved
to the background: their ID is printed and progress is followed until they
finish. Interrupting the command requests cancellation and waits for the job
to stop.

Available jobs: %s
  counter  steps=10 interval=100ms fail_at=0
  fail     message="demo job failed"`, strings.Join(demo.Names(), ", ")),
		Example: `  jobrunner run counter --param steps=50 --param interval=200ms
  jobrunner run counter --timeout 0 --store.backend file
  jobrunner run fail -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			body, err := demo.Lookup(name, demo.Params(params))
			if err != nil {
				return err
			}

			cfg, err := commandConfig(cmd)
			if err != nil {
				return err
			}
			mgr, err := commandJobs(cmd)
			if err != nil {
				return err
			}

			wait := cfg.Jobs.SyncTimeout
			if cmd.Flags().Changed("timeout") {
				wait = timeout
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			f := format.FromCommand(cmd)
			out, startErr := mgr.Start(ctx, name, wait, body)
			if !out.Async() {
				if out.JobID == uuid.Nil {
					return startErr
				}
				// Finished inside the wait window.
				st, err := mgr.GetStatus(context.WithoutCancel(ctx), out.JobID)
				if err != nil {
					return err
				}
				if perr := printStatus(f, st, out.Result); perr != nil {
					return perr
				}
				return startErr
			}

			_ = f.PrintSummary(fmt.Sprintf("Job %s is running in the background", out.JobID))
			if startErr != nil {
				// The wait was interrupted before the timeout.
				ctx = canceledContext(ctx)
			}

			st, err := awaitJob(ctx, mgr, out.JobID, f, true)
			if err != nil {
				return err
			}
			if err := printStatus(f, st, nil); err != nil {
				return err
			}
			return jobFailure(st)
		},
	}

	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "Job parameter as key=value (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Override jobs.sync_timeout for this run (0 = background at once, negative = wait)")

	return cmd
}

// canceledContext returns a context that is already done, so awaitJob
// requests cancellation on its first iteration.
func canceledContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	cancel()
	return ctx
}
