package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulntor/jobrunner/cmd/jobrunner/internal/format"
)

func newCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "cancel <job-id>",
		GroupID: "jobs",
		Short:   "Request cancellation of a running job",
		Long: `Sets the cancel flag on the job's status record. The job stops the next
time it checks the flag; use 'jobrunner watch' to follow it. Finished jobs are
left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			mgr, err := commandJobs(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := mgr.Cancel(ctx, id); err != nil {
				return err
			}
			st, err := mgr.GetStatus(ctx, id)
			if err != nil {
				return err
			}

			f := format.FromCommand(cmd)
			if st.State.Terminal() {
				_ = f.PrintSummary(fmt.Sprintf("Job %s already finished (%s)", id, st.State))
			} else {
				_ = f.PrintSummary(fmt.Sprintf("Cancellation requested for job %s", id))
			}
			return printStatus(f, st, nil)
		},
	}
}
