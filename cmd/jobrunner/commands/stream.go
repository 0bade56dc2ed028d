package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vulntor/jobrunner/cmd/jobrunner/internal/format"
	"github.com/vulntor/jobrunner/pkg/config"
	"github.com/vulntor/jobrunner/pkg/demo"
	"github.com/vulntor/jobrunner/pkg/pipe"
	"github.com/vulntor/jobrunner/pkg/pipeloop"
)

// streamView is the printable summary of a pipe loop run.
type streamView struct {
	JobID     string  `json:"job_id" yaml:"job_id"`
	State     string  `json:"state" yaml:"state"`
	Records   int64   `json:"records" yaml:"records"`
	Sum       int64   `json:"sum" yaml:"sum"`
	Discarded int64   `json:"discarded" yaml:"discarded"`
	Elapsed   string  `json:"elapsed" yaml:"elapsed"`
	Rate      float64 `json:"records_per_sec" yaml:"records_per_sec"`
}

func newStreamCommand() *cobra.Command {
	var (
		params       map[string]string
		batch        int
		printRecords bool
	)

	cmd := &cobra.Command{
		Use:     "stream",
		GroupID: "jobs",
		Short:   "Produce records in a background job and consume them through a pipe",
		Long: `Start the sequence producer as a background job writing into a bounded
record pipe, and consume the pipe in batches until the producer finishes.

With --pipe.record_limit the producer is canceled once that many records were
consumed. A producer that writes nothing for --pipe.stall_timeout fails the run.

Producer parameters: count=1000 (0 = until canceled) interval=0 check_every=100`,
		Example: `  jobrunner stream --param count=100000
  jobrunner stream --param count=0 --pipe.record_limit 5000 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, err := demo.ParseSequenceParams(demo.Params(params))
			if err != nil {
				return err
			}
			if batch <= 0 {
				return fmt.Errorf("%w: --batch must be positive", ErrInvalidFlag)
			}

			cfg, err := commandConfig(cmd)
			if err != nil {
				return err
			}
			mgr, err := commandJobs(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			records := pipe.New[int64](cfg.Pipe.Capacity)
			loop := pipeloop.New(mgr, records, pipeloop.WithConfig(cfg.Pipe.LoopConfig()))

			out := cmd.OutOrStdout()
			var sum int64
			consume := func(context.Context) (int, error) {
				return records.DrainTo(batch, func(v int64) error {
					sum += v
					if printRecords {
						_, err := fmt.Fprintln(out, v)
						return err
					}
					return nil
				})
			}

			res, err := loop.Run(ctx, "sequence", demo.Sequence(records, sp), consume)
			if err != nil {
				return err
			}

			view := streamView{
				JobID:     res.JobID.String(),
				State:     string(res.State),
				Records:   res.Records,
				Sum:       sum,
				Discarded: records.Discarded(),
				Elapsed:   res.Elapsed.String(),
			}
			if secs := res.Elapsed.Seconds(); secs > 0 {
				view.Rate = float64(res.Records) / secs
			}

			f := format.FromCommand(cmd)
			return f.PrintData(view, []string{"field", "value"}, [][]string{
				{"job_id", view.JobID},
				{"state", view.State},
				{"records", fmt.Sprint(view.Records)},
				{"sum", fmt.Sprint(view.Sum)},
				{"discarded", fmt.Sprint(view.Discarded)},
				{"elapsed", view.Elapsed},
				{"records_per_sec", fmt.Sprintf("%.0f", view.Rate)},
			})
		},
	}

	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "Producer parameter as key=value (repeatable)")
	cmd.Flags().IntVar(&batch, "batch", 100, "Maximum records consumed per consumer call")
	cmd.Flags().BoolVar(&printRecords, "print", false, "Print every consumed record")
	config.BindPipeFlags(cmd.Flags())

	return cmd
}
