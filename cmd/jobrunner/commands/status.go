package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vulntor/jobrunner/cmd/jobrunner/internal/format"
	"github.com/vulntor/jobrunner/pkg/backoff"
	"github.com/vulntor/jobrunner/pkg/jobs"
)

// statusView is the printable form of a status record.
type statusView struct {
	JobID           string     `json:"job_id" yaml:"job_id"`
	Kind            string     `json:"kind" yaml:"kind"`
	Name            string     `json:"job_name" yaml:"job_name"`
	State           string     `json:"state" yaml:"state"`
	Message         string     `json:"message,omitempty" yaml:"message,omitempty"`
	Current         *int64     `json:"current,omitempty" yaml:"current,omitempty"`
	Total           *int64     `json:"total,omitempty" yaml:"total,omitempty"`
	CancelRequested bool       `json:"cancel_requested" yaml:"cancel_requested"`
	Error           string     `json:"error,omitempty" yaml:"error,omitempty"`
	Result          any        `json:"result,omitempty" yaml:"result,omitempty"`
	CreatedAt       time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" yaml:"updated_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

func newStatusView(st *jobs.Status) statusView {
	return statusView{
		JobID:           st.JobID.String(),
		Kind:            string(st.Kind),
		Name:            st.JobName,
		State:           string(st.State),
		Message:         st.Message,
		Current:         st.Current,
		Total:           st.Total,
		CancelRequested: st.CancelRequested,
		Error:           st.Error,
		CreatedAt:       st.CreatedAt,
		UpdatedAt:       st.UpdatedAt,
		FinishedAt:      st.FinishedAt,
	}
}

func printStatus(f format.Formatter, st *jobs.Status, result any) error {
	view := newStatusView(st)
	view.Result = result

	rows := [][]string{
		{"job_id", view.JobID},
		{"name", view.Name},
		{"state", view.State},
	}
	if p := st.ProgressString(); p != "" {
		rows = append(rows, []string{"progress", p})
	}
	if view.Message != "" {
		rows = append(rows, []string{"message", view.Message})
	}
	if view.CancelRequested {
		rows = append(rows, []string{"cancel_requested", "true"})
	}
	if view.Error != "" {
		rows = append(rows, []string{"error", view.Error})
	}
	if result != nil {
		rows = append(rows, []string{"result", fmt.Sprint(result)})
	}
	if view.FinishedAt != nil {
		rows = append(rows, []string{"elapsed", view.FinishedAt.Sub(view.CreatedAt).Round(time.Millisecond).String()})
	}
	return f.PrintData(view, []string{"field", "value"}, rows)
}

// progressLine renders a one-line summary used while following a job.
func progressLine(st *jobs.Status) string {
	line := fmt.Sprintf("[%s] %s", st.State, st.JobName)
	if p := st.ProgressString(); p != "" {
		line += " " + p
	}
	if st.Message != "" {
		line += ": " + st.Message
	}
	if st.CancelRequested && !st.State.Terminal() {
		line += " (cancel requested)"
	}
	return line
}

// awaitJob polls the record of id until it is terminal, printing a line each
// time it changes. When cancelOnDone is set, ctx ending requests cancellation
// and polling continues until the job honors it; otherwise ctx ending stops
// the wait.
func awaitJob(ctx context.Context, mgr *jobs.Manager, id uuid.UUID, f format.Formatter, cancelOnDone bool) (*jobs.Status, error) {
	pollCtx := ctx
	if cancelOnDone {
		pollCtx = context.WithoutCancel(ctx)
	}
	done := ctx.Done()
	poll := backoff.NewPoll(20*time.Millisecond, 500*time.Millisecond)

	var last string
	for {
		st, err := mgr.GetStatus(pollCtx, id)
		if err != nil {
			return nil, err
		}
		if line := progressLine(st); line != last {
			_ = f.PrintProgress(line)
			last = line
			poll.Reset()
		}
		if st.State.Terminal() {
			return st, nil
		}

		timer := time.NewTimer(poll.Next())
		select {
		case <-timer.C:
		case <-done:
			timer.Stop()
			if !cancelOnDone {
				return st, ctx.Err()
			}
			done = nil
			_ = f.PrintProgress("Interrupted, requesting cancellation")
			if err := mgr.Cancel(pollCtx, id); err != nil {
				return st, err
			}
		}
	}
}

// jobFailure converts an ERROR record into the error the command returns.
func jobFailure(st *jobs.Status) error {
	if st.State != jobs.StateError {
		return nil
	}
	return fmt.Errorf("job %s (%s) failed: %w", st.JobName, st.JobID, st.CaughtError())
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status <job-id>",
		GroupID: "jobs",
		Short:   "Show the status record of a job",
		Example: `  jobrunner status 0b6f7c1e-0d0a-4d43-9f57-2a1c3a7f2d10
  jobrunner status 0b6f7c1e-0d0a-4d43-9f57-2a1c3a7f2d10 -o yaml`,
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

			st, err := mgr.GetStatus(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printStatus(format.FromCommand(cmd), st, nil)
		},
	}
}
