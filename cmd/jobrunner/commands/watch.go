package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulntor/jobrunner/cmd/jobrunner/internal/format"
	"github.com/vulntor/jobrunner/pkg/jobs"
	"github.com/vulntor/jobrunner/pkg/storage"
)

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "watch <job-id>",
		GroupID: "jobs",
		Short:   "Follow a job until it finishes",
		Long: `Print a line every time the job's status record changes and the final
record once the job finishes. The file backend is watched for changes; other
backends are polled. Interrupting the command stops watching without
affecting the job.`,
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
			f := format.FromCommand(cmd)
			ctx := cmd.Context()

			var final *jobs.Status
			if store, ok := storage.FromContext(ctx); ok {
				if fileStore, ok := store.(*storage.FileStore); ok {
					final, err = watchFile(cmd, fileStore, jobs.Key{JobID: id, Kind: mgr.Kind()}, f)
					if err != nil {
						return err
					}
				}
			}
			if final == nil {
				if final, err = awaitJob(ctx, mgr, id, f, false); err != nil {
					return err
				}
			}

			if err := printStatus(f, final, nil); err != nil {
				return err
			}
			return jobFailure(final)
		},
	}
}

// watchFile follows key through fsnotify events. The record has to exist
// before watching starts.
func watchFile(cmd *cobra.Command, store *storage.FileStore, key jobs.Key, f format.Formatter) (*jobs.Status, error) {
	ctx := cmd.Context()
	if _, err := store.Get(ctx, key); err != nil {
		return nil, err
	}

	updates, err := store.Watch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("watch job %s: %w", key.JobID, err)
	}

	var last *jobs.Status
	for st := range updates {
		_ = f.PrintProgress(progressLine(st))
		last = st
	}
	if err := ctx.Err(); err != nil {
		return last, err
	}
	if last == nil || !last.State.Terminal() {
		return nil, fmt.Errorf("watch job %s: stream ended before the job finished", key.JobID)
	}
	return last, nil
}
