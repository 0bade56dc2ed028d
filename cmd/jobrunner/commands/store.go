package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulntor/jobrunner/cmd/jobrunner/internal/format"
	"github.com/vulntor/jobrunner/pkg/storage"
)

func newStoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "store",
		GroupID: "core",
		Short:   "Manage the status store",
	}
	cmd.AddCommand(newGCCommand())
	return cmd
}

func newGCCommand() *cobra.Command {
	var (
		dryRun bool
		maxAge time.Duration
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove finished job records older than a maximum age",
		Long: `Remove finished job records from the file backend once they are older
than --max-age (default: store.status_ttl). Running jobs are never removed.

The memory, redis and nats backends expire finished records on their own
through store.status_ttl, so there is nothing to collect for them.

Use --dry-run to preview which records would be deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := commandConfig(cmd)
			if err != nil {
				return err
			}
			store, ok := storage.FromContext(cmd.Context())
			if !ok {
				return fmt.Errorf("status store not initialized")
			}
			fileStore, ok := store.(*storage.FileStore)
			if !ok {
				return fmt.Errorf("store gc with backend %q: %w", cfg.Store.Backend, errUnsupportedBackend)
			}

			if !cmd.Flags().Changed("max-age") {
				maxAge = cfg.Store.StatusTTL
			}
			if maxAge <= 0 {
				return fmt.Errorf("%w: --max-age must be positive", ErrInvalidFlag)
			}

			res, err := fileStore.GC(cmd.Context(), storage.GCOptions{MaxAge: maxAge, DryRun: dryRun})
			if err != nil {
				return fmt.Errorf("garbage collection failed: %w", err)
			}

			f := format.FromCommand(cmd)
			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			_ = f.PrintSummary(fmt.Sprintf("%s %d of %d record(s) older than %s in %s", verb, len(res.Removed), res.Scanned, maxAge, fileStore.Dir()))

			rows := make([][]string, 0, len(res.Removed))
			for _, key := range res.Removed {
				rows = append(rows, []string{string(key.Kind), key.JobID.String()})
			}
			return f.PrintTable([]string{"kind", "job_id"}, rows)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview records to be deleted without deleting them")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Remove finished records older than this (default: store.status_ttl)")

	return cmd
}
