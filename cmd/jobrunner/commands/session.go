package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/jobrunner/pkg/appctx"
	"github.com/vulntor/jobrunner/pkg/config"
	"github.com/vulntor/jobrunner/pkg/jobs"
	"github.com/vulntor/jobrunner/pkg/logging"
	"github.com/vulntor/jobrunner/pkg/storage"
)

// shutdownTimeout bounds how long the CLI waits for running jobs on exit.
const shutdownTimeout = 10 * time.Second

// session owns everything a command opens for its lifetime.
type session struct {
	cfg    config.Config
	store  storage.Store
	jobs   *jobs.Manager
	logOut io.Closer
}

// openSession configures logging and, when withStore is set, opens the
// status store and the job manager on top of it.
func openSession(ctx context.Context, cfg config.Config, withStore bool) (*session, context.Context, error) {
	logOut, err := logging.SetupOutput(cfg.Log.Format, cfg.Log.File)
	if err != nil {
		return nil, ctx, err
	}
	if err := logging.ConfigureGlobalLogging(cfg.Log.Level); err != nil {
		_ = logOut.Close()
		return nil, ctx, err
	}

	rt := &session{cfg: cfg, logOut: logOut}
	if !withStore {
		return rt, ctx, nil
	}

	store, err := storage.NewStatusStore(ctx, &cfg.Store)
	if err != nil {
		_ = logOut.Close()
		return nil, ctx, fmt.Errorf("open status store: %w", err)
	}
	rt.store = store
	rt.jobs = jobs.NewManager(store,
		jobs.WithLogger(log.Logger),
		jobs.WithMaxConcurrent(cfg.Jobs.MaxConcurrent),
		jobs.WithStatusKind(jobs.StatusKind(cfg.Jobs.StatusKind)),
	)

	ctx = storage.WithStore(ctx, store)
	ctx = appctx.WithJobs(ctx, rt.jobs)
	return rt, ctx, nil
}

// Close waits for running jobs, then releases the store and the log file.
func (r *session) Close() error {
	var errs []error
	if r.jobs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := r.jobs.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("wait for running jobs: %w", err))
		}
		cancel()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close status store: %w", err))
		}
	}
	if r.logOut != nil {
		if err := r.logOut.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// commandConfig returns the configuration loaded by the root command.
func commandConfig(cmd *cobra.Command) (config.Config, error) {
	mgr, ok := appctx.Config(cmd.Context())
	if !ok {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return mgr.Get(), nil
}

// commandJobs returns the job manager opened by the root command.
func commandJobs(cmd *cobra.Command) (*jobs.Manager, error) {
	mgr, ok := appctx.Jobs(cmd.Context())
	if !ok {
		return nil, errors.New("job manager not initialized")
	}
	return mgr, nil
}

func parseJobID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w %q: %v", ErrInvalidJobID, arg, err)
	}
	return id, nil
}
