// Package appctx carries process-wide handles through command contexts.
package appctx

import (
	"context"

	"github.com/vulntor/jobrunner/pkg/config"
	"github.com/vulntor/jobrunner/pkg/jobs"
)

type key string

const (
	configKey key = "jobrunner.config.manager"
	jobsKey   key = "jobrunner.jobs.manager"
)

// WithConfig stores the shared config manager on context.
func WithConfig(ctx context.Context, manager *config.Manager) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey, manager)
}

// Config retrieves the shared config manager from context.
func Config(ctx context.Context) (*config.Manager, bool) {
	if ctx == nil {
		return nil, false
	}
	mgr, ok := ctx.Value(configKey).(*config.Manager)
	return mgr, ok && mgr != nil
}

// WithJobs stores the job manager on context.
func WithJobs(ctx context.Context, manager *jobs.Manager) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, jobsKey, manager)
}

// Jobs retrieves the job manager from context.
func Jobs(ctx context.Context) (*jobs.Manager, bool) {
	if ctx == nil {
		return nil, false
	}
	mgr, ok := ctx.Value(jobsKey).(*jobs.Manager)
	return mgr, ok && mgr != nil
}
