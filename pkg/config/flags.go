package config

import (
	"github.com/spf13/pflag"
)

// BindJobsFlags binds job manager flags to the provided FlagSet.
//
// Flags are namespaced under 'jobs.' to match the config keys.
// Example: --jobs.sync_timeout=30s
func BindJobsFlags(flags *pflag.FlagSet) {
	defaults := DefaultConfig().Jobs

	flags.Duration("jobs.sync_timeout", defaults.SyncTimeout, "Time to wait before a job goes to the background (0 = immediately, -1ns = wait)")
	flags.Int("jobs.max_concurrent", defaults.MaxConcurrent, "Maximum number of concurrently running jobs")
	flags.String("jobs.status_kind", defaults.StatusKind, "Status kind used for job records")
}

// BindStoreFlags binds status store flags to the provided FlagSet.
func BindStoreFlags(flags *pflag.FlagSet) {
	defaults := DefaultConfig().Store

	flags.String("store.backend", defaults.Backend, "Status store backend (memory, file, redis, nats)")
	flags.String("store.dir", defaults.Dir, "Status directory for the file backend")
	flags.Duration("store.status_ttl", defaults.StatusTTL, "How long finished job records are kept")
	flags.String("store.redis.addr", defaults.Redis.Addr, "Redis address")
	flags.Int("store.redis.db", defaults.Redis.DB, "Redis database number")
	flags.String("store.redis.prefix", defaults.Redis.Prefix, "Redis key prefix")
	flags.String("store.nats.url", defaults.NATS.URL, "NATS server URL")
	flags.String("store.nats.bucket", defaults.NATS.Bucket, "NATS key/value bucket")
}

// BindPipeFlags binds record pipe flags to the provided FlagSet. These are
// used by the 'jobrunner stream' command.
func BindPipeFlags(flags *pflag.FlagSet) {
	defaults := DefaultConfig().Pipe

	flags.Int("pipe.capacity", defaults.Capacity, "Record pipe capacity")
	flags.Int("pipe.min_threshold", defaults.MinThreshold, "Buffered records that trigger the consumer")
	flags.Duration("pipe.initial_backoff", defaults.InitialBackoff, "First idle poll interval")
	flags.Duration("pipe.max_backoff", defaults.MaxBackoff, "Idle poll interval cap")
	flags.Duration("pipe.stall_timeout", defaults.StallTimeout, "Fail when no records arrive for this long")
	flags.Int64("pipe.record_limit", defaults.RecordLimit, "Stop the producer after this many records (0 = no limit)")
}
