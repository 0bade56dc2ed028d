// pkg/config/types.go
package config

import (
	"time"

	"github.com/vulntor/jobrunner/pkg/pipeloop"
	"github.com/vulntor/jobrunner/pkg/storage"
)

// Config is the root configuration structure for jobrunner.
type Config struct {
	Log   LogConfig      `description:"Logging configuration" koanf:"log"`
	Jobs  JobsConfig     `description:"Job manager configuration" koanf:"jobs"`
	Store storage.Config `description:"Status store configuration" koanf:"store"`
	Pipe  PipeConfig     `description:"Record pipe and pipe loop configuration" koanf:"pipe"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level (trace, debug, info, warn, error)" koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Format string `description:"Log format: json | text" koanf:"format" validate:"omitempty,oneof=json text"`
	File   string `description:"Log file path" koanf:"file"`
}

// JobsConfig configures the job manager.
type JobsConfig struct {
	// SyncTimeout is how long `run` waits before a job goes to the background.
	// Zero escalates at once, a negative value waits for completion.
	SyncTimeout time.Duration `description:"Time budget before a job goes async" koanf:"sync_timeout"`

	MaxConcurrent int    `description:"Maximum number of concurrently running jobs" koanf:"max_concurrent" validate:"gte=1"`
	StatusKind    string `description:"Status kind used for job records" koanf:"status_kind" validate:"required,excludesall=/. "`
}

// PipeConfig configures the record pipe and the loop draining it.
type PipeConfig struct {
	Capacity       int           `description:"Record pipe capacity (at least min_threshold)" koanf:"capacity" validate:"gte=1,gtefield=MinThreshold"`
	MinThreshold   int           `description:"Buffered records that trigger the consumer" koanf:"min_threshold" validate:"gte=1"`
	InitialBackoff time.Duration `description:"First idle poll interval" koanf:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `description:"Idle poll interval cap" koanf:"max_backoff" validate:"gtefield=InitialBackoff"`
	StallTimeout   time.Duration `description:"Fail when no records arrive for this long" koanf:"stall_timeout" validate:"gt=0"`
	RecordLimit    int64         `description:"Stop the producer after this many records (0 = no limit)" koanf:"record_limit" validate:"gte=0"`
}

// LoopConfig converts the pipe settings into pipe loop parameters.
func (p PipeConfig) LoopConfig() pipeloop.Config {
	return pipeloop.Config{
		MinThreshold:   p.MinThreshold,
		InitialBackoff: p.InitialBackoff,
		MaxBackoff:     p.MaxBackoff,
		StallTimeout:   p.StallTimeout,
		RecordLimit:    p.RecordLimit,
	}
}
