// pkg/config/config.go
package config

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/vulntor/jobrunner/pkg/jobs"
	"github.com/vulntor/jobrunner/pkg/pipe"
	"github.com/vulntor/jobrunner/pkg/pipeloop"
	"github.com/vulntor/jobrunner/pkg/storage"
)

// EnvPrefix is the prefix of environment variables read by EnvSource.
const EnvPrefix = "JOBRUNNER_"

// Global Koanf instance, initialized once at startup.
var (
	k    *koanf.Koanf
	once sync.Once
)

// InitGlobalConfig initializes the global Koanf instance.
// This should be called early in the application lifecycle, before Load.
func InitGlobalConfig() {
	once.Do(func() {
		k = koanf.New(".")
	})
}

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a new Manager backed by the global Koanf instance.
func NewManager() *Manager {
	InitGlobalConfig()
	return &Manager{
		koanfInstance: k,
		currentConfig: DefaultConfig(),
	}
}

// DefaultConfig returns a new Config struct populated with hardcoded default values.
// These serve as the baseline configuration if no other sources override them.
func DefaultConfig() Config {
	loop := pipeloop.DefaultConfig()
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Jobs: JobsConfig{
			SyncTimeout:   5 * time.Second,
			MaxConcurrent: jobs.DefaultMaxConcurrent,
			StatusKind:    string(jobs.DefaultStatusKind),
		},
		Store: storage.Config{
			Backend:   storage.BackendMemory,
			StatusTTL: 24 * time.Hour,
			Redis: storage.RedisConfig{
				Addr:   "localhost:6379",
				Prefix: storage.DefaultRedisPrefix,
			},
			NATS: storage.NATSConfig{
				URL:    "nats://127.0.0.1:4222",
				Bucket: "jobrunner-status",
			},
		},
		Pipe: PipeConfig{
			Capacity:       pipe.DefaultCapacity,
			MinThreshold:   loop.MinThreshold,
			InitialBackoff: loop.InitialBackoff,
			MaxBackoff:     loop.MaxBackoff,
			StallTimeout:   loop.StallTimeout,
			RecordLimit:    loop.RecordLimit,
		},
	}
}

// Load loads configuration from defaults, the config file, the environment
// and flags, in that order of precedence.
func (m *Manager) Load(flags *pflag.FlagSet, customConfigFilePath string) error {
	debug := false
	if flags != nil {
		if f := flags.Lookup("debug"); f != nil && f.Value.String() == "true" {
			debug = true
		}
	}
	return m.LoadWithSources(DefaultSources(customConfigFilePath, flags, debug))
}

// LoadWithSources loads the given sources ordered by priority, unmarshals the
// merged result and validates it.
func (m *Manager) LoadWithSources(sources []ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ordered := make([]ConfigSource, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	for _, src := range ordered {
		if err := src.Load(m.koanfInstance); err != nil {
			return fmt.Errorf("config source %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}

	if err := postProcessConfig(&newCfg); err != nil {
		return err
	}
	if err := Validate(&newCfg); err != nil {
		return err
	}

	m.currentConfig = newCfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// Koanf exposes the merged key space (for `config` style introspection).
func (m *Manager) Koanf() *koanf.Koanf {
	return m.koanfInstance
}

// postProcessConfig fills values that depend on the environment.
func postProcessConfig(cfg *Config) error {
	if cfg.Store.Backend == storage.BackendFile && cfg.Store.Dir == "" {
		dir, err := storage.DefaultDir()
		if err != nil {
			return fmt.Errorf("resolve default store directory: %w", err)
		}
		cfg.Store.Dir = dir
	}
	return nil
}

// DefaultConfigAsMap converts the DefaultConfig struct to a map[string]interface{}
// for Koanf's confmap.Provider. This is a bit manual but ensures Koanf knows all keys.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		// Log configuration
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		// Job manager
		"jobs.sync_timeout":   def.Jobs.SyncTimeout,
		"jobs.max_concurrent": def.Jobs.MaxConcurrent,
		"jobs.status_kind":    def.Jobs.StatusKind,

		// Status store
		"store.backend":        def.Store.Backend,
		"store.dir":            def.Store.Dir,
		"store.status_ttl":     def.Store.StatusTTL,
		"store.redis.addr":     def.Store.Redis.Addr,
		"store.redis.password": def.Store.Redis.Password,
		"store.redis.db":       def.Store.Redis.DB,
		"store.redis.prefix":   def.Store.Redis.Prefix,
		"store.nats.url":       def.Store.NATS.URL,
		"store.nats.bucket":    def.Store.NATS.Bucket,

		// Record pipe
		"pipe.capacity":        def.Pipe.Capacity,
		"pipe.min_threshold":   def.Pipe.MinThreshold,
		"pipe.initial_backoff": def.Pipe.InitialBackoff,
		"pipe.max_backoff":     def.Pipe.MaxBackoff,
		"pipe.stall_timeout":   def.Pipe.StallTimeout,
		"pipe.record_limit":    def.Pipe.RecordLimit,
	}
}

// BindFlags defines the global command-line flags.
//
// Note: The main --config / -c flag for specifying the config file path
// is defined directly on the root Cobra command's PersistentFlags.
func BindFlags(flags *pflag.FlagSet) {
	var flagvar bool
	flags.BoolVar(&flagvar, "debug", false, "Enable debug logging")
	flags.String("log.level", "", "Log level (trace, debug, info, warn, error)")
	flags.String("log.format", "", "Log format (text, json)")
	flags.String("log.file", "", "Path to log file (optional, leave empty for stderr)")
}
