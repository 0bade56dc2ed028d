package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendNATS   = "nats"
)

// Config holds status store configuration.
//
// Only the fields relevant to the selected backend are read.
type Config struct {
	// Backend selects the implementation: memory, file, redis or nats.
	Backend string `koanf:"backend" validate:"omitempty,oneof=memory file redis nats"`

	// Dir is the root directory of the file backend.
	// Default: platform data dir (see DefaultDir()).
	Dir string `koanf:"dir"`

	// StatusTTL bounds how long finished records are kept. Zero keeps them
	// until the backend evicts them by other means.
	StatusTTL time.Duration `koanf:"status_ttl" validate:"gte=0"`

	Redis RedisConfig `koanf:"redis"`
	NATS  NATSConfig  `koanf:"nats"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
	Prefix   string `koanf:"prefix"`
}

// NATSConfig configures the NATS JetStream key/value backend.
type NATSConfig struct {
	URL    string `koanf:"url"`
	Bucket string `koanf:"bucket"`
}

// Validate checks the fields the selected backend needs and normalizes paths.
func (c *Config) Validate() error {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}

	switch c.Backend {
	case BackendMemory:
	case BackendFile:
		return c.validateFile()
	case BackendRedis:
		if c.Redis.Addr == "" {
			return NewInvalidInputError("redis.addr", "redis address is required")
		}
	case BackendNATS:
		if c.NATS.URL == "" {
			return NewInvalidInputError("nats.url", "nats url is required")
		}
		if c.NATS.Bucket == "" {
			return NewInvalidInputError("nats.bucket", "bucket name is required")
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownBackend, c.Backend)
	}

	if c.StatusTTL < 0 {
		return NewInvalidInputError("status_ttl", "must not be negative")
	}
	return nil
}

// validateFile validates file backend settings.
func (c *Config) validateFile() error {
	if c.Dir == "" {
		return NewInvalidInputError("dir", "store directory is required")
	}

	if strings.HasPrefix(c.Dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.Dir = filepath.Join(home, c.Dir[2:])
	}

	absPath, err := filepath.Abs(c.Dir)
	if err != nil {
		return NewInvalidInputError("dir", fmt.Sprintf("invalid path: %v", err))
	}
	c.Dir = absPath
	return nil
}

// DefaultDir returns the default file store directory for the current platform.
//
// Linux:   ~/.local/share/jobrunner/status
// macOS:   ~/Library/Application Support/Jobrunner/status
// Windows: %AppData%\Jobrunner\status
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("AppData")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "Jobrunner", "status"), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Jobrunner", "status"), nil
	default:
		xdgData := os.Getenv("XDG_DATA_HOME")
		if xdgData == "" {
			xdgData = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(xdgData, "jobrunner", "status"), nil
	}
}
