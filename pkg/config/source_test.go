package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSource_Priority(t *testing.T) {
	src := &DefaultSource{}
	assert.Equal(t, 10, src.Priority())
	assert.Equal(t, "defaults", src.Name())
}

func TestDefaultSource_Load(t *testing.T) {
	k := koanf.New(".")
	src := &DefaultSource{}

	err := src.Load(k)
	require.NoError(t, err)

	assert.Equal(t, "info", k.String("log.level"))
	assert.Equal(t, "text", k.String("log.format"))
}

func TestFileSource_Priority(t *testing.T) {
	src := &FileSource{Path: "/tmp/test.yaml"}
	assert.Equal(t, 20, src.Priority())
	assert.Equal(t, "file:/tmp/test.yaml", src.Name())
}

func TestFileSource_Load_EmptyPath(t *testing.T) {
	k := koanf.New(".")
	src := &FileSource{Path: ""}

	err := src.Load(k)
	require.NoError(t, err, "Empty path should skip silently")
}

func TestFileSource_Load_NonExistentFile(t *testing.T) {
	k := koanf.New(".")
	src := &FileSource{Path: "/nonexistent/path/config.yaml"}

	err := src.Load(k)
	require.NoError(t, err, "Non-existent file should skip silently")
}

func TestFileSource_Load_ValidFile(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := `
log:
  level: warn
  format: json
store:
  backend: redis
  redis:
    addr: cache:6379
`
	err := os.WriteFile(configPath, []byte(configContent), 0o644)
	require.NoError(t, err)

	k := koanf.New(".")
	src := &FileSource{Path: configPath}

	err = src.Load(k)
	require.NoError(t, err)

	assert.Equal(t, "warn", k.String("log.level"))
	assert.Equal(t, "json", k.String("log.format"))
	assert.Equal(t, "redis", k.String("store.backend"))
	assert.Equal(t, "cache:6379", k.String("store.redis.addr"))
}

func TestEnvSource_Priority(t *testing.T) {
	src := &EnvSource{}
	assert.Equal(t, 30, src.Priority())
	assert.Equal(t, "env", src.Name())
}

func TestEnvSource_Load(t *testing.T) {
	t.Setenv("JOBRUNNER_LOG_LEVEL", "error")
	t.Setenv("JOBRUNNER_JOBS_MAX_CONCURRENT", "8")
	t.Setenv("JOBRUNNER_STORE_STATUS_TTL", "1h")
	t.Setenv("JOBRUNNER_STORE_REDIS_ADDR", "redis:6380")

	k := koanf.New(".")
	src := &EnvSource{Prefix: "JOBRUNNER_"}

	err := src.Load(k)
	require.NoError(t, err)

	assert.Equal(t, "error", k.String("log.level"))
	assert.Equal(t, 8, k.Int("jobs.max_concurrent"))
	assert.Equal(t, "1h", k.String("store.status_ttl"))
	assert.Equal(t, "redis:6380", k.String("store.redis.addr"))
}

func TestEnvSource_Load_DefaultPrefix(t *testing.T) {
	t.Setenv("JOBRUNNER_LOG_FORMAT", "json")

	k := koanf.New(".")
	src := &EnvSource{} // No prefix specified, should default to JOBRUNNER_

	err := src.Load(k)
	require.NoError(t, err)

	assert.Equal(t, "json", k.String("log.format"))
}

func TestFlagSource_Priority(t *testing.T) {
	src := &FlagSource{}
	assert.Equal(t, 40, src.Priority())
	assert.Equal(t, "flags", src.Name())
}

func TestFlagSource_Load_NilFlags(t *testing.T) {
	k := koanf.New(".")
	src := &FlagSource{Flags: nil}

	err := src.Load(k)
	require.NoError(t, err, "Nil flags should skip silently")
}

func TestFlagSource_Load(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log.level", "info", "")
	_ = flags.Set("log.level", "debug")

	k := koanf.New(".")
	// Load defaults first so koanf knows the keys
	_ = k.Load(nil, nil)

	src := &FlagSource{Flags: flags}
	err := src.Load(k)
	require.NoError(t, err)

	assert.Equal(t, "debug", k.String("log.level"))
}

func TestFlagSource_Load_DebugFlag(t *testing.T) {
	k := koanf.New(".")

	src := &FlagSource{Flags: nil, Debug: true}
	err := src.Load(k)
	require.NoError(t, err)

	assert.Equal(t, "debug", k.String("log.level"))
}

func TestDefaultSources_Order(t *testing.T) {
	sources := DefaultSources("/tmp/config.yaml", nil, false)

	require.Len(t, sources, 4)
	assert.Equal(t, "defaults", sources[0].Name())
	assert.Equal(t, "file:/tmp/config.yaml", sources[1].Name())
	assert.Equal(t, "env", sources[2].Name())
	assert.Equal(t, "flags", sources[3].Name())
}

func TestDefaultSources_Priorities(t *testing.T) {
	sources := DefaultSources("", nil, false)

	// Verify priorities are in ascending order
	for i := 1; i < len(sources); i++ {
		assert.Greater(t, sources[i].Priority(), sources[i-1].Priority(),
			"Source %s should have higher priority than %s",
			sources[i].Name(), sources[i-1].Name())
	}
}

func TestLoadWithSources_CustomSource(t *testing.T) {
	resetGlobalConfig()

	// Create a custom source that inserts between file and env
	customSource := &mockConfigSource{
		name:     "custom",
		priority: 25, // Between file (20) and env (30)
		loadFunc: func(k *koanf.Koanf) error {
			return k.Set("log.level", "warn")
		},
	}

	manager := NewManager()
	sources := []ConfigSource{
		&DefaultSource{},
		customSource,
		&EnvSource{Prefix: "JOBRUNNER_"},
	}

	err := manager.LoadWithSources(sources)
	require.NoError(t, err)

	cfg := manager.Get()
	// JOBRUNNER_LOG_LEVEL is not set, so the custom value remains
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadWithSources_PriorityOrdering(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("JOBRUNNER_LOG_LEVEL", "debug")

	manager := NewManager()
	sources := []ConfigSource{
		&EnvSource{Prefix: "JOBRUNNER_"}, // priority 30
		&DefaultSource{},                 // priority 10 - should be loaded first despite order
	}

	err := manager.LoadWithSources(sources)
	require.NoError(t, err)

	cfg := manager.Get()
	// ENV (priority 30) should override defaults (priority 10)
	assert.Equal(t, "debug", cfg.Log.Level)
}

// mockConfigSource is a test helper for custom config sources
type mockConfigSource struct {
	name     string
	priority int
	loadFunc func(k *koanf.Koanf) error
}

func (m *mockConfigSource) Name() string  { return m.name }
func (m *mockConfigSource) Priority() int { return m.priority }
func (m *mockConfigSource) Load(k *koanf.Koanf) error {
	if m.loadFunc != nil {
		return m.loadFunc(k)
	}
	return nil
}

func TestLoadWithSources_InvalidValue(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("JOBRUNNER_PIPE_CAPACITY", "0")

	manager := NewManager()
	err := manager.LoadWithSources([]ConfigSource{&DefaultSource{}, &EnvSource{}})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "pipe.capacity", verr.Field)
	assert.Equal(t, DefaultConfig().Pipe.Capacity, manager.Get().Pipe.Capacity, "failed load keeps the previous config")
}

func TestLoadWithSources_SourceError(t *testing.T) {
	resetGlobalConfig()
	manager := NewManager()
	err := manager.LoadWithSources([]ConfigSource{&mockConfigSource{
		name:     "broken",
		priority: 15,
		loadFunc: func(*koanf.Koanf) error { return os.ErrPermission },
	}})
	require.ErrorIs(t, err, os.ErrPermission)
	assert.Contains(t, err.Error(), "broken")
}
