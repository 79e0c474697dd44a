package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/semlaunch/pkg/types"
)

// isolate points the config file at a temp location and runs from a temp
// directory so no stray .env is picked up.
func isolate(t *testing.T, yamlContent string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if yamlContent != "" {
		require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))
	}
	t.Setenv(EnvConfigFile, path)
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t, "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".semlaunch", "cache.db"), cfg.DBPath)
	assert.Equal(t, 20, cfg.ResultCount)
	assert.Equal(t, "local", cfg.Provider)
	assert.Equal(t, 30, cfg.BuildTrees)
	assert.Equal(t, uint64(123), cfg.BuildSeed)
	assert.Equal(t, 200*time.Millisecond, cfg.Debounce)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := isolate(t, "db_path: /tmp/from-yaml.db\nresult_count: 7\nwatch: true\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SEMLAUNCH_MODEL=from-dotenv\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("SEMLAUNCH_MODEL") })
	t.Setenv("SEMLAUNCH_RESULT_COUNT", "12")
	t.Setenv("SEMLAUNCH_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-yaml.db", cfg.DBPath)
	assert.Equal(t, 12, cfg.ResultCount, "environment beats the file")
	assert.True(t, cfg.Watch)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "from-dotenv", cfg.Model)
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t, "result_count: [oops\n")
	_, err := Load()
	assert.ErrorContains(t, err, "invalid YAML")
}

func TestLoad_InvalidEnv(t *testing.T) {
	isolate(t, "")
	t.Setenv("SEMLAUNCH_RESULT_COUNT", "many")
	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(*Config) {}, nil},
		{"missing db", func(c *Config) { c.DBPath = "" }, ErrMissingRequired},
		{"bad provider", func(c *Config) { c.Provider = "magic" }, ErrInvalidValue},
		{"zero results", func(c *Config) { c.ResultCount = 0 }, ErrInvalidValue},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, ErrInvalidValue},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, ErrInvalidValue},
		{"bad build level", func(c *Config) { c.BuildLevel = "everything" }, ErrInvalidValue},
		{"zero paragraphs", func(c *Config) { c.BuildLevel = "paragraphs"; c.BuildParagraphs = 0 }, ErrInvalidValue},
		{"negative trees", func(c *Config) { c.BuildTrees = -1 }, ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuildState(t *testing.T) {
	cfg := Default()
	st, err := cfg.BuildState()
	require.NoError(t, err)
	assert.Equal(t, types.StateName(), st)

	cfg.BuildLevel = "Paragraphs"
	cfg.BuildParagraphs = 6
	st, err = cfg.BuildState()
	require.NoError(t, err)
	assert.Equal(t, types.StateParagraphs(6), st)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/x/y.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x", "y.db"), got)

	got, err = ExpandPath("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}

func TestEmbedderConfig(t *testing.T) {
	cfg := Default()
	cfg.Provider = "ollama"
	cfg.Model = "nomic"
	ec := cfg.Embedder()
	assert.Equal(t, "ollama", ec.Provider)
	assert.Equal(t, "nomic", ec.Model)
	assert.Equal(t, 1024, ec.CacheSize)
}
