package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/dshills/semlaunch/internal/embedder"
	"github.com/dshills/semlaunch/pkg/types"
)

// EnvPrefix prefixes every environment variable, e.g. SEMLAUNCH_DB_PATH.
const EnvPrefix = "SEMLAUNCH"

// EnvConfigFile overrides the config file location.
const EnvConfigFile = "SEMLAUNCH_CONFIG"

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

// Config is the runtime configuration. Values come from, in increasing
// precedence: Default, the YAML file, .env, then the environment.
type Config struct {
	DBPath    string `yaml:"db_path" envconfig:"DB_PATH"`
	IndexPath string `yaml:"index_path" envconfig:"INDEX_PATH"`

	Provider       string `yaml:"provider" envconfig:"PROVIDER"`
	APIKey         string `yaml:"api_key" envconfig:"API_KEY"`
	BaseURL        string `yaml:"base_url" envconfig:"BASE_URL"`
	Model          string `yaml:"model" envconfig:"MODEL"`
	EmbedCacheSize int    `yaml:"embed_cache_size" envconfig:"EMBED_CACHE_SIZE"`

	ResultCount int           `yaml:"result_count" envconfig:"RESULT_COUNT"`
	MaxInFlight int           `yaml:"max_in_flight" envconfig:"MAX_IN_FLIGHT"`
	Watch       bool          `yaml:"watch" envconfig:"WATCH"`
	Debounce    time.Duration `yaml:"debounce" envconfig:"DEBOUNCE"`

	LogLevel  string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT"`

	BuildLevel      string `yaml:"build_level" envconfig:"BUILD_LEVEL"`
	BuildParagraphs int    `yaml:"build_paragraphs" envconfig:"BUILD_PARAGRAPHS"`
	BuildTrees      int    `yaml:"build_trees" envconfig:"BUILD_TREES"`
	BuildSeed       uint64 `yaml:"build_seed" envconfig:"BUILD_SEED"`
	BuildWorkers    int    `yaml:"build_workers" envconfig:"BUILD_WORKERS"`
}

// Dir returns ~/.semlaunch.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".semlaunch"), nil
}

// Path returns the config file location.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return ExpandPath(p)
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:          "~/.semlaunch/cache.db",
		IndexPath:       "~/.semlaunch/index.db",
		Provider:        embedder.ProviderLocal,
		EmbedCacheSize:  1024,
		ResultCount:     20,
		MaxInFlight:     4,
		Debounce:        200 * time.Millisecond,
		LogLevel:        "info",
		LogFormat:       "text",
		BuildLevel:      "name",
		BuildParagraphs: 4,
		BuildTrees:      30,
		BuildSeed:       123,
	}
}

// Load builds the configuration from every layer and validates it.
func Load() (*Config, error) {
	cfg := Default()

	path, err := Path()
	if err != nil {
		return nil, err
	}
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Shell variables win over .env, so a missing file is fine.
	_ = godotenv.Load(".env")

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	if err := cfg.expand(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return nil
}

func (c *Config) expand() error {
	var err error
	if c.DBPath, err = ExpandPath(c.DBPath); err != nil {
		return err
	}
	if c.IndexPath, err = ExpandPath(c.IndexPath); err != nil {
		return err
	}
	return nil
}

// Validate checks required fields and enumerations.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%w: db_path", ErrMissingRequired)
	}
	switch strings.ToLower(c.Provider) {
	case "", embedder.ProviderLocal, embedder.ProviderOllama, embedder.ProviderOpenAI, embedder.ProviderJina:
	default:
		return fmt.Errorf("%w: provider %q", ErrInvalidValue, c.Provider)
	}
	if c.ResultCount <= 0 {
		return fmt.Errorf("%w: result_count must be positive", ErrInvalidValue)
	}
	if c.EmbedCacheSize < 0 {
		return fmt.Errorf("%w: embed_cache_size must not be negative", ErrInvalidValue)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidValue, c.LogFormat)
	}
	if _, err := c.BuildState(); err != nil {
		return err
	}
	if c.BuildTrees < 0 || c.BuildWorkers < 0 {
		return fmt.Errorf("%w: build_trees and build_workers must not be negative", ErrInvalidValue)
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalidValue, c.LogLevel)
	}
	return lvl, nil
}

// BuildState returns the embedding state the builder records.
func (c *Config) BuildState() (types.EmbeddingState, error) {
	switch strings.ToLower(c.BuildLevel) {
	case "", "name":
		return types.StateName(), nil
	case "paragraphs":
		if c.BuildParagraphs <= 0 {
			return types.EmbeddingState{}, fmt.Errorf("%w: build_paragraphs must be positive", ErrInvalidValue)
		}
		return types.StateParagraphs(c.BuildParagraphs), nil
	default:
		return types.EmbeddingState{}, fmt.Errorf("%w: build_level %q", ErrInvalidValue, c.BuildLevel)
	}
}

// Embedder returns the embedder settings.
func (c *Config) Embedder() embedder.Config {
	return embedder.Config{
		Provider:  c.Provider,
		APIKey:    c.APIKey,
		BaseURL:   c.BaseURL,
		Model:     c.Model,
		CacheSize: c.EmbedCacheSize,
	}
}

// Logger builds the process logger. Output goes to stderr because stdout
// carries MCP traffic and query results.
func (c *Config) Logger() *slog.Logger {
	lvl, err := c.SlogLevel()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
