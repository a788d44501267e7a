// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	Stats     StatsConfig     `yaml:"stats"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Feeder    FeederConfig    `yaml:"feeder"`
	Libraries LibrariesConfig `yaml:"libraries"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// ServerConfig represents the HTTP server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr" default:":5000"`
}

// EngineConfig represents the broadcast engine command port configuration.
type EngineConfig struct {
	Addr             string `yaml:"addr" default:"127.0.0.1:1234"`
	CommandTimeoutMs int    `yaml:"command_timeout_ms" default:"3000" validate:"gte=100,lte=30000"`
	// PlaybackVar is the engine-side boolean variable gating playback.
	PlaybackVar string `yaml:"playback_var" default:"control_var"`
}

// StatsConfig represents the engine's public statistics feed configuration.
type StatsConfig struct {
	URL            string `yaml:"url" default:"http://127.0.0.1:8000/stats?sid=1"`
	FetchTimeoutMs int    `yaml:"fetch_timeout_ms" default:"2000" validate:"gte=100,lte=30000"`
	CacheTTLMs     int    `yaml:"cache_ttl_ms" default:"5000" validate:"gte=0,lte=300000"`
}

// LedgerConfig represents queue ledger persistence configuration.
type LedgerConfig struct {
	Path string `yaml:"path" default:"data/queue.db"`
}

// FeederConfig represents auto-feeder and reconciler configuration.
type FeederConfig struct {
	IntervalMs     int `yaml:"interval_ms" default:"2000" validate:"gte=250,lte=60000"`
	GraceWindowSec int `yaml:"grace_window_sec" default:"30" validate:"gte=1,lte=600"`
}

// LibrariesConfig maps media folders to directories on disk.
type LibrariesConfig struct {
	BaseDir       string            `yaml:"base_dir" default:"/srv/media"`
	Folders       map[string]string `yaml:"folders"`
	DefaultFolder string            `yaml:"default_folder" default:"music"`
}

// IngestConfig represents the live-ingest bridge configuration.
type IngestConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path" default:"ffmpeg"`
	Host       string `yaml:"host" default:"127.0.0.1"`
	Port       int    `yaml:"port" default:"8005" validate:"gte=1,lte=65535"`
	Mount      string `yaml:"mount" default:"/"`
	User       string `yaml:"user" default:"source"`
	Password   string `yaml:"password" validate:"required"`
	BitrateK   int    `yaml:"bitrate_k" default:"128" validate:"gte=32,lte=320"`
	SampleRate int    `yaml:"sample_rate" default:"44100"`
	Channels   int    `yaml:"channels" default:"2" validate:"gte=1,lte=2"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("AIRCAST_ENGINE_ADDR"); v != "" {
		c.Engine.Addr = v
	}
	if v := os.Getenv("AIRCAST_STATS_URL"); v != "" {
		c.Stats.URL = v
	}
	if v := os.Getenv("AIRCAST_INGEST_USER"); v != "" {
		c.Ingest.User = v
	}
	if v := os.Getenv("AIRCAST_INGEST_PASSWORD"); v != "" {
		c.Ingest.Password = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// LibraryDir resolves a media folder name to its directory on disk.
// Unknown folders fall back to the default folder.
func (c *LibrariesConfig) LibraryDir(folder string) string {
	if folder == "" {
		folder = c.DefaultFolder
	}
	if dir, ok := c.Folders[folder]; ok {
		return dir
	}
	if dir, ok := c.Folders[c.DefaultFolder]; ok {
		return dir
	}
	return c.BaseDir
}

// CommandTimeout returns the engine command deadline as a duration.
func (c *EngineConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMs) * time.Millisecond
}

// FetchTimeout returns the stats fetch deadline as a duration.
func (c *StatsConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMs) * time.Millisecond
}

// CacheTTL returns the stats cache TTL as a duration.
func (c *StatsConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMs) * time.Millisecond
}

// Interval returns the feeder tick interval as a duration.
func (c *FeederConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// GraceWindow returns the reconciler grace window as a duration.
func (c *FeederConfig) GraceWindow() time.Duration {
	return time.Duration(c.GraceWindowSec) * time.Second
}
