// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ANANT0908/lessonwatch/internal/catalog"
	"github.com/ANANT0908/lessonwatch/internal/tracker"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig     `mapstructure:"server"`
	Auth     AuthConfig       `mapstructure:"auth"`
	Store    StoreConfig      `mapstructure:"store"`
	Tracker  TrackerConfig    `mapstructure:"tracker"`
	Pipeline PipelineConfig   `mapstructure:"pipeline"`
	Logging  LoggingConfig    `mapstructure:"logging"`
	Lessons  []catalog.Lesson `mapstructure:"lessons"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig holds token signing parameters.
type AuthConfig struct {
	JWTSecret      string `mapstructure:"jwt_secret"`
	AccessTTLHours int    `mapstructure:"access_ttl_hours"`
}

// StoreConfig selects and configures the persistence provider.
type StoreConfig struct {
	// Provider is one of "memory", "postgres", or "redis".
	Provider string         `mapstructure:"provider"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig controls the pgx connection pool.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig controls the Redis client.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TrackerConfig governs the watch-progress polling cadences.
type TrackerConfig struct {
	PollMs           int `mapstructure:"poll_ms"`
	ReadyPollMs      int `mapstructure:"ready_poll_ms"`
	ReadyTimeoutMs   int `mapstructure:"ready_timeout_ms"`
	SeekPollMs       int `mapstructure:"seek_poll_ms"`
	SeekPollAttempts int `mapstructure:"seek_poll_attempts"`
}

// PipelineConfig governs the async progress write pipeline.
type PipelineConfig struct {
	BufferSize         int `mapstructure:"buffer_size"`
	MaxBatchEvents     int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs     int `mapstructure:"max_batch_wait_ms"`
	SinkTimeoutSeconds int `mapstructure:"sink_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LESSONWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("auth.access_ttl_hours", 24)
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.postgres.max_conns", 8)
	v.SetDefault("store.postgres.min_conns", 1)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("tracker.poll_ms", 3000)
	v.SetDefault("tracker.ready_poll_ms", 200)
	v.SetDefault("tracker.ready_timeout_ms", 15000)
	v.SetDefault("tracker.seek_poll_ms", 300)
	v.SetDefault("tracker.seek_poll_attempts", 20)
	v.SetDefault("pipeline.buffer_size", 1024)
	v.SetDefault("pipeline.max_batch_events", 64)
	v.SetDefault("pipeline.max_batch_wait_ms", 500)
	v.SetDefault("pipeline.sink_timeout_seconds", 10)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must be set")
	}
	switch c.Store.Provider {
	case "memory":
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn must be set when provider is postgres")
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr must be set when provider is redis")
		}
	default:
		return fmt.Errorf("store.provider must be memory, postgres, or redis")
	}
	if c.Tracker.PollMs <= 0 {
		return fmt.Errorf("tracker.poll_ms must be > 0")
	}
	if c.Tracker.SeekPollAttempts <= 0 {
		return fmt.Errorf("tracker.seek_poll_attempts must be > 0")
	}
	return nil
}

// TrackerConfig converts the millisecond knobs into tracker durations.
func (c Config) TrackerConfig() tracker.Config {
	return tracker.Config{
		PollInterval:      time.Duration(c.Tracker.PollMs) * time.Millisecond,
		ReadyPollInterval: time.Duration(c.Tracker.ReadyPollMs) * time.Millisecond,
		ReadyTimeout:      time.Duration(c.Tracker.ReadyTimeoutMs) * time.Millisecond,
		SeekPollInterval:  time.Duration(c.Tracker.SeekPollMs) * time.Millisecond,
		SeekPollAttempts:  c.Tracker.SeekPollAttempts,
	}
}

// AccessTTL returns the configured token lifetime.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.Auth.AccessTTLHours) * time.Hour
}

// RequestTimeout returns the per-request budget for the HTTP layer.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// BatchWait returns the pipeline's max batch linger.
func (c Config) BatchWait() time.Duration {
	return time.Duration(c.Pipeline.MaxBatchWaitMs) * time.Millisecond
}

// SinkTimeout returns the per-batch sink budget.
func (c Config) SinkTimeout() time.Duration {
	return time.Duration(c.Pipeline.SinkTimeoutSeconds) * time.Second
}
