// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Feed, Search, Autocomplete, Redis, Postgres, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Feed         FeedConfig         `yaml:"feed"`
	Search       SearchConfig       `yaml:"search"`
	Autocomplete AutocompleteConfig `yaml:"autocomplete"`
	Postgres     PostgresConfig     `yaml:"postgres"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Analytics    AnalyticsConfig    `yaml:"analytics"`
	Redis        RedisConfig        `yaml:"redis"`
	Logging      LoggingConfig      `yaml:"logging"`
	Tracing      TracingConfig      `yaml:"tracing"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowOrigins    []string      `yaml:"allowOrigins"`
	RateLimit       RateLimit     `yaml:"rateLimit"`
}

// RateLimit bounds requests per client. RequestsPerSec <= 0 disables it.
type RateLimit struct {
	RequestsPerSec float64 `yaml:"requestsPerSec"`
	Burst          int     `yaml:"burst"`
}

// FeedConfig lists the data-feed sources in fallback order. Each source is a
// URI: a local path or file:// URI, an http(s):// URL, or "postgres" to read
// the directory tables through the Postgres section.
type FeedConfig struct {
	Primary        string        `yaml:"primary"`
	Fallback       string        `yaml:"fallback"`
	LoadTimeout    time.Duration `yaml:"loadTimeout"`
	HTTPTimeout    time.Duration `yaml:"httpTimeout"`
	BreakerFailure int           `yaml:"breakerFailureThreshold"`
	BreakerReset   time.Duration `yaml:"breakerResetTimeout"`

	// RefreshInterval > 0 reloads the feed periodically.
	RefreshInterval time.Duration `yaml:"refreshInterval"`
}

// Sources returns the configured source URIs in fallback order, skipping
// empty entries.
func (f FeedConfig) Sources() []string {
	out := make([]string, 0, 2)
	for _, s := range []string{f.Primary, f.Fallback} {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// SearchConfig controls paging limits and the free-text matching mode.
type SearchConfig struct {
	DefaultLimit  int     `yaml:"defaultLimit"`
	MaxLimit      int     `yaml:"maxLimit"`
	DefaultRadius float64 `yaml:"defaultRadiusMiles"`
	// TextMatch is "substring" (free text gated by the filter engine's
	// substring predicate, the default) or "scored" (gated by the scorer).
	TextMatch string `yaml:"textMatch"`
}

// AutocompleteConfig controls suggestion sessions.
type AutocompleteConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	MinInputLength int           `yaml:"minInputLength"`
	MaxSuggestions int           `yaml:"maxSuggestions"`
	EventsPerSec   float64       `yaml:"eventsPerSecond"`
	EventBurst     int           `yaml:"eventBurst"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	AutoMigrate     bool          `yaml:"autoMigrate"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. When disabled, analytics
// events are aggregated in process.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents string `yaml:"searchEvents"`
}

// AnalyticsConfig controls search-event collection. SnapshotInterval > 0
// persists aggregated stats to Postgres when Postgres is enabled.
type AnalyticsConfig struct {
	BufferSize       int           `yaml:"bufferSize"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
	LocalTTL time.Duration `yaml:"localTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging for the search pipeline.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. It is used when no config file is given.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

func (c *Config) validate() error {
	if len(c.Feed.Sources()) == 0 {
		return fmt.Errorf("config: feed.primary or feed.fallback must be set")
	}
	switch c.Search.TextMatch {
	case "scored", "substring":
	default:
		return fmt.Errorf("config: search.textMatch must be scored or substring, got %q", c.Search.TextMatch)
	}
	for _, src := range c.Feed.Sources() {
		if src == "postgres" && !c.Postgres.Enabled {
			return fmt.Errorf("config: feed source postgres requires postgres.enabled")
		}
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("config: search.defaultLimit must be positive and <= search.maxLimit")
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowOrigins:    []string{"*"},
			RateLimit:       RateLimit{RequestsPerSec: 20, Burst: 40},
		},
		Feed: FeedConfig{
			Primary:        "data/search-index.json",
			Fallback:       "data/combined_data.json",
			LoadTimeout:    20 * time.Second,
			HTTPTimeout:    10 * time.Second,
			BreakerFailure: 3,
			BreakerReset:   30 * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit:  50,
			MaxLimit:      200,
			DefaultRadius: 25,
			TextMatch:     "substring",
		},
		Autocomplete: AutocompleteConfig{
			Debounce:       200 * time.Millisecond,
			MinInputLength: 2,
			MaxSuggestions: 10,
			EventsPerSec:   30,
			EventBurst:     60,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "directory",
			User:            "directory",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "directory-search",
			Topics: KafkaTopics{
				SearchEvents: "directory-search-events",
			},
		},
		Analytics: AnalyticsConfig{
			BufferSize:       10000,
			BatchSize:        100,
			FlushInterval:    time.Second,
			SnapshotInterval: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
			LocalTTL: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_SERVER_RATE_LIMIT"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.RateLimit.RequestsPerSec = rps
		}
	}
	if v := os.Getenv("SP_FEED_PRIMARY"); v != "" {
		cfg.Feed.Primary = v
	}
	if v := os.Getenv("SP_FEED_FALLBACK"); v != "" {
		cfg.Feed.Fallback = v
	}
	if v := os.Getenv("SP_FEED_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Feed.RefreshInterval = d
		}
	}
	if v := os.Getenv("SP_SEARCH_TEXT_MATCH"); v != "" {
		cfg.Search.TextMatch = v
	}
	if v := os.Getenv("SP_POSTGRES_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = enabled
		}
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SP_KAFKA_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = enabled
		}
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = enabled
		}
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
