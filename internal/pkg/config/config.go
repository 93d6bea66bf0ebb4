package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Log       LogConfig       `mapstructure:"log"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Addr       string `mapstructure:"addr"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PipelineConfig controls a housing dataset run.
type PipelineConfig struct {
	RegistryPath     string        `mapstructure:"registry_path"`
	Dataset          string        `mapstructure:"dataset"`
	Concurrency      int           `mapstructure:"concurrency"`
	RecordWorkers    int           `mapstructure:"record_workers"`
	Sinks            []string      `mapstructure:"sinks"`
	PropertyPrefixes []string      `mapstructure:"property_prefixes"`
	Schedule         string        `mapstructure:"schedule"`
	Tourism          TourismConfig `mapstructure:"tourism"`
}

type TourismConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	EntriesURL    string `mapstructure:"entries_url"`
	ForeignersURL string `mapstructure:"foreigners_url"`
	ColombiansURL string `mapstructure:"colombians_url"`
}

// FetchConfig tunes the HTTP client used for source documents.
type FetchConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxAttempts      int    `mapstructure:"max_attempts"`
	InitialBackoffMs int    `mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int    `mapstructure:"max_backoff_ms"`
	UserAgent        string `mapstructure:"user_agent"`
}

// Known sink names.
const (
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
	SinkMySQL    = "mysql"
)

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "housing")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "housingetl")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("sqlite.path", "data/Housing_Tourism_Data.sqlite")
	v.SetDefault("mysql.dsn", "")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.enabled", false)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.ttl_seconds", 3600)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.endpoint", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "housing-pipeline")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pipeline.registry_path", "")
	v.SetDefault("pipeline.dataset", "sales_rents_2011_2021")
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.record_workers", 4)
	v.SetDefault("pipeline.sinks", []string{SinkSQLite})
	v.SetDefault("pipeline.property_prefixes", []string{"APARTAMENTO", "CASA"})
	v.SetDefault("pipeline.schedule", "0 3 1 * *")
	v.SetDefault("pipeline.tourism.enabled", false)
	v.SetDefault("fetch.timeout_seconds", 60)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.initial_backoff_ms", 500)
	v.SetDefault("fetch.max_backoff_ms", 8000)
	v.SetDefault("fetch.user_agent", "housingetl/1.0")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: HOUSINGETL_DATABASE_HOST → database.host
	v.SetEnvPrefix("HOUSINGETL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Enabled || c.HasSink(SinkPostgres) {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	if c.Pipeline.Dataset == "" {
		errs = append(errs, "pipeline.dataset is required")
	}
	if c.Pipeline.Concurrency <= 0 {
		errs = append(errs, "pipeline.concurrency must be positive")
	}
	if c.Pipeline.RecordWorkers <= 0 {
		errs = append(errs, "pipeline.record_workers must be positive")
	}
	if len(c.Pipeline.Sinks) == 0 {
		errs = append(errs, "pipeline.sinks must name at least one sink")
	}
	for _, s := range c.Pipeline.Sinks {
		switch s {
		case SinkSQLite:
			if c.SQLite.Path == "" {
				errs = append(errs, "sqlite.path is required for the sqlite sink")
			}
		case SinkPostgres:
		case SinkMySQL:
			if c.MySQL.DSN == "" {
				errs = append(errs, "mysql.dsn is required for the mysql sink")
			}
		default:
			errs = append(errs, fmt.Sprintf("pipeline.sinks: unknown sink %q", s))
		}
	}
	if len(c.Pipeline.PropertyPrefixes) == 0 {
		errs = append(errs, "pipeline.property_prefixes must not be empty")
	}
	if c.Pipeline.Schedule != "" {
		if _, err := cron.ParseStandard(c.Pipeline.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("pipeline.schedule: %v", err))
		}
	}
	if t := c.Pipeline.Tourism; t.Enabled && (t.EntriesURL == "" || t.ForeignersURL == "" || t.ColombiansURL == "") {
		errs = append(errs, "pipeline.tourism needs entries_url, foreigners_url and colombians_url")
	}

	if c.Fetch.TimeoutSeconds <= 0 {
		errs = append(errs, "fetch.timeout_seconds must be positive")
	}
	if c.Fetch.MaxAttempts <= 0 {
		errs = append(errs, "fetch.max_attempts must be positive")
	}
	if c.Fetch.InitialBackoffMs < 0 || c.Fetch.MaxBackoffMs < c.Fetch.InitialBackoffMs {
		errs = append(errs, "fetch backoff must satisfy 0 <= initial_backoff_ms <= max_backoff_ms")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// HasSink reports whether name is among the configured pipeline sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Pipeline.Sinks {
		if s == name {
			return true
		}
	}
	return false
}
