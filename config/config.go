package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/utils"
)

type Config struct {
	AppName            string `mapstructure:"app_name" validate:"required"`
	LogLevel           string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	PrettyLogs         bool   `mapstructure:"pretty_logs"`
	StartupMaxAttempts int    `mapstructure:"startup_max_attempts" validate:"gte=1"`
	// MetricsPort serves health, metrics and the run report while migrating. 0 disables it.
	MetricsPort int `mapstructure:"metrics_port" validate:"gte=0,lte=65535"`

	// Source SQLite file
	SQLitePath string `mapstructure:"sqlite_path" validate:"required"`

	// Destination PostgreSQL
	DatabaseHost            string        `mapstructure:"db_host" validate:"required"`
	DatabasePort            int           `mapstructure:"db_port" validate:"gt=0,lte=65535"`
	DatabaseUserName        string        `mapstructure:"db_user"`
	DatabasePassword        string        `mapstructure:"db_password"`
	DatabaseName            string        `mapstructure:"db_name" validate:"required"`
	DatabaseSchema          string        `mapstructure:"db_schema"`
	DatabaseSSLMode         string        `mapstructure:"db_ssl_mode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	DatabaseMaxOpenConns    int           `mapstructure:"db_max_open_conns" validate:"gte=0"`
	DatabaseMaxIdleConns    int           `mapstructure:"db_max_idle_conns" validate:"gte=0"`
	DatabaseConnMaxLifetime time.Duration `mapstructure:"db_conn_max_lifetime"`

	// Migration
	ChunkSize int      `mapstructure:"chunk_size" validate:"gt=0"`
	Workers   int      `mapstructure:"workers" validate:"gte=1"`
	WriteMode string   `mapstructure:"write_mode" validate:"oneof=row chunk"`
	Tables    []string `mapstructure:"tables"`

	// Tracing, disabled when the endpoint is empty
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPProtocol string `mapstructure:"otlp_protocol" validate:"oneof=grpc http"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

type setting struct {
	key  string
	env  string
	flag string
	def  any
}

// settings lists every key with its environment variable, optional flag and default
var settings = []setting{
	{key: "app_name", env: "APP_NAME", def: "fern"},
	{key: "log_level", env: "LOG_LEVEL", flag: "log-level", def: "info"},
	{key: "pretty_logs", env: "PRETTY_LOGS", def: false},
	{key: "startup_max_attempts", env: "STARTUP_MAX_ATTEMPTS", def: 5},
	{key: "metrics_port", env: "METRICS_PORT", flag: "metrics-port", def: 0},

	{key: "sqlite_path", env: "DB_SQLITE_NAME", flag: "sqlite-path", def: "db.sqlite"},

	{key: "db_host", env: "DB_HOST", def: "127.0.0.1"},
	{key: "db_port", env: "DB_PORT", def: 5432},
	{key: "db_user", env: "DB_USER", def: "app"},
	{key: "db_password", env: "DB_PASSWORD", def: ""},
	{key: "db_name", env: "DB_NAME", def: "movies_database"},
	{key: "db_schema", env: "DB_SCHEMA", flag: "schema", def: "content"},
	{key: "db_ssl_mode", env: "DB_SSL_MODE", def: "disable"},
	{key: "db_max_open_conns", env: "DB_MAX_OPEN_CONNS", def: 10},
	{key: "db_max_idle_conns", env: "DB_MAX_IDLE_CONNS", def: 5},
	{key: "db_conn_max_lifetime", env: "DB_CONN_MAX_LIFETIME", def: "5m"},

	{key: "chunk_size", env: "CHUNK_SIZE", flag: "chunk-size", def: 100},
	{key: "workers", env: "WORKERS", flag: "workers", def: 1},
	{key: "write_mode", env: "WRITE_MODE", flag: "write-mode", def: "row"},
	{key: "tables", env: "TABLES", flag: "tables", def: []string{}},

	{key: "otlp_endpoint", env: "OTEL_EXPORTER_OTLP_ENDPOINT", def: ""},
	{key: "otlp_protocol", env: "OTEL_EXPORTER_OTLP_PROTOCOL", def: "grpc"},
	{key: "otlp_insecure", env: "OTEL_EXPORTER_OTLP_INSECURE", def: true},
}

// Load reads .env when present, then the environment, then any changed flag in flags.
// flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
		if err := v.BindEnv(s.key, s.env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", s.env, err)
		}
		if flags == nil || s.flag == "" {
			continue
		}
		if f := flags.Lookup(s.flag); f != nil {
			if err := v.BindPFlag(s.key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", s.flag, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field rules and the table selection
func (c *Config) Validate() error {
	if _, err := utils.Validate(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.SelectedTables(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SelectedTables resolves Tables in migration order. No selection means every table.
func (c *Config) SelectedTables() ([]models.Table, error) {
	return models.ParseTables(c.Tables)
}

func (c *Config) postgresURL() *url.URL {
	u := &url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.DatabaseHost, strconv.Itoa(c.DatabasePort)),
		Path:     "/" + c.DatabaseName,
		RawQuery: url.Values{"sslmode": []string{c.DatabaseSSLMode}}.Encode(),
	}
	switch {
	case c.DatabasePassword != "":
		u.User = url.UserPassword(c.DatabaseUserName, c.DatabasePassword)
	case c.DatabaseUserName != "":
		u.User = url.User(c.DatabaseUserName)
	}
	return u
}

// PostgresDSN returns the connection URL of the destination database
func (c *Config) PostgresDSN() string {
	return c.postgresURL().String()
}

// RedactedPostgresDSN returns the connection URL with the password masked, for logs
func (c *Config) RedactedPostgresDSN() string {
	return c.postgresURL().Redacted()
}
