package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/health"
	"github.com/xraph/jobq/mail"
	"github.com/xraph/jobq/queue"
)

// envPrefix is the prefix for environment overrides, e.g. JOBQ_STORE_DRIVER.
const envPrefix = "JOBQ"

// Config is the daemon configuration.
type Config struct {
	Addr   string        `mapstructure:"addr"`
	Log    LogConfig     `mapstructure:"log"`
	Store  StoreConfig   `mapstructure:"store"`
	Queue  jobq.Config   `mapstructure:"queue"`
	Limits []queue.Limit `mapstructure:"limits"`
	Health health.Config `mapstructure:"health"`
	Mail   MailConfig    `mapstructure:"mail"`
	Purge  PurgeConfig   `mapstructure:"purge"`
	Audit  AuditConfig   `mapstructure:"audit"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects and configures the store backend.
type StoreConfig struct {
	// Driver is one of memory, redis, postgres, sqlite or mongo.
	Driver string `mapstructure:"driver"`
	// DSN is the connection string for postgres and sqlite.
	DSN     string      `mapstructure:"dsn"`
	Migrate bool        `mapstructure:"migrate"`
	Redis   RedisConfig `mapstructure:"redis"`
	Mongo   MongoConfig `mapstructure:"mongo"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// MongoConfig configures the mongo backend.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// MailConfig configures the email job type. An empty provider logs
// messages instead of sending them.
type MailConfig struct {
	mail.Config `mapstructure:",squash"`
	Concurrency int `mapstructure:"concurrency"`
}

// PurgeConfig configures retention of terminal jobs.
type PurgeConfig struct {
	// Schedule is a cron expression; empty disables scheduled purges.
	Schedule  string        `mapstructure:"schedule"`
	Retention time.Duration `mapstructure:"retention"`
}

// AuditConfig enables the audit trail extension. Events are written to the
// daemon log. An empty Actions list records every action.
type AuditConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Actions []string `mapstructure:"actions"`
}

// setDefaults registers every key so environment overrides are seen by
// Unmarshal even when the config file omits them.
func setDefaults(v *viper.Viper) {
	q := jobq.DefaultConfig()
	h := health.DefaultConfig()

	v.SetDefault("addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.migrate", true)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "")
	v.SetDefault("store.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("store.mongo.database", "jobq")

	v.SetDefault("queue.default_concurrency", q.DefaultConcurrency)
	v.SetDefault("queue.poll_interval", q.PollInterval)
	v.SetDefault("queue.min_poll_interval", q.MinPollInterval)
	v.SetDefault("queue.shutdown_timeout", q.ShutdownTimeout)

	v.SetDefault("health.interval", h.Interval)
	v.SetDefault("health.schedule", h.Schedule)
	v.SetDefault("health.window", h.Window)
	v.SetDefault("health.failure_threshold", h.FailureThreshold)
	v.SetDefault("health.backlog_threshold", h.BacklogThreshold)

	v.SetDefault("mail.provider", "")
	v.SetDefault("mail.concurrency", 4)
	v.SetDefault("mail.mailgun.domain", "")
	v.SetDefault("mail.mailgun.key", "")
	v.SetDefault("mail.mailgun.from", "")
	v.SetDefault("mail.mailgun.api_base", "")
	v.SetDefault("mail.sendgrid.key", "")
	v.SetDefault("mail.sendgrid.from", "")
	v.SetDefault("mail.sendgrid.from_name", "")

	v.SetDefault("purge.schedule", "")
	v.SetDefault("purge.retention", 7*24*time.Hour)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.actions", []string{})
}

// loadConfig reads path (optional) and JOBQ_* environment variables into a
// Config.
func loadConfig(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("jobqd")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/jobq")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints not covered by component
// constructors.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case driverMemory, driverRedis, driverMongo:
	case driverPostgres, driverSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	if c.Mail.Concurrency < 1 {
		errs = append(errs, errors.New("mail.concurrency must be at least 1"))
	}
	if c.Purge.Schedule != "" && c.Purge.Retention <= 0 {
		errs = append(errs, errors.New("purge.retention must be positive when purge.schedule is set"))
	}
	if err := c.Health.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
