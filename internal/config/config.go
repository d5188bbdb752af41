package config

import (
	"strings"

	ierr "github.com/crashwatch/crashwatch/internal/errors"
	"github.com/crashwatch/crashwatch/internal/types"
	"github.com/spf13/viper"
)

// Configuration is the full runtime configuration, loaded from config files
// and environment variables via viper.
type Configuration struct {
	Deployment DeploymentConfig `mapstructure:"deployment"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode"`
}

type LoggingConfig struct {
	Level          types.LogLevel `mapstructure:"level"`
	FluentdEnabled bool           `mapstructure:"fluentd_enabled"`
	FluentdHost    string         `mapstructure:"fluentd_host"`
	FluentdPort    int            `mapstructure:"fluentd_port"`
}

type ClickHouseConfig struct {
	Address  string `mapstructure:"address"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	UseTLS   bool   `mapstructure:"use_tls"`
	Debug    bool   `mapstructure:"debug"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type TelemetryConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	StatsdAddr string `mapstructure:"statsd_addr"`
	Namespace  string `mapstructure:"namespace"`
}

type SentryConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	DSN              string  `mapstructure:"dsn"`
	Environment      string  `mapstructure:"environment"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// NewConfig loads configuration from ./config/config.yaml (optional) and the
// environment (CRASHWATCH_* variables override file values).
func NewConfig() (*Configuration, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CRASHWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, ierr.WithError(err).
				WithHint("Failed to read config file").
				Mark(ierr.ErrValidation)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to unmarshal configuration").
			Mark(ierr.ErrValidation)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))
	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("clickhouse.address", "localhost:9000")
	v.SetDefault("clickhouse.database", "default")
	v.SetDefault("clickhouse.username", "default")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("telemetry.statsd_addr", "localhost:8125")
	v.SetDefault("telemetry.namespace", "crashwatch")
	v.SetDefault("sentry.traces_sample_rate", 0.1)
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if c.ClickHouse.Address == "" {
		return ierr.NewError("clickhouse address is required").
			Mark(ierr.ErrValidation)
	}
	if c.Sentry.Enabled && c.Sentry.DSN == "" {
		return ierr.NewError("sentry dsn is required when sentry is enabled").
			Mark(ierr.ErrValidation)
	}
	if c.Logging.FluentdEnabled && (c.Logging.FluentdHost == "" || c.Logging.FluentdPort <= 0) {
		return ierr.NewError("fluentd host and port are required when fluentd is enabled").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// GetDefaultConfig returns a configuration suitable for local development and
// tests: no external log shipping, telemetry disabled.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelInfo},
		ClickHouse: ClickHouseConfig{
			Address:  "localhost:9000",
			Database: "default",
			Username: "default",
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			PoolSize: 10,
		},
		Telemetry: TelemetryConfig{Namespace: "crashwatch"},
	}
}
