// Package config loads the dashboard configuration from YAML files and
// environment variables via viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/4liaghaie/scraper-dashboard/internal/database"
	"github.com/4liaghaie/scraper-dashboard/internal/logger"
)

// Server defaults.
const (
	defaultServerAddress     = ":8080"
	defaultServerReadTimeout = 30 * time.Second
	defaultServerIdleTimeout = 60 * time.Second
	defaultShutdownTimeout   = 15 * time.Second
)

// ServerConfig holds HTTP server settings. WriteTimeout must stay zero
// for the stream endpoint to outlive a request deadline.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RedisConfig holds the parameter cache settings.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig holds the PostgreSQL settings for run persistence and
// the product store.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// Conn converts to the database package's connection config.
func (d DatabaseConfig) Conn() database.Config {
	return database.Config{
		Host:     d.Host,
		Port:     d.Port,
		User:     d.User,
		Password: d.Password,
		DBName:   d.DBName,
		SSLMode:  d.SSLMode,
	}
}

// EngineConfig bounds the job engine.
type EngineConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
	WatchBuffer   int `mapstructure:"watch_buffer"`
}

// SchedulerConfig controls the periodic full refresh.
type SchedulerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	FullRunSpec string `mapstructure:"full_run_spec"`
}

// ScraperConfig tunes the scraper executors.
type ScraperConfig struct {
	UserAgent string `mapstructure:"user_agent"`
}

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logger    logger.Config   `mapstructure:"logger"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
}

// SetDefaults registers every default on the viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.address", defaultServerAddress)
	v.SetDefault("server.read_timeout", defaultServerReadTimeout)
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.idle_timeout", defaultServerIdleTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.development", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "scraper_dashboard")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("engine.max_concurrent", 0)
	v.SetDefault("engine.watch_buffer", 64)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.full_run_spec", "0 4 * * *")

	v.SetDefault("scraper.user_agent", "")
}

// Load unmarshals the viper instance into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.New("config: server.address is required")
	}
	if c.Scheduler.Enabled && c.Scheduler.FullRunSpec == "" {
		return errors.New("config: scheduler.full_run_spec is required when the scheduler is enabled")
	}
	if c.Database.Enabled && c.Database.Host == "" {
		return errors.New("config: database.host is required when the database is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("config: redis.addr is required when redis is enabled")
	}
	return nil
}
