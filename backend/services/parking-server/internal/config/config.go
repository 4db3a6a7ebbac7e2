package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	libconfig "parkmeter/backend/libs/config"
	libdb "parkmeter/backend/libs/db"
)

// DefaultPort is the device facing TCP port. Port 0 binds an ephemeral port.
const DefaultPort = 55152

// Config defines parking server configuration.
type Config struct {
	TCP       TCPConfig       `yaml:"tcp"`
	Database  DatabaseConfig  `yaml:"database"`
	Prices    PricesConfig    `yaml:"prices"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// TCPConfig is the device listener.
type TCPConfig struct {
	Port            int           `yaml:"port" env:"PARKING_TCP_PORT"`
	MaxSessions     int           `yaml:"maxSessions" env:"PARKING_MAX_SESSIONS"`
	ReadTimeout     time.Duration `yaml:"readTimeout" env:"PARKING_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" env:"PARKING_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"PARKING_SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig selects durable storage.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"PARKING_DB_DRIVER"`
	DSN    string `yaml:"dsn" env:"PARKING_DB_DSN"`
}

// PricesConfig controls the zone price table.
type PricesConfig struct {
	Seed bool `yaml:"seed" env:"PARKING_SEED_PRICES"`
}

// ReconcileConfig controls the periodic flush.
type ReconcileConfig struct {
	Period time.Duration `yaml:"period" env:"PARKING_RECONCILE_PERIOD"`
}

// RedisConfig enables the active session mirror. Empty Addr disables it.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"PARKING_REDIS_ADDR"`
	Password string        `yaml:"password" env:"PARKING_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"PARKING_REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env:"PARKING_REDIS_TTL"`
}

// MetricsConfig enables the /metrics listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"PARKING_METRICS_ADDR"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// Default returns configuration with every default applied.
func Default() *Config {
	return &Config{
		TCP: TCPConfig{
			Port:            DefaultPort,
			MaxSessions:     10,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: libdb.DriverSQLite,
			DSN:    "parking.db",
		},
		Prices:    PricesConfig{Seed: true},
		Reconcile: ReconcileConfig{Period: 5 * time.Second},
		Redis:     RedisConfig{TTL: 24 * time.Hour},
	}
}

// Load uses shared config loader and validates the result.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile is Load with an explicit YAML file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfigFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unusable settings.
func (c *Config) Validate() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if !libdb.Known(c.Database.Driver) {
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database DSN is required")
	}
	if c.TCP.Port < 0 || c.TCP.Port > 65535 {
		return fmt.Errorf("config: tcp port %d out of range", c.TCP.Port)
	}
	if c.TCP.MaxSessions <= 0 {
		return errors.New("config: tcp maxSessions must be positive")
	}
	if c.TCP.ReadTimeout < 0 || c.TCP.WriteTimeout < 0 {
		return errors.New("config: tcp timeouts must not be negative")
	}
	if c.Reconcile.Period <= 0 {
		return errors.New("config: reconcile period must be positive")
	}
	return nil
}

// TCPAddress returns :port style address.
func (c *Config) TCPAddress() string {
	return ":" + strconv.Itoa(c.TCP.Port)
}

// ShutdownTimeout returns the handler drain budget.
func (c *Config) ShutdownTimeout() time.Duration {
	if c.TCP.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return c.TCP.ShutdownTimeout
}

// RedisEnabled reports whether the active session mirror is configured.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

// MetricsEnabled reports whether the metrics listener is configured.
func (c *Config) MetricsEnabled() bool {
	return strings.TrimSpace(c.Metrics.Addr) != ""
}
