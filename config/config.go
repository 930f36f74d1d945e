package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// BackendPGX selects raw pgx pool connections to PostgreSQL.
	BackendPGX = "pgx"

	// BackendSQLXPostgres selects sqlx sessions to PostgreSQL via lib/pq.
	BackendSQLXPostgres = "sqlx-postgres"

	// BackendSQLXSQLite selects sqlx sessions to a SQLite file.
	BackendSQLXSQLite = "sqlx-sqlite"

	// BackendBolt selects an embedded bbolt file.
	BackendBolt = "bolt"

	envPrefix = "ENTITYSTORE"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete benchmark configuration.
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Store    StoreConfig    `mapstructure:"store"`
	Workload WorkloadConfig `mapstructure:"workload"`
	Harness  HarnessConfig  `mapstructure:"harness"`
	Log      LogConfig      `mapstructure:"log"`
}

// BackendConfig selects and sizes the storage backend.
type BackendConfig struct {
	Type      string `mapstructure:"type"`
	DSN       string `mapstructure:"dsn"`
	Path      string `mapstructure:"path"`
	PoolSize  int    `mapstructure:"pool_size"`
	TableName string `mapstructure:"table_name"`
}

// StoreConfig configures the entity store.
type StoreConfig struct {
	SnapshotInterval int           `mapstructure:"snapshot_interval"`
	AcquireTimeout   time.Duration `mapstructure:"acquire_timeout"`
}

// WorkloadConfig configures the retry behavior of the workload driver.
type WorkloadConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BaseDelay    time.Duration `mapstructure:"base_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	JitterFactor float64       `mapstructure:"jitter_factor"`
}

// HarnessConfig configures the sessions the harness runs.
type HarnessConfig struct {
	Workers       int           `mapstructure:"workers"`
	Iterations    int           `mapstructure:"iterations"`
	Sessions      int           `mapstructure:"sessions"`
	Seed          uint64        `mapstructure:"seed"`
	BandWidth     int64         `mapstructure:"band_width"`
	BandMask      int64         `mapstructure:"band_mask"`
	Truncate      bool          `mapstructure:"truncate"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

// LogConfig configures the slog handler of the CLI.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the YAML file at configPath, if any, and applies ENTITYSTORE_* environment overrides,
// e.g. ENTITYSTORE_BACKEND_DSN for backend.dsn.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.type", BackendSQLXSQLite)
	v.SetDefault("backend.dsn", "")
	v.SetDefault("backend.path", "entitystore.db")
	v.SetDefault("backend.pool_size", 16)
	v.SetDefault("backend.table_name", "event")
	v.SetDefault("store.snapshot_interval", 10)
	v.SetDefault("store.acquire_timeout", 10*time.Second)
	v.SetDefault("workload.max_attempts", 3)
	v.SetDefault("workload.base_delay", time.Duration(0))
	v.SetDefault("workload.max_delay", 30*time.Second)
	v.SetDefault("workload.jitter_factor", 0.0)
	v.SetDefault("harness.workers", 4)
	v.SetDefault("harness.iterations", 1000)
	v.SetDefault("harness.sessions", 1)
	v.SetDefault("harness.seed", 0)
	v.SetDefault("harness.band_width", 64)
	v.SetDefault("harness.band_mask", 64)
	v.SetDefault("harness.truncate", true)
	v.SetDefault("harness.shutdown_grace", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks the settings that the backend, store, driver and harness would otherwise reject later.
func (c *Config) Validate() error {
	switch c.Backend.Type {
	case BackendPGX, BackendSQLXPostgres:
		if c.Backend.DSN == "" {
			return fmt.Errorf("%w: backend.dsn is required for backend %s", ErrInvalidConfig, c.Backend.Type)
		}
	case BackendSQLXSQLite, BackendBolt:
		if c.Backend.Path == "" {
			return fmt.Errorf("%w: backend.path is required for backend %s", ErrInvalidConfig, c.Backend.Type)
		}
	default:
		return fmt.Errorf(
			"%w: invalid backend.type: %q (valid options: %s, %s, %s, %s)",
			ErrInvalidConfig, c.Backend.Type, BackendPGX, BackendSQLXPostgres, BackendSQLXSQLite, BackendBolt,
		)
	}

	if c.Backend.PoolSize <= 0 {
		return fmt.Errorf("%w: backend.pool_size must be positive", ErrInvalidConfig)
	}

	if c.Store.SnapshotInterval < 2 {
		return fmt.Errorf("%w: store.snapshot_interval must be at least 2", ErrInvalidConfig)
	}

	if c.Store.AcquireTimeout <= 0 {
		return fmt.Errorf("%w: store.acquire_timeout must be positive", ErrInvalidConfig)
	}

	if c.Workload.MaxAttempts <= 0 {
		return fmt.Errorf("%w: workload.max_attempts must be positive", ErrInvalidConfig)
	}

	if c.Workload.MaxDelay <= 0 {
		return fmt.Errorf("%w: workload.max_delay must be positive", ErrInvalidConfig)
	}

	if c.Workload.JitterFactor < 0 || c.Workload.JitterFactor > 1 {
		return fmt.Errorf("%w: workload.jitter_factor must be between 0 and 1", ErrInvalidConfig)
	}

	if c.Harness.Workers <= 0 || c.Harness.Iterations <= 0 || c.Harness.Sessions <= 0 {
		return fmt.Errorf("%w: harness.workers, harness.iterations and harness.sessions must be positive", ErrInvalidConfig)
	}

	if c.Harness.BandWidth <= 0 || c.Harness.BandMask < 0 {
		return fmt.Errorf("%w: harness.band_width must be positive and harness.band_mask not negative", ErrInvalidConfig)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: invalid log.format: %q (valid options: text, json)", ErrInvalidConfig, c.Log.Format)
	}

	return nil
}
