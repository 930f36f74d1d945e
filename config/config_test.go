package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "entitystore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func Test_Load_Without_File_Uses_Defaults(t *testing.T) {
	// act
	cfg, err := config.Load("")

	// assert
	require.NoError(t, err)
	assert.Equal(t, config.BackendSQLXSQLite, cfg.Backend.Type)
	assert.Equal(t, 16, cfg.Backend.PoolSize)
	assert.Equal(t, "event", cfg.Backend.TableName)
	assert.Equal(t, 10, cfg.Store.SnapshotInterval)
	assert.Equal(t, 10*time.Second, cfg.Store.AcquireTimeout)
	assert.Equal(t, 3, cfg.Workload.MaxAttempts)
	assert.Equal(t, int64(64), cfg.Harness.BandWidth)
	assert.Equal(t, int64(64), cfg.Harness.BandMask)
	assert.Equal(t, 5*time.Second, cfg.Harness.ShutdownGrace)
	assert.True(t, cfg.Harness.Truncate)
}

func Test_Load_Reads_YAML_File(t *testing.T) {
	// setup
	path := writeConfigFile(t, `
backend:
  type: bolt
  path: /tmp/bench.bolt
  pool_size: 4
store:
  snapshot_interval: 5
  acquire_timeout: 250ms
workload:
  max_attempts: 5
  base_delay: 10ms
  max_delay: 2s
  jitter_factor: 0.2
harness:
  workers: 8
  iterations: 50
  seed: 42
log:
  level: debug
  format: json
`)

	// act
	cfg, err := config.Load(path)

	// assert
	require.NoError(t, err)
	assert.Equal(t, config.BackendBolt, cfg.Backend.Type)
	assert.Equal(t, "/tmp/bench.bolt", cfg.Backend.Path)
	assert.Equal(t, 4, cfg.Backend.PoolSize)
	assert.Equal(t, 5, cfg.Store.SnapshotInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.AcquireTimeout)
	assert.Equal(t, 5, cfg.Workload.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.Workload.BaseDelay)
	assert.Equal(t, 2*time.Second, cfg.Workload.MaxDelay)
	assert.InDelta(t, 0.2, cfg.Workload.JitterFactor, 1e-9)
	assert.Equal(t, 8, cfg.Harness.Workers)
	assert.Equal(t, 50, cfg.Harness.Iterations)
	assert.Equal(t, uint64(42), cfg.Harness.Seed)
	assert.Equal(t, "json", cfg.Log.Format)
}

func Test_Load_Environment_Overrides_File(t *testing.T) {
	// setup
	path := writeConfigFile(t, `
backend:
  type: sqlx-postgres
  dsn: postgres://file@localhost/bench
`)
	t.Setenv("ENTITYSTORE_BACKEND_DSN", "postgres://env@localhost/bench")
	t.Setenv("ENTITYSTORE_HARNESS_WORKERS", "12")

	// act
	cfg, err := config.Load(path)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "postgres://env@localhost/bench", cfg.Backend.DSN)
	assert.Equal(t, 12, cfg.Harness.Workers)
}

func Test_Load_Fails_For_Missing_File(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
}

func Test_Validate(t *testing.T) {
	valid := func() config.Config {
		cfg, err := config.Load("")
		require.NoError(t, err)

		return *cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "unknown backend", mutate: func(c *config.Config) { c.Backend.Type = "oracle" }},
		{name: "postgres without dsn", mutate: func(c *config.Config) { c.Backend.Type = config.BackendPGX }},
		{name: "bolt without path", mutate: func(c *config.Config) { c.Backend.Type = config.BackendBolt; c.Backend.Path = "" }},
		{name: "zero pool size", mutate: func(c *config.Config) { c.Backend.PoolSize = 0 }},
		{name: "snapshot interval of one", mutate: func(c *config.Config) { c.Store.SnapshotInterval = 1 }},
		{name: "zero acquire timeout", mutate: func(c *config.Config) { c.Store.AcquireTimeout = 0 }},
		{name: "zero attempts", mutate: func(c *config.Config) { c.Workload.MaxAttempts = 0 }},
		{name: "zero max delay", mutate: func(c *config.Config) { c.Workload.MaxDelay = 0 }},
		{name: "jitter above one", mutate: func(c *config.Config) { c.Workload.JitterFactor = 1.5 }},
		{name: "zero workers", mutate: func(c *config.Config) { c.Harness.Workers = 0 }},
		{name: "zero band width", mutate: func(c *config.Config) { c.Harness.BandWidth = 0 }},
		{name: "unknown log format", mutate: func(c *config.Config) { c.Log.Format = "xml" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)

			assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
		})
	}
}

func Test_TestDSNs_Reads_Environment(t *testing.T) {
	// setup
	t.Setenv("ENTITYSTORE_TEST_POSTGRES_DSN", "postgres://test@localhost/test")

	// act
	env, err := config.TestDSNs()

	// assert
	require.NoError(t, err)
	assert.Equal(t, "postgres://test@localhost/test", env.PostgresDSN)
}

func Test_SQLiteDSN(t *testing.T) {
	dsn := config.SQLiteDSN("/tmp/bench.db")

	assert.Equal(t, "file:/tmp/bench.db?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_txlock=immediate", dsn)
}
