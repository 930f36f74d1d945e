package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// TestEnvironment holds optional connection strings for integration tests.
type TestEnvironment struct {
	PostgresDSN string `env:"ENTITYSTORE_TEST_POSTGRES_DSN"`
}

// TestDSNs parses the integration test environment. Unset variables stay empty.
func TestDSNs() (TestEnvironment, error) {
	var environment TestEnvironment
	if err := env.Parse(&environment); err != nil {
		return TestEnvironment{}, fmt.Errorf("parse env: %w", err)
	}

	return environment, nil
}
