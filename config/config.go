// Package config loads runtime settings from the environment. A .env file is
// honored when present so demos and tests run without exported variables.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config carries every tunable the engine exposes. Values map onto the
// Options structs of the individual components.
type Config struct {
	// Session context store.
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"30m"`
	SessionMaxTurns int           `envconfig:"SESSION_MAX_TURNS" default:"20"`
	// RedisURL switches the session store to the redis backend when set.
	RedisURL string `envconfig:"REDIS_URL"`

	// Tool executor.
	ExecutorMaxInFlight int           `envconfig:"EXECUTOR_MAX_IN_FLIGHT" default:"4"`
	ExecutorStepTimeout time.Duration `envconfig:"EXECUTOR_STEP_TIMEOUT" default:"30s"`

	// Reasoning gateway resilience.
	GatewayFailureThreshold int           `envconfig:"GATEWAY_FAILURE_THRESHOLD" default:"5"`
	GatewaySuccessThreshold int           `envconfig:"GATEWAY_SUCCESS_THRESHOLD" default:"2"`
	GatewayRecoveryTimeout  time.Duration `envconfig:"GATEWAY_RECOVERY_TIMEOUT" default:"30s"`
	GatewayCallTimeout      time.Duration `envconfig:"GATEWAY_CALL_TIMEOUT" default:"15s"`

	// Logging.
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads INTENTMESH_* environment variables, after sourcing a .env file
// if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("INTENTMESH", &cfg); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}
	return &cfg, nil
}
