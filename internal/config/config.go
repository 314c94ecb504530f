// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the trainer server settings.
type Config struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"INFO"`
	OTELEnabled     bool          `env:"OTEL_ENABLED" envDefault:"false"`
	OTELServiceName string        `env:"OTEL_SERVICE_NAME" envDefault:"startrescue"`
	SessionIdleTTL  time.Duration `env:"SESSION_IDLE_TTL" envDefault:"2h"`
	ReapSchedule    string        `env:"SESSION_REAP_SCHEDULE" envDefault:"@every 5m"`
	QuestionTick    time.Duration `env:"QUESTION_TICK" envDefault:"1s"`
	// RandomSeed fixes every session's random source when non-zero.
	RandomSeed int64 `env:"RANDOM_SEED" envDefault:"0"`
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.QuestionTick < 0 {
		return Config{}, fmt.Errorf("QUESTION_TICK must not be negative, got %s", cfg.QuestionTick)
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
