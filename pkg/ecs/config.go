package ecs

import (
	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// DefaultPoolCapacity is the pool capacity used when none is configured.
const DefaultPoolCapacity = 1024

// Config holds the tunables of a World and its schedulers.
// Configuration can be set via environment variables with the specified defaults.
type Config struct {
	// Capacity of every component pool. Entity IDs at or above it can't hold components.
	PoolCapacity int `env:"MELEVO_POOL_CAPACITY" envDefault:"1024"`

	// Minimum level of the logger built by the application.
	LogLevel string `env:"MELEVO_LOG_LEVEL" envDefault:"info"`

	// Run every system on the caller's goroutine instead of concurrently.
	Sequential bool `env:"MELEVO_SEQUENTIAL" envDefault:"false"`

	// Maximum number of systems running at once. Zero means no limit.
	MaxConcurrency int `env:"MELEVO_MAX_CONCURRENCY" envDefault:"0"`
}

// DefaultConfig returns the configuration used when nothing is set in the environment.
func DefaultConfig() Config {
	return Config{
		PoolCapacity:   DefaultPoolCapacity,
		LogLevel:       zerolog.LevelInfoValue,
		Sequential:     false,
		MaxConcurrency: 0,
	}
}

// LoadConfig loads the configuration from environment variables.
func LoadConfig() (Config, error) {
	cfg := Config{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse config")
	}

	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate config")
	}

	return cfg, nil
}

// Level returns the parsed log level.
func (cfg *Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.NoLevel, eris.Wrapf(ErrInvalidConfig, "log level %q", cfg.LogLevel)
	}
	return level, nil
}

// validate performs validation on the loaded configuration.
func (cfg *Config) validate() error {
	if cfg.PoolCapacity <= 0 {
		return eris.Wrapf(ErrInvalidConfig, "pool capacity must be positive, got %d", cfg.PoolCapacity)
	}
	if cfg.MaxConcurrency < 0 {
		return eris.Wrapf(ErrInvalidConfig, "max concurrency cannot be negative, got %d", cfg.MaxConcurrency)
	}
	if _, err := cfg.Level(); err != nil {
		return err
	}
	return nil
}
