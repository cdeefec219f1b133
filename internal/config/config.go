// Package config loads server settings from PARLAY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/hperssn/parlay/internal/domain"
	"github.com/hperssn/parlay/internal/floor"
	"github.com/hperssn/parlay/internal/runner"
)

const envPrefix = "PARLAY_"

type Config struct {
	Addr      string `env:"ADDR" envDefault:":8080"`
	DBDriver  string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN     string `env:"DB_DSN" envDefault:"parlay.db"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	TurnLimit        time.Duration `env:"TURN_LIMIT" envDefault:"7m"`
	OpeningWindow    time.Duration `env:"OPENING_WINDOW" envDefault:"5m"`
	WarningWindow    time.Duration `env:"WARNING_WINDOW" envDefault:"7m"`
	CollectionWindow time.Duration `env:"COLLECTION_WINDOW" envDefault:"3s"`
	TickInterval     time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	RetainEnded      time.Duration `env:"RETAIN_ENDED" envDefault:"1h"`
	MaxContentLength int           `env:"MAX_CONTENT_LENGTH" envDefault:"20000"`
}

// Load reads the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.DBDriver) {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("%sDB_DRIVER must be sqlite or postgres, got %q", envPrefix, c.DBDriver))
	}
	if strings.TrimSpace(c.DBDSN) == "" {
		errs = append(errs, fmt.Errorf("%sDB_DSN is required", envPrefix))
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"TURN_LIMIT", c.TurnLimit},
		{"TICK_INTERVAL", c.TickInterval},
		{"RETAIN_ENDED", c.RetainEnded},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s%s must be positive", envPrefix, p.name))
		}
	}
	if c.OpeningWindow < 0 || c.WarningWindow < 0 || c.CollectionWindow < 0 {
		errs = append(errs, fmt.Errorf("%s window durations must not be negative", envPrefix))
	}
	if c.MaxContentLength < 0 {
		errs = append(errs, fmt.Errorf("%sMAX_CONTENT_LENGTH must not be negative", envPrefix))
	}
	return errors.Join(errs...)
}

func (c Config) Floor() floor.Config {
	return floor.Config{
		TurnLimit:        c.TurnLimit,
		CollectionWindow: c.CollectionWindow,
		MaxContentLength: c.MaxContentLength,
		Windows: domain.ClockWindows{
			Opening: c.OpeningWindow,
			Warning: c.WarningWindow,
		},
	}
}

// RunnerOptions derives session manager options; the rest keep their defaults.
func (c Config) RunnerOptions() runner.Options {
	opts := runner.DefaultOptions()
	opts.Floor = c.Floor()
	opts.TickInterval = c.TickInterval
	opts.RetainEnded = c.RetainEnded
	return opts
}
