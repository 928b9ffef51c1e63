// Package config loads settings for the command-line tools from the
// environment and an optional .env file. Flags override these values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"go.uber.org/zap"

	"github.com/xiabin827/tbremote"
)

type Config struct {
	Addr          string        `env:"TBREMOTE_ADDR"`
	Family        string        `env:"TBREMOTE_FAMILY" default:"ona1000"`
	Profile       string        `env:"TBREMOTE_PROFILE"`
	Timeout       time.Duration `env:"TBREMOTE_TIMEOUT" default:"10s"`
	RegisterDelay time.Duration `env:"TBREMOTE_REGISTER_DELAY" default:"1300ms"`
	Visible       bool          `env:"TBREMOTE_VISIBLE" default:"false"`
	LogLevel      string        `env:"TBREMOTE_LOG_LEVEL" default:"info"`
	LogFormat     string        `env:"TBREMOTE_LOG_FORMAT" default:"console"`
	MetricsAddr   string        `env:"TBREMOTE_METRICS_ADDR"`
}

// Load reads the given .env files (default ".env"; missing files are
// ignored) and then the TBREMOTE_* environment variables.
// Variables already set in the environment win over .env entries.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that can be checked without a network.
// Addr may be empty; the interactive tool asks for it.
func (c *Config) Validate() error {
	if c.Addr != "" {
		if err := tbremote.ValidateAddress(c.Addr); err != nil {
			return err
		}
	}
	if _, err := tbremote.ParseFamily(c.Family); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("TBREMOTE_TIMEOUT must be positive, got %s", c.Timeout)
	}
	if c.RegisterDelay < 0 {
		return fmt.Errorf("TBREMOTE_REGISTER_DELAY must not be negative, got %s", c.RegisterDelay)
	}
	return nil
}

// InstrumentProfile returns the profile file's contents when Profile is set,
// otherwise the built-in profile for Family.
func (c *Config) InstrumentProfile() (tbremote.Profile, error) {
	if c.Profile != "" {
		return tbremote.LoadProfile(c.Profile)
	}
	family, err := tbremote.ParseFamily(c.Family)
	if err != nil {
		return tbremote.Profile{}, err
	}
	return tbremote.ProfileFor(family), nil
}

// ControllerConfig builds the library configuration.
func (c *Config) ControllerConfig(logger *zap.Logger, metrics *tbremote.Metrics) (*tbremote.Config, error) {
	profile, err := c.InstrumentProfile()
	if err != nil {
		return nil, err
	}
	return &tbremote.Config{
		Profile:       profile,
		Timeout:       c.Timeout,
		Visible:       c.Visible,
		RegisterDelay: c.RegisterDelay,
		Logger:        logger,
		Metrics:       metrics,
	}, nil
}
