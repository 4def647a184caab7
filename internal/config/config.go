package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// MatchHorizonHours bounds how far ahead the matcher proposes windows
	// when a service request has no desired period.
	MatchHorizonHours int `mapstructure:"MATCH_HORIZON_HOURS"`

	// RequireContactInfo makes phone/email mandatory at registration. The
	// source schemas disagree on optionality, so it is a deployment choice.
	RequireContactInfo bool `mapstructure:"REQUIRE_CONTACT_INFO"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MATCH_HORIZON_HOURS", 14*24)
	v.SetDefault("REQUIRE_CONTACT_INFO", true)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("MATCH_HORIZON_HOURS")
	v.BindEnv("REQUIRE_CONTACT_INFO")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// MatchHorizon returns the matcher look-ahead as a duration.
func (c *Config) MatchHorizon() time.Duration {
	return time.Duration(c.MatchHorizonHours) * time.Hour
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.MatchHorizonHours <= 0 {
		return fmt.Errorf("MATCH_HORIZON_HOURS must be positive, got %d", c.MatchHorizonHours)
	}
	if c.DBMinConns < 0 || c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive and DB_MIN_CONNS non-negative")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.LogLevel)
	}
	return nil
}
