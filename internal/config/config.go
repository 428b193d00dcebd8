package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all the settings for the application: the HTTP listen
// port, the operating environment, the upstream feed endpoints, and the
// cache/search tuning knobs.
type Config struct {
	Port int    `validate:"gte=0,lte=65535"`
	Env  string `validate:"omitempty,oneof=development staging production"`

	StaticFeedURL string `validate:"required,url"`
	LiveFeedURL   string `validate:"omitempty,url"`

	StaticTTL        time.Duration
	LiveTTL          time.Duration
	LiveFetchTimeout time.Duration

	RadiusKm float64 `validate:"gte=0"`
	MaxStops int     `validate:"gte=0"`
}

// fileConfig is the YAML shape of the config file. Durations are Go
// duration strings ("30m", "15s").
type fileConfig struct {
	Port int    `yaml:"port"`
	Env  string `yaml:"env"`

	StaticFeedURL string `yaml:"static_feed_url"`
	LiveFeedURL   string `yaml:"live_feed_url"`

	StaticTTL        string `yaml:"static_ttl"`
	LiveTTL          string `yaml:"live_ttl"`
	LiveFetchTimeout string `yaml:"live_fetch_timeout"`

	RadiusKm float64 `yaml:"radius_km"`
	MaxStops int     `yaml:"max_stops"`
}

// Load reads the YAML config file, applies environment overrides, and
// validates the result. A `.env` file in the working directory is
// loaded into the environment first, when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port: 4000,
		Env:  "development",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
		if err := cfg.apply(fc); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Feed endpoints are deploy-time secrets in some agencies, so the
	// environment wins over the file.
	if v := os.Getenv("STATIC_FEED_URL"); v != "" {
		cfg.StaticFeedURL = v
	}
	if v := os.Getenv("LIVE_FEED_URL"); v != "" {
		cfg.LiveFeedURL = v
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) apply(fc fileConfig) error {
	if fc.Port != 0 {
		c.Port = fc.Port
	}
	if fc.Env != "" {
		c.Env = fc.Env
	}
	if fc.StaticFeedURL != "" {
		c.StaticFeedURL = fc.StaticFeedURL
	}
	if fc.LiveFeedURL != "" {
		c.LiveFeedURL = fc.LiveFeedURL
	}
	c.RadiusKm = fc.RadiusKm
	c.MaxStops = fc.MaxStops

	for _, d := range []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{fc.StaticTTL, "static_ttl", &c.StaticTTL},
		{fc.LiveTTL, "live_ttl", &c.LiveTTL},
		{fc.LiveFetchTimeout, "live_fetch_timeout", &c.LiveFetchTimeout},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}
