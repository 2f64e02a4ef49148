package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all configuration for the hyp3 CLI.
type Config struct {
	API   APIConfig
	Auth  AuthConfig
	Watch WatchConfig
}

type APIConfig struct {
	URL     string
	Timeout time.Duration
}

type AuthConfig struct {
	Token    string
	Username string
	Password string
}

type WatchConfig struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value is
// missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			URL:     envString("HYP3_API_URL", "https://hyp3-api.asf.alaska.edu"),
			Timeout: envDuration("HYP3_TIMEOUT", 30*time.Second),
		},
		Auth: AuthConfig{
			Token:    os.Getenv("EARTHDATA_TOKEN"),
			Username: os.Getenv("EARTHDATA_USERNAME"),
			Password: os.Getenv("EARTHDATA_PASSWORD"),
		},
		Watch: WatchConfig{
			Timeout:  envDuration("HYP3_WATCH_TIMEOUT", 3*time.Hour),
			Interval: envDuration("HYP3_WATCH_INTERVAL", time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.API.URL, "http://") && !strings.HasPrefix(c.API.URL, "https://") {
		return fmt.Errorf("HYP3_API_URL must start with http:// or https://, got %q", c.API.URL)
	}

	if c.Auth.Token == "" {
		if c.Auth.Username == "" || c.Auth.Password == "" {
			return fmt.Errorf("either EARTHDATA_TOKEN or both EARTHDATA_USERNAME and EARTHDATA_PASSWORD are required")
		}
	}

	if c.Watch.Interval <= 0 {
		return fmt.Errorf("HYP3_WATCH_INTERVAL must be positive, got %s", c.Watch.Interval)
	}
	if c.Watch.Timeout < c.Watch.Interval {
		return fmt.Errorf("HYP3_WATCH_TIMEOUT (%s) must not be shorter than HYP3_WATCH_INTERVAL (%s)",
			c.Watch.Timeout, c.Watch.Interval)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
