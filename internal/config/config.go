package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when TURFBOOK_CONFIG_PATH is empty.
const DefaultPath = "configs/config.yaml"

// Environment overrides for the remote booking service.
const (
	EnvConfigPath = "TURFBOOK_CONFIG_PATH"
	EnvAPIBaseURL = "TURF_API_BASE_URL"
	EnvAPITimeout = "TURF_API_TIMEOUT_MS"
)

type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	API struct {
		BaseURL         string  `yaml:"base_url"`
		TimeoutMS       int     `yaml:"timeout_ms"`
		RatePerSecond   float64 `yaml:"rate_per_second"`
		Burst           int     `yaml:"burst"`
		CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
		AdminUsername   string  `yaml:"admin_username"`
		AdminPassword   string  `yaml:"admin_password"`
		AdminToken      string  `yaml:"admin_token"`
	} `yaml:"api"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	HTTP struct {
		Enabled        bool     `yaml:"enabled"`
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		CookieSecure   bool     `yaml:"cookie_secure"`
		// RequestsPerSecond is the per-IP limit on /flow endpoints.
		RequestsPerSecond int `yaml:"requests_per_second"`
	} `yaml:"http"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Session struct {
		TimeoutMinutes         int `yaml:"timeout_minutes"`
		CleanupIntervalSeconds int `yaml:"cleanup_interval_seconds"`
		RollbackTimeoutSeconds int `yaml:"rollback_timeout_seconds"`
	} `yaml:"session"`

	Booking struct {
		Timezone  string `yaml:"timezone"`
		DaysAhead int    `yaml:"days_ahead"`
	} `yaml:"booking"`

	Managers []int64 `yaml:"managers"`
}

// Load reads the YAML config at path. A .env file in the working directory, when
// present, is loaded first so its values are visible to ${VAR} placeholders.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err = cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/turfbook.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvAPITimeout); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAPITimeout, err)
		}
		c.API.TimeoutMS = ms
	}
	return nil
}

func (c *Config) APIBaseURL() string {
	if c.API.BaseURL == "" {
		return "http://localhost:8000"
	}
	return c.API.BaseURL
}

func (c *Config) APITimeout() time.Duration {
	if c.API.TimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.API.TimeoutMS) * time.Millisecond
}

// CacheTTL is zero when slot caching is disabled.
func (c *Config) CacheTTL() time.Duration {
	if c.Redis.Address == "" || c.API.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

func (c *Config) SessionTimeout() time.Duration {
	if c.Session.TimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Session.TimeoutMinutes) * time.Minute
}

func (c *Config) SessionCleanupInterval() time.Duration {
	if c.Session.CleanupIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Session.CleanupIntervalSeconds) * time.Second
}

func (c *Config) RollbackTimeout() time.Duration {
	if c.Session.RollbackTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Session.RollbackTimeoutSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) HTTPPort() int {
	if c.HTTP.Port == 0 {
		return 8080
	}
	return c.HTTP.Port
}

func (c *Config) HTTPRateLimit() int {
	if c.HTTP.RequestsPerSecond <= 0 {
		return 20
	}
	return c.HTTP.RequestsPerSecond
}

func (c *Config) HealthCheckPort() int {
	if c.Monitoring.HealthCheckPort == 0 {
		return 8090
	}
	return c.Monitoring.HealthCheckPort
}

func (c *Config) PrometheusPort() int {
	if c.Monitoring.PrometheusPort == 0 {
		return 9090
	}
	return c.Monitoring.PrometheusPort
}

// DaysAhead is how many days the date pickers offer, today included.
func (c *Config) DaysAhead() int {
	if c.Booking.DaysAhead <= 0 {
		return 14
	}
	return c.Booking.DaysAhead
}

// Location resolves booking.timezone, defaulting to the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Booking.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Booking.Timezone)
}
