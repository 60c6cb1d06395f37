package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"turfslot/internal/slots"
)

const (
	availabilityAPI    = "api"
	availabilityStatic = "static"
)

type Config struct {
	Server struct {
		Address        string   `yaml:"address"`
		APIKeys        []string `yaml:"api_keys"`
		ReadTimeoutSec int      `yaml:"read_timeout_seconds"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	API struct {
		BaseURL         string `yaml:"base_url"`
		APIKey          string `yaml:"api_key"`
		APIExtra        string `yaml:"api_extra"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
		TimeoutSeconds  int    `yaml:"timeout_seconds"`
	} `yaml:"api"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Catalog struct {
		Path          string `yaml:"path"`
		ReloadSeconds int    `yaml:"reload_seconds"`
	} `yaml:"catalog"`

	Booking struct {
		MaxAdvanceDays        int  `yaml:"max_advance_days"`
		BotDaysAhead          int  `yaml:"bot_days_ahead"`
		SessionTimeoutMinutes int  `yaml:"session_timeout_minutes"`
		FailClosed            bool `yaml:"fail_closed"`
		SubmitPerMinute       int  `yaml:"submit_per_minute"`
		SubmitBurst           int  `yaml:"submit_burst"`
		// Availability is "api" (default) or "static".
		Availability      string `yaml:"availability"`
		StaticBookedSlots []int  `yaml:"static_booked_slots"`
	} `yaml:"booking"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// BackupConfig controls periodic sqlite snapshots.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Interval returns the backup period, one day by default.
func (b BackupConfig) Interval() time.Duration {
	if b.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(b.IntervalHours) * time.Hour
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/turfslot.db"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "configs/turfs.yaml"
	}

	switch cfg.Booking.Availability {
	case "", availabilityAPI, availabilityStatic:
	default:
		return nil, fmt.Errorf("booking.availability: unknown source %q", cfg.Booking.Availability)
	}
	for _, v := range cfg.Booking.StaticBookedSlots {
		if err = slots.ValidateRange(v, v); err != nil {
			return nil, fmt.Errorf("booking.static_booked_slots: %w", err)
		}
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// StaticBookedSlots returns the fixed booked set the bot serves instead of
// querying the API, and whether static availability is enabled.
func (c *Config) StaticBookedSlots() ([]int, bool) {
	if c.Booking.Availability != availabilityStatic {
		return nil, false
	}
	return c.Booking.StaticBookedSlots, true
}

func (c *Config) BookingMaxAdvance() time.Duration {
	if c.Booking.MaxAdvanceDays <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(c.Booking.MaxAdvanceDays) * 24 * time.Hour
}

// BotDaysAhead is how many dates, starting today, the bot offers.
func (c *Config) BotDaysAhead() int {
	if c.Booking.BotDaysAhead <= 0 {
		return 14
	}
	return c.Booking.BotDaysAhead
}

func (c *Config) SessionTimeout() time.Duration {
	if c.Booking.SessionTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Booking.SessionTimeoutMinutes) * time.Minute
}

// SubmitLimit returns the per-user create rate (events per second) and burst.
func (c *Config) SubmitLimit() (perSecond float64, burst int) {
	perMinute := c.Booking.SubmitPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	burst = c.Booking.SubmitBurst
	if burst <= 0 {
		burst = 3
	}
	return float64(perMinute) / 60, burst
}

func (c *Config) CacheTTL() time.Duration {
	if c.API.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

func (c *Config) APITimeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c *Config) ReadTimeout() time.Duration {
	if c.Server.ReadTimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.ReadTimeoutSec) * time.Second
}

func (c *Config) CatalogReloadInterval() time.Duration {
	if c.Catalog.ReloadSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Catalog.ReloadSeconds) * time.Second
}

// LogLevel parses logging.level, defaulting to info.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Logging.Level)
	if err != nil || c.Logging.Level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
