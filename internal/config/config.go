package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"firmament/internal/crmapi"
	"firmament/internal/model"
)

// PathEnv overrides the default config path.
const PathEnv = "BOOKER_CONFIG_PATH"

const defaultPath = "configs/config.yaml"

type Config struct {
	API struct {
		BaseURL        string  `yaml:"base_url"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		RatePerSecond  float64 `yaml:"rate_per_second"`
		Burst          int     `yaml:"burst"`
	} `yaml:"api"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Session struct {
		Store    string `yaml:"store"`
		Path     string `yaml:"path"`
		RedisKey string `yaml:"redis_key"`
	} `yaml:"session"`

	Booking struct {
		Timezone    string `yaml:"timezone"`
		Currency    string `yaml:"currency"`
		CatalogPath string `yaml:"catalog_path"`
	} `yaml:"booking"`

	Stripe struct {
		PublishableKey string `yaml:"publishable_key"`
		ReturnURL      string `yaml:"return_url"`
	} `yaml:"stripe"`

	Telegram struct {
		BotToken string  `yaml:"bot_token"`
		Debug    bool    `yaml:"debug"`
		Admins   []int64 `yaml:"admins"`
	} `yaml:"telegram"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Path returns the config path from the environment or the default.
func Path() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return defaultPath
}

// Load reads a YAML config, expanding ${ENV_VAR} placeholders.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a config document and applies defaults.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = crmapi.DefaultBaseURL
	}
	if c.Session.Store == "" {
		c.Session.Store = "file"
	}
	if c.Session.Path == "" {
		c.Session.Path = "data/session.json"
	}
	if c.Booking.Currency == "" {
		c.Booking.Currency = string(model.CurrencyCAD)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	switch c.Session.Store {
	case "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("session.store must be file or redis, got %q", c.Session.Store))
	}
	if c.Session.Store == "redis" && c.Redis.Address == "" {
		errs = append(errs, errors.New("session.store redis requires redis.address"))
	}
	if _, err := model.ParseCurrency(c.Booking.Currency); err != nil {
		errs = append(errs, fmt.Errorf("booking.currency: %w", err))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("booking.timezone: %w", err))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// Timeout returns the API timeout, 30s when unset.
func (c *Config) Timeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// CacheTTL returns the availability cache TTL, 30s when unset.
func (c *Config) CacheTTL() time.Duration {
	if c.Redis.CacheTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

// Location returns the booking zone, the local zone when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Booking.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Booking.Timezone)
}

// DefaultCurrency returns the currency preselected in the wizard.
func (c *Config) DefaultCurrency() model.Currency {
	cur, err := model.ParseCurrency(c.Booking.Currency)
	if err != nil {
		return model.CurrencyCAD
	}
	return cur
}

// LogLevel returns the parsed log level, info when invalid.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// IsAdmin reports whether a Telegram user may run admin commands.
func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.Telegram.Admins {
		if id == telegramID {
			return true
		}
	}
	return false
}
