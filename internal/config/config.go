// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Network   NetworkConfig   `mapstructure:"network" yaml:"network"`
	Site      SiteConfig      `mapstructure:"site" yaml:"site"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Extract   ExtractConfig   `mapstructure:"extract" yaml:"extract"`
	Seller    SellerConfig    `mapstructure:"seller" yaml:"seller"`
	Messaging MessagingConfig `mapstructure:"messaging" yaml:"messaging"`
	Fleet     FleetConfig     `mapstructure:"fleet" yaml:"fleet"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance driven over CDP.
type BrowserConfig struct {
	Headless   bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath   string         `mapstructure:"exec_path" yaml:"exec_path"`
	DisableGPU bool           `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	Args       []string       `mapstructure:"args" yaml:"args"`
	Viewport   map[string]int `mapstructure:"viewport" yaml:"viewport"`
	Stealth    StealthConfig  `mapstructure:"stealth" yaml:"stealth"`
	// LaunchTimeout bounds the time allowed for the first CDP target to attach.
	LaunchTimeout time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
}

// StealthConfig describes the persona presented to the marketplace.
type StealthConfig struct {
	Enabled   bool     `mapstructure:"enabled" yaml:"enabled"`
	UserAgent string   `mapstructure:"user_agent" yaml:"user_agent"`
	Platform  string   `mapstructure:"platform" yaml:"platform"`
	Languages []string `mapstructure:"languages" yaml:"languages"`
	Timezone  string   `mapstructure:"timezone" yaml:"timezone"`
	Locale    string   `mapstructure:"locale" yaml:"locale"`
}

// NetworkConfig tunes navigation behavior.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	// RateLimit is the sustained number of navigations per second; zero disables pacing.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// SiteConfig holds the origins of the marketplace.
type SiteConfig struct {
	Origin       string `mapstructure:"origin" yaml:"origin"`
	SellerOrigin string `mapstructure:"seller_origin" yaml:"seller_origin"`
}

// SessionConfig selects where the session snapshot lives.
type SessionConfig struct {
	// Backend is one of "file", "postgres" or "sqlite".
	Backend string `mapstructure:"backend" yaml:"backend"`
	File    string `mapstructure:"file" yaml:"file"`
	DSN     string `mapstructure:"dsn" yaml:"-"`
	// Account keys the snapshot inside shared backends. Empty means the default slot.
	Account string `mapstructure:"account" yaml:"account"`
}

// AuthConfig holds login credentials and login flow timing.
type AuthConfig struct {
	Identifier     string        `mapstructure:"identifier" yaml:"identifier"`
	Secret         string        `mapstructure:"secret" yaml:"-"`
	StepTimeout    time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout" yaml:"confirm_timeout"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	Settle         time.Duration `mapstructure:"settle" yaml:"settle"`
}

// ExtractConfig tunes the card extraction pipeline.
type ExtractConfig struct {
	ReadyTimeout time.Duration `mapstructure:"ready_timeout" yaml:"ready_timeout"`
	SearchQuery  string        `mapstructure:"search_query" yaml:"search_query"`
}

// SellerConfig tunes the seller center module.
type SellerConfig struct {
	// ActionTimeout bounds each wait and interaction of the product editor.
	ActionTimeout  time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	EditSettle     time.Duration `mapstructure:"edit_settle" yaml:"edit_settle"`
	ProductsSettle time.Duration `mapstructure:"products_settle" yaml:"products_settle"`
}

// ReplyRule maps a trigger keyword to a canned response. Declaration order is match priority.
type ReplyRule struct {
	Keyword  string `mapstructure:"keyword" yaml:"keyword"`
	Response string `mapstructure:"response" yaml:"response"`
}

// MessagingConfig tunes the inbox module and holds the auto-reply rules.
type MessagingConfig struct {
	ActionTimeout time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	SendSettle    time.Duration `mapstructure:"send_settle" yaml:"send_settle"`
	Rules         []ReplyRule   `mapstructure:"rules" yaml:"rules"`
}

// FleetAccount is one seller account driven in fleet mode.
type FleetAccount struct {
	Identifier string `mapstructure:"identifier" yaml:"identifier"`
	// SecretEnv names the environment variable holding the account password.
	SecretEnv string `mapstructure:"secret_env" yaml:"secret_env"`
}

// FleetConfig configures multi-account runs.
type FleetConfig struct {
	Concurrency int            `mapstructure:"concurrency" yaml:"concurrency"`
	Accounts    []FleetAccount `mapstructure:"accounts" yaml:"accounts"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "fastwork-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.launch_timeout", "60s")
	v.SetDefault("browser.viewport.width", 1366)
	v.SetDefault("browser.viewport.height", 768)
	v.SetDefault("browser.stealth.enabled", true)
	v.SetDefault("browser.stealth.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("browser.stealth.platform", "Win32")
	v.SetDefault("browser.stealth.languages", []string{"id-ID", "id", "en-US", "en"})
	v.SetDefault("browser.stealth.timezone", "Asia/Jakarta")
	v.SetDefault("browser.stealth.locale", "id-ID")

	// -- Network --
	v.SetDefault("network.navigation_timeout", "60s")
	v.SetDefault("network.post_load_wait", "500ms")
	v.SetDefault("network.rate_limit", 0.5)
	v.SetDefault("network.rate_burst", 2)

	// -- Site --
	v.SetDefault("site.origin", "https://fastwork.id")
	v.SetDefault("site.seller_origin", "https://seller.fastwork.id")

	// -- Session --
	v.SetDefault("session.backend", "file")
	v.SetDefault("session.file", "session.json")

	// -- Auth --
	v.SetDefault("auth.step_timeout", "10s")
	v.SetDefault("auth.confirm_timeout", "15s")
	v.SetDefault("auth.probe_timeout", "3s")
	v.SetDefault("auth.settle", "2s")

	// -- Extract --
	v.SetDefault("extract.ready_timeout", "10s")
	v.SetDefault("extract.search_query", "web")

	// -- Seller --
	v.SetDefault("seller.action_timeout", "10s")
	v.SetDefault("seller.edit_settle", "2s")
	v.SetDefault("seller.products_settle", "2s")

	// -- Messaging --
	v.SetDefault("messaging.action_timeout", "10s")
	v.SetDefault("messaging.send_settle", "1s")

	// -- Fleet --
	v.SetDefault("fleet.concurrency", 2)
}

// BindEnv enables FASTWORK_* overrides and the short FASTWORK_EMAIL /
// FASTWORK_PASSWORD credential variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("FASTWORK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("auth.identifier", "FASTWORK_AUTH_IDENTIFIER", "FASTWORK_EMAIL")
	_ = v.BindEnv("auth.secret", "FASTWORK_AUTH_SECRET", "FASTWORK_PASSWORD")
	_ = v.BindEnv("session.dsn", "FASTWORK_SESSION_DSN")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Site.Origin == "" {
		return fmt.Errorf("site.origin is required")
	}
	if !strings.HasPrefix(c.Site.Origin, "http") {
		return fmt.Errorf("site.origin must be an absolute http(s) URL, got %q", c.Site.Origin)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session configuration invalid: %w", err)
	}
	if c.Network.RateLimit < 0 {
		return fmt.Errorf("network.rate_limit must not be negative")
	}
	if c.Fleet.Concurrency <= 0 {
		return fmt.Errorf("fleet.concurrency must be a positive integer")
	}
	for i, r := range c.Messaging.Rules {
		if strings.TrimSpace(r.Keyword) == "" {
			return fmt.Errorf("messaging.rules[%d].keyword must not be empty", i)
		}
	}
	return nil
}

// Validate checks the session backend settings.
func (s *SessionConfig) Validate() error {
	switch s.Backend {
	case "file":
		if s.File == "" {
			return fmt.Errorf("session.file is required for the file backend")
		}
	case "postgres", "sqlite":
		if s.DSN == "" {
			return fmt.Errorf("session.dsn is required for the %s backend", s.Backend)
		}
	default:
		return fmt.Errorf("unknown session backend %q (supported: file, postgres, sqlite)", s.Backend)
	}
	return nil
}
