// Package config loads market-gen settings from defaults, an optional YAML
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sharmasourab93/market-gen/internal/download"
	"github.com/sharmasourab93/market-gen/internal/notify"
)

// EnvPrefix is prepended to every environment override, e.g.
// MARKETGEN_HTTP_TIMEOUT for http.timeout.
const EnvPrefix = "MARKETGEN"

// DefaultUserAgent is sent unless headers override it. The exchange rejects
// requests that do not look like a browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type HTTPConfig struct {
	Timeout           time.Duration     `mapstructure:"timeout"`
	CookieTimeout     time.Duration     `mapstructure:"cookie_timeout"`
	MaxBodyBytes      int64             `mapstructure:"max_body_bytes"`
	RequestsPerSecond float64           `mapstructure:"requests_per_second"`
	Headers           map[string]string `mapstructure:"headers"`
	Retry             RetryConfig       `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	// ChatID is one id or a comma-separated list.
	ChatID string `mapstructure:"chat_id"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.cookie_timeout", "10s")
	v.SetDefault("http.max_body_bytes", download.DefaultMaxBodyBytes)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.headers", map[string]string{
		"user-agent":      DefaultUserAgent,
		"accept-language": "en-US,en;q=0.9",
	})
	v.SetDefault("http.retry.max_attempts", 5)
	v.SetDefault("http.retry.initial_interval", "500ms")
	v.SetDefault("http.retry.multiplier", 2.0)
	v.SetDefault("http.retry.max_interval", "10s")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("store.path", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads configuration. With an empty configPath, config.yaml is looked up
// in the working directory and $HOME/.market-gen; a missing file is fine.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.market-gen")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The bot secrets keep their plain names.
	_ = v.BindEnv("telegram.token", "TELEGRAM_TOKEN", EnvPrefix+"_TELEGRAM_TOKEN")
	_ = v.BindEnv("telegram.chat_id", "CHAT_ID", EnvPrefix+"_TELEGRAM_CHAT_ID")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.HTTP.Timeout <= 0 {
		errs = append(errs, "http.timeout must be positive")
	}
	if c.HTTP.CookieTimeout <= 0 {
		errs = append(errs, "http.cookie_timeout must be positive")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, "http.max_body_bytes must be positive")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		errs = append(errs, "http.requests_per_second must be non-negative")
	}
	if c.HTTP.Retry.MaxAttempts < 1 {
		errs = append(errs, "http.retry.max_attempts must be at least 1")
	}
	if c.HTTP.Retry.InitialInterval <= 0 {
		errs = append(errs, "http.retry.initial_interval must be positive")
	}
	if c.HTTP.Retry.Multiplier < 1 {
		errs = append(errs, "http.retry.multiplier must be at least 1")
	}
	if c.HTTP.Retry.MaxInterval < c.HTTP.Retry.InitialInterval {
		errs = append(errs, "http.retry.max_interval must not be below initial_interval")
	}

	if c.Telegram.Enabled {
		if c.Telegram.Token == "" {
			errs = append(errs, "TELEGRAM_TOKEN is required when telegram is enabled")
		}
		ids, err := notify.ParseChatIDs(c.Telegram.ChatID)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("CHAT_ID: %v", err))
		case len(ids) == 0:
			errs = append(errs, "CHAT_ID is required when telegram is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("logging.level (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("logging.format (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// RetryPolicy converts the retry settings for the downloader.
func (c *Config) RetryPolicy() download.RetryPolicy {
	return download.RetryPolicy{
		MaxAttempts:     c.HTTP.Retry.MaxAttempts,
		InitialInterval: c.HTTP.Retry.InitialInterval,
		Multiplier:      c.HTTP.Retry.Multiplier,
		MaxInterval:     c.HTTP.Retry.MaxInterval,
	}
}

// TelegramSettings converts the telegram section. Call Validate first.
func (c *Config) TelegramSettings() (notify.TelegramConfig, error) {
	ids, err := notify.ParseChatIDs(c.Telegram.ChatID)
	if err != nil {
		return notify.TelegramConfig{}, err
	}
	return notify.TelegramConfig{Token: c.Telegram.Token, ChatIDs: ids}, nil
}
