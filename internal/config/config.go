package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultConfigPath   = "config.toml"
	DefaultEnvPath      = ".env"
	DefaultWebhookName  = "Amazon-URL-Shortener"
	DefaultUserAgent    = "Mozilla/5.0 (compatible; linkrelay/1.0; +https://github.com/linkrelay/linkrelay)"
	DefaultFetchTimeout = "20s"
	DefaultPriceLabel   = "価格"
	DefaultRatingLabel  = "評価"
)

// TokenEnvKeys are checked in order for the gateway token.
var TokenEnvKeys = []string{"TOKEN", "DISCORD_TOKEN"}

var ErrMissingToken = errors.New("gateway token is not set (TOKEN)")

type Config struct {
	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
	Relay   RelayConfig   `toml:"relay"`
	Preview PreviewConfig `toml:"preview"`

	// Token is never read from the config file.
	Token string `toml:"-"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	// Addr is the health/metrics listen address. Empty disables the server.
	Addr string `toml:"addr"`
}

type RelayConfig struct {
	WebhookName string `toml:"webhook_name"`
}

type PreviewConfig struct {
	UserAgent   string `toml:"user_agent"`
	Timeout     string `toml:"timeout"`
	PriceLabel  string `toml:"price_label"`
	RatingLabel string `toml:"rating_label"`
}

// FetchTimeout parses Timeout, falling back to DefaultFetchTimeout.
func (c PreviewConfig) FetchTimeout() time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(c.Timeout)); err == nil && d >= 0 {
		return d
	}
	d, _ := time.ParseDuration(DefaultFetchTimeout)
	return d
}

func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Relay: RelayConfig{
			WebhookName: DefaultWebhookName,
		},
		Preview: PreviewConfig{
			UserAgent:   DefaultUserAgent,
			Timeout:     DefaultFetchTimeout,
			PriceLabel:  DefaultPriceLabel,
			RatingLabel: DefaultRatingLabel,
		},
	}
}

// Load reads the optional TOML file at path and the gateway token from the
// environment. A .env file in the working directory is applied first without
// overriding variables that are already set.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(DefaultEnvPath); err != nil && !os.IsNotExist(err) {
		return cfg, err
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	cfg.Token = tokenFromEnv()
	cfg.fillDefaults()
	return cfg, nil
}

// Validate reports configuration the bot cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return ErrMissingToken
	}
	return nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if strings.TrimSpace(c.Relay.WebhookName) == "" {
		c.Relay.WebhookName = def.Relay.WebhookName
	}
	if strings.TrimSpace(c.Preview.UserAgent) == "" {
		c.Preview.UserAgent = def.Preview.UserAgent
	}
	if strings.TrimSpace(c.Preview.PriceLabel) == "" {
		c.Preview.PriceLabel = def.Preview.PriceLabel
	}
	if strings.TrimSpace(c.Preview.RatingLabel) == "" {
		c.Preview.RatingLabel = def.Preview.RatingLabel
	}
}

func tokenFromEnv() string {
	for _, key := range TokenEnvKeys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
