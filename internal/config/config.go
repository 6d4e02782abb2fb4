// Package config loads crisiswatch settings from defaults, an optional YAML
// file and the environment.
//
// Precedence, highest first: environment, config file, defaults.
// Credentials are read from the environment only and never printed.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/abelbrown/crisiswatch/internal/feeds"
	"github.com/abelbrown/crisiswatch/internal/social"
)

// EnvPrefix namespaces non-credential environment overrides, e.g.
// CRISISWATCH_SERVER_ADDR.
const EnvPrefix = "CRISISWATCH"

// Config is the full application configuration.
type Config struct {
	Server      ServerConfig  `mapstructure:"server" yaml:"server"`
	Log         LogConfig     `mapstructure:"log" yaml:"log"`
	Feeds       FeedsConfig   `mapstructure:"feeds" yaml:"feeds"`
	Social      social.Config `mapstructure:"social" yaml:"social"`
	News        NewsConfig    `mapstructure:"news" yaml:"news"`
	Markets     MarketsConfig `mapstructure:"markets" yaml:"markets"`
	Models      ModelConfig   `mapstructure:"models" yaml:"models"`
	Credentials Credentials   `mapstructure:"credentials" yaml:"-"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"` // 0 builds on demand only
	EventsFile      string        `mapstructure:"events_file" yaml:"events_file"`           // JSONL event log; empty disables
	RingSize        int           `mapstructure:"ring_size" yaml:"ring_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Dir   string `mapstructure:"dir" yaml:"dir"` // empty logs to stderr
}

// FeedsConfig holds the feed list, relevance data and fetch limits.
type FeedsConfig struct {
	Sources            []feeds.FeedSource `mapstructure:"sources" yaml:"sources"`
	Keywords           []string           `mapstructure:"keywords" yaml:"keywords"`
	MarketDenyPatterns []string           `mapstructure:"market_deny_patterns" yaml:"market_deny_patterns"`
	Workers            int                `mapstructure:"workers" yaml:"workers"`
	Timeout            time.Duration      `mapstructure:"timeout" yaml:"timeout"`
	Deadline           time.Duration      `mapstructure:"deadline" yaml:"deadline"`
	SearchTimeout      time.Duration      `mapstructure:"search_timeout" yaml:"search_timeout"`
	SearchURL          string             `mapstructure:"search_url" yaml:"search_url"`
}

// NewsConfig holds aggregation limits.
type NewsConfig struct {
	Limit       int `mapstructure:"limit" yaml:"limit"`
	SocialSlots int `mapstructure:"social_slots" yaml:"social_slots"`
}

// MarketsConfig holds market endpoints and selection limits.
type MarketsConfig struct {
	GammaURL       string        `mapstructure:"gamma_url" yaml:"gamma_url"`
	ClobURL        string        `mapstructure:"clob_url" yaml:"clob_url"`
	MaxKeep        int           `mapstructure:"max_keep" yaml:"max_keep"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	HistoryTimeout time.Duration `mapstructure:"history_timeout" yaml:"history_timeout"`
	Seed           uint64        `mapstructure:"seed" yaml:"seed"` // 0 seeds from the clock
}

// ModelConfig holds reranker model settings.
type ModelConfig struct {
	SocialModel     string        `mapstructure:"social_model" yaml:"social_model"`
	SocialMaxTokens int           `mapstructure:"social_max_tokens" yaml:"social_max_tokens"`
	MarketModel     string        `mapstructure:"market_model" yaml:"market_model"`
	MarketMaxTokens int           `mapstructure:"market_max_tokens" yaml:"market_max_tokens"`
	OpenAIModel     string        `mapstructure:"openai_model" yaml:"openai_model"`
	OpenAIBaseURL   string        `mapstructure:"openai_base_url" yaml:"openai_base_url"`
	AnthropicURL    string        `mapstructure:"anthropic_url" yaml:"anthropic_url"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Credentials are secrets read from the environment.
type Credentials struct {
	XBearerToken string `mapstructure:"x_bearer_token"`
	AnthropicKey string `mapstructure:"anthropic_api_key"`
	OpenAIKey    string `mapstructure:"openai_api_key"`
}

// credentialEnv maps config keys to the environment variables they read.
var credentialEnv = map[string][]string{
	"credentials.x_bearer_token":    {"X_BEARER_TOKEN"},
	"credentials.anthropic_api_key": {"ANTHROPIC_API_KEY", "CLAUDE_API_KEY"},
	"credentials.openai_api_key":    {"OPENAI_API_KEY"},
	"models.social_model":           {"ANTHROPIC_MODEL"},
	"models.market_model":           {"ANTHROPIC_MARKET_MODEL"},
	"models.openai_model":           {"OPENAI_MODEL"},
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:     ":8080",
			CacheTTL: 55 * time.Second,
			RingSize: 500,
		},
		Log: LogConfig{
			Level: "info",
		},
		Feeds: FeedsConfig{
			Sources:            append([]feeds.FeedSource(nil), feeds.DefaultFeedSources...),
			Keywords:           append([]string(nil), feeds.DefaultKeywords...),
			MarketDenyPatterns: append([]string(nil), feeds.DefaultMarketDenyPatterns...),
			Workers:            5,
			Timeout:            6 * time.Second,
			Deadline:           20 * time.Second,
			SearchTimeout:      8 * time.Second,
			SearchURL:          social.DefaultSearchURL,
		},
		Social: social.DefaultConfig(),
		News: NewsConfig{
			Limit:       25,
			SocialSlots: 5,
		},
		Markets: MarketsConfig{
			GammaURL:       "https://gamma-api.polymarket.com",
			ClobURL:        "https://clob.polymarket.com",
			MaxKeep:        6,
			Timeout:        8 * time.Second,
			HistoryTimeout: 10 * time.Second,
		},
		Models: ModelConfig{
			SocialModel:     "claude-3-5-haiku-latest",
			SocialMaxTokens: 120,
			MarketModel:     "claude-sonnet-4-6",
			MarketMaxTokens: 80,
			OpenAIModel:     "gpt-4o-mini",
			AnthropicURL:    "https://api.anthropic.com/v1/messages",
			Timeout:         6 * time.Second,
		},
	}
}

// DefaultPath returns ~/.crisiswatch/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".crisiswatch", "config.yaml")
}

// Load builds the configuration. An empty path searches the default
// location and tolerates its absence; an explicit path must exist.
// It returns the file actually read, if any.
func Load(path string) (*Config, string, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	base, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, "", fmt.Errorf("marshal defaults: %w", err)
	}
	if err := v.ReadConfig(strings.NewReader(string(base))); err != nil {
		return nil, "", fmt.Errorf("load defaults: %w", err)
	}

	used := ""
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, "", fmt.Errorf("read config %s: %w", path, err)
		}
		used = path
	} else if def := DefaultPath(); def != "" {
		v.SetConfigFile(def)
		if err := v.MergeInConfig(); err == nil {
			used = def
		} else if !isNotFound(err) {
			return nil, "", fmt.Errorf("read config %s: %w", def, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range credentialEnv {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, "", fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("decode config: %w", err)
	}
	trimCredentials(&cfg.Credentials)
	return &cfg, used, nil
}

func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, os.ErrNotExist)
}

func trimCredentials(c *Credentials) {
	c.XBearerToken = strings.TrimSpace(c.XBearerToken)
	c.AnthropicKey = strings.TrimSpace(c.AnthropicKey)
	c.OpenAIKey = strings.TrimSpace(c.OpenAIKey)
}

// YAML renders the configuration without credentials.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// CredentialStatus reports which credentials are present, for display.
func (c *Config) CredentialStatus() map[string]bool {
	return map[string]bool{
		"X_BEARER_TOKEN":    c.Credentials.XBearerToken != "",
		"ANTHROPIC_API_KEY": c.Credentials.AnthropicKey != "",
		"OPENAI_API_KEY":    c.Credentials.OpenAIKey != "",
	}
}
