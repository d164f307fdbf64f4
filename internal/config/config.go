// Package config loads SleuthBot's YAML configuration with environment
// overrides. Required credentials missing at startup fail the whole process;
// there is no partial operation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	General       GeneralConfig       `yaml:"general"`
	Slack         SlackConfig         `yaml:"slack"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	Bus           BusConfig           `yaml:"bus"`
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Investigation InvestigationConfig `yaml:"investigation"`
}

// UpstreamConfig points at the diagnostics gateway fronting the log query
// engine, audit store, deployment history, metrics store and resource
// directory.
type UpstreamConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
}

type GeneralConfig struct {
	LogLevel    string `yaml:"logLevel"`
	LogJSON     bool   `yaml:"logJSON"`
	MetricsAddr string `yaml:"metricsAddr"`
}

// SlackConfig holds the Slack credential set. All three values are required
// when the channel is enabled.
type SlackConfig struct {
	Enabled       bool   `yaml:"enabled"`
	SigningSecret string `yaml:"signingSecret"`
	BotToken      string `yaml:"botToken"`
	AppToken      string `yaml:"appToken"` // required for Socket Mode
	Command       string `yaml:"command"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type BusConfig struct {
	QueueSize int `yaml:"queueSize"`
}

// InvestigationConfig tunes the inspectors and the flow primitives.
type InvestigationConfig struct {
	Lookback            time.Duration `yaml:"lookback"`
	PollDelay           time.Duration `yaml:"pollDelay"`
	PollMaxAttempts     int           `yaml:"pollMaxAttempts"`
	PageDelay           time.Duration `yaml:"pageDelay"`
	MaxPages            int           `yaml:"maxPages"`
	ChunkSize           int           `yaml:"chunkSize"`
	LogResultLimit      int           `yaml:"logResultLimit"`
	LogGroupPrefix      string        `yaml:"logGroupPrefix"`
	TagKey              string        `yaml:"tagKey"`
	ResourceTypeFilters []string      `yaml:"resourceTypeFilters"`
	AuditSources        []string      `yaml:"auditSources"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		General: GeneralConfig{
			LogLevel:    "info",
			MetricsAddr: ":9090",
		},
		Slack: SlackConfig{
			Enabled: true,
			Command: "/investigate",
		},
		Bus: BusConfig{QueueSize: 100},
		Upstream: UpstreamConfig{
			Timeout: 30 * time.Second,
		},
		Investigation: InvestigationConfig{
			Lookback:            15 * time.Minute,
			PollDelay:           3 * time.Second,
			PollMaxAttempts:     10,
			PageDelay:           500 * time.Millisecond,
			MaxPages:            50,
			ChunkSize:           49,
			LogResultLimit:      20,
			LogGroupPrefix:      "/aws/lambda/",
			TagKey:              "deployment-group",
			ResourceTypeFilters: []string{"function"},
			AuditSources:        []string{"lambda.amazonaws.com"},
		},
	}
}

// Load reads path (missing file falls back to defaults), applies environment
// overrides and validates. Any validation failure aborts startup.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Defaults plus environment is a valid deployment.
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path. Credentials are expected from the
// environment, so the file is still written owner-only.
func Save(path string, cfg Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// applyEnv lets the deployment environment override credentials and basics.
func (c *Config) applyEnv() {
	setIfPresent := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setIfPresent(&c.Slack.SigningSecret, "SLACK_SIGNING_SECRET")
	setIfPresent(&c.Slack.BotToken, "SLACK_BOT_TOKEN")
	setIfPresent(&c.Slack.AppToken, "SLACK_APP_TOKEN")
	setIfPresent(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setIfPresent(&c.Upstream.BaseURL, "SLEUTHBOT_UPSTREAM_URL")
	setIfPresent(&c.General.LogLevel, "SLEUTHBOT_LOG_LEVEL")
	setIfPresent(&c.General.MetricsAddr, "SLEUTHBOT_METRICS_ADDR")
}

// Validate collects every problem at once so a broken deployment reports the
// full list instead of failing one variable at a time.
func (c Config) Validate() error {
	var errs []error

	if !c.Slack.Enabled && !c.Telegram.Enabled {
		errs = append(errs, errors.New("no channel enabled: enable slack or telegram"))
	}
	if c.Slack.Enabled {
		if c.Slack.SigningSecret == "" {
			errs = append(errs, errors.New("slack.signingSecret (or SLACK_SIGNING_SECRET) is required"))
		}
		if c.Slack.BotToken == "" {
			errs = append(errs, errors.New("slack.botToken (or SLACK_BOT_TOKEN) is required"))
		}
		if c.Slack.AppToken == "" {
			errs = append(errs, errors.New("slack.appToken (or SLACK_APP_TOKEN) is required"))
		}
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token (or TELEGRAM_BOT_TOKEN) is required"))
	}
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("upstream.baseURL (or SLEUTHBOT_UPSTREAM_URL) is required"))
	}
	if c.Investigation.Lookback <= 0 {
		errs = append(errs, errors.New("investigation.lookback must be positive"))
	}
	if c.Investigation.ChunkSize < 1 || c.Investigation.ChunkSize > 49 {
		errs = append(errs, fmt.Errorf("investigation.chunkSize %d outside 1..49", c.Investigation.ChunkSize))
	}

	return errors.Join(errs...)
}
