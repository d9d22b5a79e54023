// Package config provides YAML-based configuration loading for ATILA.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level ATILA configuration, loaded from atila.yaml.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Recalc    RecalcConfig    `yaml:"recalc"`
	Normalize NormalizeConfig `yaml:"normalize"`
	GitHub    GitHubConfig    `yaml:"github"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// DatabaseConfig selects and configures the SQL backend.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`   // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ServerConfig holds dashboard/API listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // auto, console or json
}

// RecalcConfig controls background recomputation. Scores age continuously,
// so ranks are refreshed on a schedule in addition to every mutation.
type RecalcConfig struct {
	Schedule    string `yaml:"schedule"`    // 5-field cron expression, or "off"
	Concurrency int    `yaml:"concurrency"` // projects recomputed in parallel
	OnStartup   *bool  `yaml:"on_startup"`
}

// NormalizeConfig points at the platform field map.
type NormalizeConfig struct {
	PlatformMap string `yaml:"platform_map"` // empty uses the built-in map
}

// GitHubConfig holds credentials for issue import.
type GitHubConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"` // GitHub Enterprise API root, empty for github.com
}

// NotifyConfig configures worklist digests.
type NotifyConfig struct {
	SlackWebhook   string `yaml:"slack_webhook"`
	DiscordWebhook string `yaml:"discord_webhook"`
	TopN           int    `yaml:"top_n"`
	Schedule       string `yaml:"schedule"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// RecalcOnStartup reports whether a full recompute runs when the server starts.
func (c *Config) RecalcOnStartup() bool {
	return c.Recalc.OnStartup == nil || *c.Recalc.OnStartup
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "atila.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "atila"
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "auto"
	}
	if c.Recalc.Schedule == "" {
		c.Recalc.Schedule = "*/15 * * * *"
	}
	if c.Recalc.Concurrency == 0 {
		c.Recalc.Concurrency = 4
	}
	if c.Notify.TopN == 0 {
		c.Notify.TopN = 5
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of sqlite, mysql", c.Database.Driver))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "auto", "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not one of auto, console, json", c.Log.Format))
	}
	if c.Recalc.Schedule != "off" {
		if _, err := CronParser.Parse(c.Recalc.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("recalc.schedule: %v", err))
		}
	}
	if c.Recalc.Concurrency < 0 {
		errs = append(errs, "recalc.concurrency must be positive")
	}
	if c.Notify.Schedule != "" {
		if _, err := CronParser.Parse(c.Notify.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("notify.schedule: %v", err))
		}
	}
	if c.Notify.TopN < 0 {
		errs = append(errs, "notify.top_n must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// CronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
