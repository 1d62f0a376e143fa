package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"fargoat/internal/feed"
	"fargoat/internal/quest"
)

// Config holds all configuration for the service
type Config struct {
	Env      string         `env:"ENV" envDefault:"development"`
	Server   ServerConfig
	Database DatabaseConfig `envPrefix:"DB_"`
	Feed     FeedConfig     `envPrefix:"FEED_"`
	Quest    QuestConfig    `envPrefix:"QUEST_"`
	Points   PointsConfig   `envPrefix:"POINTS_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int `env:"SERVER_PORT" envDefault:"8080"`
}

// DatabaseConfig holds PostgreSQL configuration for the profile directory
type DatabaseConfig struct {
	Enabled       bool   `env:"ENABLED" envDefault:"false"`
	Host          string `env:"HOST" envDefault:"localhost"`
	Port          int    `env:"PORT" envDefault:"5432"`
	User          string `env:"USER" envDefault:"postgres"`
	Password      string `env:"PASSWORD" envDefault:"postgres"`
	DBName        string `env:"NAME" envDefault:"fargoat"`
	SSLMode       string `env:"SSL_MODE" envDefault:"disable"`
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"internal/database/migrations/001_schema.sql"`
}

// FeedConfig holds chart polling and synthetic generator configuration
type FeedConfig struct {
	// ChartEndpoint is the chart-data collaborator. Empty polls the
	// synthetic chart generator instead.
	ChartEndpoint  string        `env:"CHART_ENDPOINT"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	RandomChannels []string      `env:"RANDOM_CHANNELS" envSeparator:","`
	RandomInterval time.Duration `env:"RANDOM_INTERVAL" envDefault:"2s"`
}

// QuestConfig holds wizard session and submission configuration
type QuestConfig struct {
	SubmitEndpoint string        `env:"SUBMIT_ENDPOINT"`
	SubmitTimeout  time.Duration `env:"SUBMIT_TIMEOUT" envDefault:"30s"`
	MaxSessions    int           `env:"MAX_SESSIONS" envDefault:"1024"`
	Navigation     string        `env:"NAVIGATION" envDefault:"any"`
}

// PointsConfig holds the founder seeded into the points ledger at startup
type PointsConfig struct {
	DefaultFounder    string `env:"DEFAULT_FOUNDER" envDefault:"founder1"`
	DefaultAllocation uint64 `env:"DEFAULT_ALLOCATION" envDefault:"1000"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Enabled && c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Feed.PollInterval <= 0 {
		return fmt.Errorf("invalid chart poll interval: %s", c.Feed.PollInterval)
	}
	if c.Feed.ChartEndpoint != "" {
		if err := validateURL(c.Feed.ChartEndpoint); err != nil {
			return fmt.Errorf("invalid chart endpoint: %w", err)
		}
	}
	if len(c.Feed.RandomChannels) > 0 && c.Feed.RandomInterval <= 0 {
		return fmt.Errorf("invalid random data interval: %s", c.Feed.RandomInterval)
	}
	known := make(map[string]bool)
	for _, name := range feed.SyntheticGenerators() {
		known[name] = true
	}
	for _, ch := range c.Feed.RandomChannels {
		if !known[ch] {
			return fmt.Errorf("unknown random data channel %q", ch)
		}
	}

	if c.Quest.SubmitEndpoint != "" {
		if err := validateURL(c.Quest.SubmitEndpoint); err != nil {
			return fmt.Errorf("invalid quest submit endpoint: %w", err)
		}
	}
	if c.Quest.SubmitTimeout <= 0 {
		return fmt.Errorf("invalid quest submit timeout: %s", c.Quest.SubmitTimeout)
	}
	if c.Quest.MaxSessions <= 0 {
		return fmt.Errorf("invalid max sessions: %d", c.Quest.MaxSessions)
	}
	if _, err := quest.ParseNavigationPolicy(c.Quest.Navigation); err != nil {
		return err
	}

	if strings.TrimSpace(c.Points.DefaultFounder) == "" {
		return fmt.Errorf("default founder name is required")
	}

	return nil
}

// IsProduction reports whether ENV selects the production logger
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
