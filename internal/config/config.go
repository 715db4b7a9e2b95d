package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	History    HistoryConfig    `mapstructure:"history"`
	Store      StoreConfig      `mapstructure:"store"`
	MarketData MarketDataConfig `mapstructure:"market_data"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
}

// SchedulerConfig holds update-loop timing configuration.
type SchedulerConfig struct {
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	FeedInterval    time.Duration `mapstructure:"feed_interval"`
	RefreshCooldown time.Duration `mapstructure:"refresh_cooldown"`
}

// HistoryConfig holds capped-history sizes.
type HistoryConfig struct {
	MaxTrades        int `mapstructure:"max_trades"`
	MaxSignals       int `mapstructure:"max_signals"`
	MaxNotifications int `mapstructure:"max_notifications"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Backend       string `mapstructure:"backend"` // "sqlite", "redis", "memory"
	SQLitePath    string `mapstructure:"sqlite_path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
}

// MarketDataConfig holds market data provider configuration.
type MarketDataConfig struct {
	RESTBaseURL  string        `mapstructure:"rest_base_url"`
	WebsocketURL string        `mapstructure:"websocket_url"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
}

// OpenAIConfig holds the optional sentiment-analysis credentials.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/cryptopaper"
	}
	return filepath.Join(home, ".config", "cryptopaper")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			TickInterval:    30 * time.Second,
			FeedInterval:    3 * time.Second,
			RefreshCooldown: 5 * time.Second,
		},
		History: HistoryConfig{
			MaxTrades:        50,
			MaxSignals:       5,
			MaxNotifications: 10,
		},
		Store: StoreConfig{
			Backend:    "sqlite",
			SQLitePath: filepath.Join(DefaultConfigDir(), "cryptopaper.db"),
			RedisAddr:  "localhost:6379",
		},
		MarketData: MarketDataConfig{
			RESTBaseURL:  "https://api.upbit.com/v1",
			WebsocketURL: "wss://api.upbit.com/websocket/v1",
			HTTPTimeout:  10 * time.Second,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// A local .env may carry credentials; missing files are fine.
	_ = godotenv.Load()

	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("scheduler.tick_interval", cfg.Scheduler.TickInterval)
	v.SetDefault("scheduler.feed_interval", cfg.Scheduler.FeedInterval)
	v.SetDefault("scheduler.refresh_cooldown", cfg.Scheduler.RefreshCooldown)
	v.SetDefault("history.max_trades", cfg.History.MaxTrades)
	v.SetDefault("history.max_signals", cfg.History.MaxSignals)
	v.SetDefault("history.max_notifications", cfg.History.MaxNotifications)
	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.sqlite_path", cfg.Store.SQLitePath)
	v.SetDefault("store.redis_addr", cfg.Store.RedisAddr)
	v.SetDefault("market_data.rest_base_url", cfg.MarketData.RESTBaseURL)
	v.SetDefault("market_data.websocket_url", cfg.MarketData.WebsocketURL)
	v.SetDefault("market_data.http_timeout", cfg.MarketData.HTTPTimeout)
	v.SetDefault("openai.model", cfg.OpenAI.Model)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("CRYPTOPAPER_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("CRYPTOPAPER_REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv("CRYPTOPAPER_REDIS_PASSWORD"); v != "" {
		cfg.Store.RedisPassword = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("invalid store backend: %s (must be 'sqlite', 'redis' or 'memory')", c.Store.Backend)
	}
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	if c.Scheduler.RefreshCooldown < 0 {
		return fmt.Errorf("refresh_cooldown must be non-negative")
	}
	if c.History.MaxTrades <= 0 || c.History.MaxSignals <= 0 || c.History.MaxNotifications <= 0 {
		return fmt.Errorf("history caps must be positive")
	}
	return nil
}
