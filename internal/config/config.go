package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/rezacr588/pactoria-mvp-sub005/internal/notifier"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/poller"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/push"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/store"
)

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type PushConfig struct {
	URL                  string        `mapstructure:"url"`
	HandshakeTimeout     time.Duration `mapstructure:"handshake_timeout"`
	HeartbeatInterval    time.Duration `mapstructure:"heartbeat_interval"`
	ReconnectBase        time.Duration `mapstructure:"reconnect_base"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	MaxHeld  int `mapstructure:"max_held"`
	PageSize int `mapstructure:"page_size"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Push      PushConfig      `mapstructure:"push"`
	API       APIConfig       `mapstructure:"api"`
	Store     StoreConfig     `mapstructure:"store"`
	Poll      PollConfig      `mapstructure:"poll"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	LogLevel  string          `mapstructure:"log_level"`
}

func setDefaults() {
	viper.SetDefault("server.port", 8090)
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 10*time.Second)
	viper.SetDefault("push.handshake_timeout", 10*time.Second)
	viper.SetDefault("push.heartbeat_interval", 30*time.Second)
	viper.SetDefault("push.reconnect_base", 5*time.Second)
	viper.SetDefault("push.max_reconnect_attempts", 5)
	viper.SetDefault("api.timeout", 15*time.Second)
	viper.SetDefault("store.max_held", 10)
	viper.SetDefault("store.page_size", 10)
	viper.SetDefault("poll.interval", 30*time.Second)
	viper.SetDefault("rate_limit.requests_per_second", 20)
	viper.SetDefault("rate_limit.burst", 40)
	viper.SetDefault("log_level", "info")
}

// LoadConfig reads config.yml, falling back to defaults when no file
// is present, and applies environment overrides.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Environment overrides for deployment-specific values
	if v := os.Getenv("PUSH_URL"); v != "" {
		config.Push.URL = v
	}
	if v := os.Getenv("API_URL"); v != "" {
		config.API.BaseURL = v
	}
	if v := os.Getenv("AUTH_TOKEN"); v != "" {
		config.API.Token = v
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the fields with no sensible zero value.
func (c *Config) Validate() error {
	if c.Push.URL == "" {
		return fmt.Errorf("push.url is required")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Push.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("push.max_reconnect_attempts must be positive")
	}
	if c.Push.ReconnectBase <= 0 || c.Push.HeartbeatInterval <= 0 || c.Poll.Interval <= 0 {
		return fmt.Errorf("push and poll intervals must be positive")
	}
	if c.Store.MaxHeld <= 0 || c.Store.PageSize <= 0 {
		return fmt.Errorf("store bounds must be positive")
	}
	return nil
}

// Conversion helpers to component configs

func (c *PushConfig) ToManagerConfig() push.Config {
	return push.Config{
		URL:                  c.URL,
		HandshakeTimeout:     c.HandshakeTimeout,
		HeartbeatInterval:    c.HeartbeatInterval,
		ReconnectBase:        c.ReconnectBase,
		MaxReconnectAttempts: c.MaxReconnectAttempts,
	}
}

func (c *APIConfig) ToClientConfig() notifier.Config {
	return notifier.Config{
		BaseURL: c.BaseURL,
		Token:   c.Token,
		Timeout: c.Timeout,
	}
}

func (c *StoreConfig) ToStoreConfig() store.Config {
	return store.Config{
		MaxHeld:  c.MaxHeld,
		PageSize: c.PageSize,
	}
}

func (c *PollConfig) ToPollerConfig() poller.Config {
	return poller.Config{
		Interval: c.Interval,
	}
}
