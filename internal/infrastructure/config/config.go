package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all process configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Services  ServiceConfig
	Groups    GroupConfig
	Fetch     FetchConfig
	Channel   ChannelConfig
	Sandbox   SandboxConfig
	// AdapterFile is the adapter/viewer configuration file.
	AdapterFile string `envconfig:"ADAPTER_CONFIG"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	AllowedOrigins  []string      `envconfig:"CORS_ORIGINS" default:"*"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds inbound rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// ServiceConfig holds the remote service roots.
type ServiceConfig struct {
	Glympse string `envconfig:"SVC_GLYMPSE" default:"https://api.glympse.com/v2/"`
	EnRoute string `envconfig:"SVC_ENROUTE" default:"https://enroute.glympse.com/v1/"`
}

// GroupConfig holds group polling configuration.
type GroupConfig struct {
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"15s"`
	// AccountToken authenticates the registry at startup when set.
	AccountToken string `envconfig:"ACCOUNT_TOKEN"`
}

// FetchConfig holds outbound HTTP configuration.
type FetchConfig struct {
	Timeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	RateLimit float64       `envconfig:"FETCH_RPS" default:"0"`
	RetryMax  int           `envconfig:"FETCH_RETRIES" default:"0"`
}

// ChannelConfig holds host channel configuration.
type ChannelConfig struct {
	HandshakeTimeout time.Duration `envconfig:"WS_HANDSHAKE_TIMEOUT" default:"10s"`
	ConnectTimeout   time.Duration `envconfig:"WS_CONNECT_TIMEOUT" default:"0"`
}

// SandboxConfig holds custom interface script limits.
type SandboxConfig struct {
	Timeout time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"2s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Services: ServiceConfig{
			Glympse: "https://api.glympse.com/v2/",
			EnRoute: "https://enroute.glympse.com/v1/",
		},
		Groups: GroupConfig{
			PollInterval: 15 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout: 30 * time.Second,
		},
		Channel: ChannelConfig{
			HandshakeTimeout: 10 * time.Second,
		},
		Sandbox: SandboxConfig{
			Timeout: 2 * time.Second,
		},
	}
}
