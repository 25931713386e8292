package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all client configuration.
type Config struct {
	API     APIConfig
	Socket  SocketConfig
	Logging LogConfig
	Debug   DebugConfig
}

// APIConfig holds REST collaborator settings.
type APIConfig struct {
	BaseURL    string        `envconfig:"API_BASE_URL" default:"https://localhost:8443/api"`
	Timeout    time.Duration `envconfig:"API_TIMEOUT" default:"30s"`
	MaxRetries int           `envconfig:"API_MAX_RETRIES" default:"3"`
}

// SocketConfig holds bidirectional channel settings.
type SocketConfig struct {
	URL              string        `envconfig:"SOCKET_URL" default:"wss://localhost:8443/ws/interview"`
	ReconnectDelay   time.Duration `envconfig:"SOCKET_RECONNECT_DELAY" default:"3s"`
	HandshakeTimeout time.Duration `envconfig:"SOCKET_HANDSHAKE_TIMEOUT" default:"10s"`
	WriteTimeout     time.Duration `envconfig:"SOCKET_WRITE_TIMEOUT" default:"10s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// DebugConfig holds the local debug/metrics server configuration.
type DebugConfig struct {
	Enabled bool   `envconfig:"DEBUG_SERVER_ENABLED" default:"false"`
	Addr    string `envconfig:"DEBUG_SERVER_ADDR" default:"127.0.0.1:9190"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("interview", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
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
		API: APIConfig{
			BaseURL:    "https://localhost:8443/api",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Socket: SocketConfig{
			URL:              "wss://localhost:8443/ws/interview",
			ReconnectDelay:   3 * time.Second,
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     10 * time.Second,
		},
		Logging: LogConfig{
			Level: "info",
		},
		Debug: DebugConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9190",
		},
	}
}
