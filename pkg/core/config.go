package core

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Base URLs of the futures REST API per environment.
const (
	LiveBaseURL    = "https://api-futures.kucoin.com"
	SandboxBaseURL = "https://api-sandbox-futures.kucoin.com"
)

// DefaultPingInterval is the period of the client-side heartbeat ping.
const DefaultPingInterval = 5 * time.Second

// Credentials holds API authentication credentials for private channels.
type Credentials struct {
	// APIKey is the public API key identifier.
	APIKey string `json:"api_key" validate:"required"`
	// SecretKey is the private API key used for signing requests.
	SecretKey string `json:"secret_key" validate:"required"`
	// Passphrase is the passphrase chosen when the key was created.
	Passphrase string `json:"passphrase" validate:"required"`
}

// Config contains all configuration options for a feed manager.
type Config struct {
	Environment Environment  `json:"environment" validate:"required,oneof=sandbox live"`
	BaseURL     string       `json:"base_url" validate:"required,url"`
	Credentials *Credentials `json:"credentials,omitempty" validate:"-"`

	// Timeout is the maximum duration for the token request.
	Timeout time.Duration `json:"timeout" validate:"min=1ms"`
	// HandshakeTimeout bounds the websocket opening handshake.
	HandshakeTimeout time.Duration `json:"handshake_timeout" validate:"min=1ms"`
	// PingInterval is the period of the heartbeat sent on every open connection.
	PingInterval time.Duration `json:"ping_interval" validate:"min=1ms"`

	LogLevel string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config for the given environment.
// Default values: environment base URL, 10s timeout, 10s handshake timeout,
// 5s ping interval, info logging.
func DefaultConfig(env Environment) *Config {
	return &Config{
		Environment:      env,
		BaseURL:          env.BaseURL(),
		Timeout:          10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     DefaultPingInterval,
		LogLevel:         "info",
	}
}

var validate = validator.New()

// Validate checks the configuration. Incomplete credentials are reported
// as ErrNoCredentials.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Credentials != nil {
		if err := validate.Struct(c.Credentials); err != nil {
			return errors.Join(ErrNoCredentials, err)
		}
	}
	return nil
}

// Logger derives a logger from base honouring LogLevel.
func (c *Config) Logger(base zerolog.Logger) zerolog.Logger {
	if c.LogLevel == "" {
		return base
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return base.Level(level)
}

// WithCredentials sets the API credentials and returns the config for chaining.
func (c *Config) WithCredentials(creds *Credentials) *Config {
	c.Credentials = creds
	return c
}

// WithBaseURL overrides the REST base URL and returns the config for chaining.
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithTimeout sets the token request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithPingInterval sets the heartbeat period and returns the config for chaining.
func (c *Config) WithPingInterval(interval time.Duration) *Config {
	c.PingInterval = interval
	return c
}

// WithLogLevel sets the log level and returns the config for chaining.
func (c *Config) WithLogLevel(level string) *Config {
	c.LogLevel = level
	return c
}
