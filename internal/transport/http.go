// Package transport provides the HTTP client used to request connection tokens.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"kumexfeed/pkg/core"
)

// Config holds the settings of an HTTP client.
type Config struct {
	BaseURL string            `validate:"required,url"`
	Timeout time.Duration     `validate:"min=1ms"`
	Headers map[string]string `validate:"omitempty"`
}

// ConfigFrom derives a transport config from the feed configuration.
func ConfigFrom(cfg *core.Config) *Config {
	return &Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}
}

// Client wraps a resty HTTP client with logging. Retries are disabled:
// a failed token request is reported to the caller as is.
type Client struct {
	client *resty.Client
	logger zerolog.Logger
	mu     sync.RWMutex
	closed bool
}

// Response is the status code and raw body of an HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// NewClient creates a new HTTP client with the specified configuration.
// JSON bodies are encoded and decoded with sonic.
func NewClient(config *Config, logger zerolog.Logger) (*Client, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(config.BaseURL)
	client.SetTimeout(config.Timeout)
	client.SetRetryCount(0)
	client.AddContentTypeEncoder("application/json", func(w io.Writer, v any) error {
		data, err := sonic.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	client.AddContentTypeDecoder("application/json", func(r io.Reader, v any) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return sonic.Unmarshal(data, v)
	})

	for k, v := range config.Headers {
		client.SetHeader(k, v)
	}

	c := &Client{
		client: client,
		logger: logger,
	}

	client.AddRequestMiddleware(func(_ *resty.Client, req *resty.Request) error {
		c.logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("http request")
		return nil
	})

	return c, nil
}

// SetLogger configures the logger for the client.
func (c *Client) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// Close releases the underlying client. Further calls fail with core.ErrManagerClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// Post sends body as a JSON POST to path with the given extra headers.
func (c *Client) Post(ctx context.Context, path string, body []byte, headers map[string]string) (*Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, core.ErrManagerClosed
	}

	r := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if len(headers) > 0 {
		r.SetHeaders(headers)
	}

	resp, err := r.Post(path)
	if err != nil {
		c.logger.Error().Err(err).
			Str("method", http.MethodPost).
			Str("path", path).
			Msg("http request failed")
		return nil, fmt.Errorf("http request: %w", err)
	}

	c.logger.Debug().
		Str("method", http.MethodPost).
		Str("path", path).
		Int("status", resp.StatusCode()).
		Int("size", len(resp.Bytes())).
		Msg("http response")

	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Bytes(),
	}, nil
}

// IsSuccess returns true if the response status code indicates success (2xx).
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Unmarshal parses the response body into the provided value using sonic.
func (r *Response) Unmarshal(v any) error {
	return sonic.Unmarshal(r.Body, v)
}
