// Package llm handles LLM provider communication: provider dispatch, a
// rate-limited client with per-call timeouts, and helpers for decoding the
// JSON that models return.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("llm: client closed")

// ErrNoAPIKey is returned when a provider's API key variable is unset.
var ErrNoAPIKey = errors.New("llm: API key not set")

// Provider is the interface for LLM backends.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// ProviderConfig selects and configures a backend.
type ProviderConfig struct {
	Name       string
	Model      string
	BaseURL    string
	MaxRetries int
	HTTPClient *http.Client
}

// NewProvider is the factory for creating LLM providers. It is a package-level
// variable so tests can replace it with a mock without modifying the call site.
// Tests must restore the original value; use t.Cleanup to do so safely.
var NewProvider func(cfg ProviderConfig) (Provider, error) = defaultNewProvider

// DefaultModels maps provider names to the model used when none is given.
var DefaultModels = map[string]string{
	"anthropic":  "claude-sonnet-4-5",
	"openai":     "gpt-4o-mini",
	"google":     "gemini-2.0-flash",
	"openrouter": "tngtech/deepseek-r1t2-chimera:free",
}

// defaultNewProvider dispatches to the appropriate provider implementation.
func defaultNewProvider(cfg ProviderConfig) (Provider, error) {
	name := strings.ToLower(cfg.Name)
	if cfg.Model == "" {
		cfg.Model = DefaultModels[name]
	}
	switch name {
	case "anthropic", "":
		return newAnthropicProvider(cfg)
	case "openai":
		return newOpenAIProvider(cfg)
	case "google":
		return newGoogleProvider(cfg)
	case "openrouter":
		return newOpenRouterProvider(cfg)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Name)
	}
}

// Config configures a Client.
type Config struct {
	Provider     string
	Model        string
	BaseURL      string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
	MaxRetries   int
	// RateLimit is the sustained request rate per second; zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Client wraps a Provider with rate limiting, per-call timeouts and an
// explicit lifetime. It satisfies Provider and offers Generate for
// single-prompt repair requests using the configured system prompt.
type Client struct {
	cfg      Config
	provider Provider
	http     *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
	closed   atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithProvider makes the client use p instead of building one from config.
func WithProvider(p Provider) Option {
	return func(c *Client) { c.provider = p }
}

// WithLogger sets the client's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient builds a client and its provider.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: zap.NewNop(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("llm")
	if c.provider == nil {
		p, err := NewProvider(ProviderConfig{
			Name:       cfg.Provider,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			MaxRetries: cfg.MaxRetries,
			HTTPClient: c.http,
		})
		if err != nil {
			return nil, fmt.Errorf("llm: create provider: %w", err)
		}
		c.provider = p
	}
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	if c.cfg.Model != "" {
		return c.cfg.Model
	}
	return DefaultModels[strings.ToLower(c.cfg.Provider)]
}

// Complete sends one request through the provider after waiting for the
// rate limiter. The configured timeout bounds the call, limiter wait included.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	if c.closed.Load() {
		return "", ErrClosed
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm: rate limit: %w", err)
		}
	}
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	start := time.Now()
	out, err := c.provider.Complete(ctx, systemPrompt, userPrompt, maxTokens, temperature)
	if err != nil {
		c.logger.Warn("completion failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", fmt.Errorf("llm: complete: %w", err)
	}
	c.logger.Debug("completion",
		zap.Int("prompt_len", len(userPrompt)),
		zap.Int("response_len", len(out)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// Generate completes prompt with the configured system prompt and temperature.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := c.Complete(ctx, c.cfg.SystemPrompt, prompt, c.cfg.MaxTokens, c.cfg.Temperature)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Close releases idle connections. Later calls fail with ErrClosed. Close
// is idempotent.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.http.CloseIdleConnections()
	return nil
}
