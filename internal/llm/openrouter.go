package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenRouterBaseURL is the default OpenAI-compatible endpoint for openrouter.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// openRouterProvider talks to OpenRouter through its OpenAI-compatible API.
// go-openai has no retry policy of its own, so rate-limit and server errors
// are retried here with exponential backoff.
type openRouterProvider struct {
	client     *goopenai.Client
	model      string
	maxRetries int
	backoff    time.Duration
}

func newOpenRouterProvider(cfg ProviderConfig) (Provider, error) {
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENROUTER_API_KEY environment variable not set", ErrNoAPIKey)
	}
	return newOpenRouterWithKey(apiKey, cfg), nil
}

func newOpenRouterWithKey(apiKey string, cfg ProviderConfig) *openRouterProvider {
	oc := goopenai.DefaultConfig(apiKey)
	oc.BaseURL = OpenRouterBaseURL
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	return &openRouterProvider{
		client:     goopenai.NewClientWithConfig(oc),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Second,
	}
}

func (p *openRouterProvider) Complete(
	ctx context.Context,
	systemPrompt, userPrompt string,
	maxTokens int,
	temperature float64,
) (string, error) {
	var msgs []goopenai.ChatCompletionMessage
	if systemPrompt != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: userPrompt})
	req := goopenai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			wait := p.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("openrouter: %w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(wait):
			}
		}
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			if retryable(err) {
				continue
			}
			return "", fmt.Errorf("openrouter: chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("openrouter: response contained no choices")
		}
		content := resp.Choices[0].Message.Content
		if content == "" {
			return "", fmt.Errorf("openrouter: response contained no content")
		}
		return content, nil
	}
	return "", fmt.Errorf("openrouter: retries exhausted: %w", lastErr)
}

// retryable reports whether err is a rate limit or server-side failure.
func retryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}
