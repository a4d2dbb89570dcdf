package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// mockProvider is a test double for Provider.
type mockProvider struct {
	responses []string // returned in order; last entry is repeated if list exhausted
	err       error
	block     bool
	callCount int

	lastSystem      string
	lastUser        string
	lastMaxTokens   int
	lastTemperature float64
}

func (m *mockProvider) Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	m.lastSystem, m.lastUser, m.lastMaxTokens, m.lastTemperature = system, user, maxTokens, temperature
	m.callCount++
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", fmt.Errorf("mockProvider: no responses configured")
	}
	idx := m.callCount - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// installMock replaces NewProvider with a factory returning mp, and restores
// the original after the test.
func installMock(t *testing.T, mp *mockProvider) *ProviderConfig {
	t.Helper()
	var got ProviderConfig
	orig := NewProvider
	NewProvider = func(cfg ProviderConfig) (Provider, error) {
		got = cfg
		return mp, nil
	}
	t.Cleanup(func() { NewProvider = orig })
	return &got
}

func TestNewClient_UsesFactory(t *testing.T) {
	mp := &mockProvider{responses: []string{"ok"}}
	got := installMock(t, mp)

	c, err := NewClient(Config{Provider: "openrouter", Model: "m", MaxRetries: 2})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()
	if got.Name != "openrouter" || got.Model != "m" || got.MaxRetries != 2 {
		t.Errorf("provider config = %+v", *got)
	}
	if got.HTTPClient == nil {
		t.Error("expected shared HTTP client to be passed to the provider")
	}
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: "nope"})
	if err == nil || !strings.Contains(err.Error(), `unknown provider "nope"`) {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	for _, tc := range []struct{ provider, env string }{
		{"anthropic", "ANTHROPIC_API_KEY"},
		{"openai", "OPENAI_API_KEY"},
		{"google", "GOOGLE_API_KEY"},
		{"openrouter", "OPENROUTER_API_KEY"},
	} {
		t.Run(tc.provider, func(t *testing.T) {
			t.Setenv(tc.env, "")
			_, err := NewClient(Config{Provider: tc.provider})
			if err == nil || !strings.Contains(err.Error(), tc.env) {
				t.Fatalf("expected missing %s error, got %v", tc.env, err)
			}
			if !errors.Is(err, ErrNoAPIKey) {
				t.Errorf("error should wrap ErrNoAPIKey: %v", err)
			}
		})
	}
}

func TestClient_Generate(t *testing.T) {
	mp := &mockProvider{responses: []string{"  fixed text \n"}}
	c, err := NewClient(Config{SystemPrompt: "sys", Temperature: 0.3, MaxTokens: 512}, WithProvider(mp))
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Generate(context.Background(), "repair this")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "fixed text" {
		t.Errorf("Generate = %q, want trimmed text", out)
	}
	if mp.lastSystem != "sys" || mp.lastUser != "repair this" || mp.lastMaxTokens != 512 || mp.lastTemperature != 0.3 {
		t.Errorf("provider saw system=%q user=%q max=%d temp=%v",
			mp.lastSystem, mp.lastUser, mp.lastMaxTokens, mp.lastTemperature)
	}
}

func TestClient_CompleteDefaultsMaxTokens(t *testing.T) {
	mp := &mockProvider{responses: []string{"{}"}}
	c, _ := NewClient(Config{}, WithProvider(mp))
	if _, err := c.Complete(context.Background(), "s", "u", 0, 0); err != nil {
		t.Fatal(err)
	}
	if mp.lastMaxTokens != 4096 {
		t.Errorf("max tokens = %d, want 4096", mp.lastMaxTokens)
	}
}

func TestClient_ProviderErrorWrapped(t *testing.T) {
	boom := errors.New("upstream 500")
	c, _ := NewClient(Config{}, WithProvider(&mockProvider{err: boom}))
	_, err := c.Generate(context.Background(), "x")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	c, _ := NewClient(Config{Timeout: 20 * time.Millisecond}, WithProvider(&mockProvider{block: true}))
	_, err := c.Generate(context.Background(), "x")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestClient_RateLimit(t *testing.T) {
	mp := &mockProvider{responses: []string{"a"}}
	c, _ := NewClient(Config{RateLimit: 0.001, RateBurst: 1}, WithProvider(mp))
	if _, err := c.Generate(context.Background(), "first"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Generate(ctx, "second")
	if err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if mp.callCount != 1 {
		t.Errorf("provider called %d times, want 1", mp.callCount)
	}
}

func TestClient_Close(t *testing.T) {
	mp := &mockProvider{responses: []string{"a"}}
	c, _ := NewClient(Config{}, WithProvider(mp))
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := c.Generate(context.Background(), "x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if mp.callCount != 0 {
		t.Error("provider must not be called after Close")
	}
}

func TestClient_Model(t *testing.T) {
	c, _ := NewClient(Config{Provider: "openrouter"}, WithProvider(&mockProvider{}))
	if c.Model() != DefaultModels["openrouter"] {
		t.Errorf("Model() = %q", c.Model())
	}
	c, _ = NewClient(Config{Provider: "openai", Model: "gpt-x"}, WithProvider(&mockProvider{}))
	if c.Model() != "gpt-x" {
		t.Errorf("Model() = %q", c.Model())
	}
}

func TestOpenRouter_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
			return
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "1",
			"object":  "chat.completion",
			"model":   req.Model,
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": "echo:" + req.Messages[len(req.Messages)-1].Content}}},
		})
	}))
	defer srv.Close()

	p := newOpenRouterWithKey("test-key", ProviderConfig{Model: "m", BaseURL: srv.URL, MaxRetries: 2, HTTPClient: srv.Client()})
	p.backoff = time.Millisecond

	out, err := p.Complete(context.Background(), "sys", "hello", 100, 0)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "echo:hello" {
		t.Errorf("Complete = %q", out)
	}
	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want 2", calls.Load())
	}
}

func TestOpenRouter_DoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
	}))
	defer srv.Close()

	p := newOpenRouterWithKey("k", ProviderConfig{BaseURL: srv.URL, MaxRetries: 3})
	p.backoff = time.Millisecond
	if _, err := p.Complete(context.Background(), "", "x", 10, 0); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1", calls.Load())
	}
}
