// Package llm adapts the provider SDKs to one chat-completion interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

var ErrMissingAPIKey = errors.New("api key is required")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one completion call. A nil Temperature falls back to the client
// default and then to the provider default; zero is a valid setting.
type Request struct {
	System      string
	Messages    []Message
	Temperature *float64
	MaxTokens   int
	// JSON asks the backend to constrain output to a JSON object where it
	// supports that.
	JSON        bool
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

type Response struct {
	Content      string
	FinishReason string
	Model        string
	Usage        Usage
}

type Client interface {
	Complete(ctx context.Context, request Request) (*Response, error)
	Provider() Provider
	Model() string
}

type Config struct {
	Provider    Provider
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64
	MaxTokens   int
	Timeout     time.Duration
}

// APIError is returned for any non-2xx backend response, whichever SDK
// produced it.
type APIError struct {
	Provider   Provider
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, body)
}

func NewClient(cfg Config) (Client, error) {
	switch Provider(strings.ToLower(string(cfg.Provider))) {
	case ProviderOpenAI:
		return NewOpenAIClient(cfg)
	case ProviderOllama:
		return NewOllamaClient(cfg)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// UserPrompt is a convenience for single-turn requests.
func UserPrompt(system, prompt string) Request {
	return Request{
		System:   system,
		Messages: []Message{{Role: "user", Content: prompt}},
	}
}

func Float(v float64) *float64 {
	return &v
}

func temperatureFor(request Request, fallback *float64) *float64 {
	if request.Temperature != nil {
		return request.Temperature
	}
	return fallback
}

func timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 120 * time.Second
	}
	return timeout
}
