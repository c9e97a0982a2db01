package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient speaks the chat completions API through go-openai. Ollama and
// other compatible servers use the same client with a different base URL.
type OpenAIClient struct {
	provider    Provider
	model       string
	temperature *float64
	maxTokens   int
	client      *openai.Client
}

func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return newOpenAICompatible(ProviderOpenAI, apiKey, baseURL, model, cfg), nil
}

func NewOllamaClient(cfg Config) (*OpenAIClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		// Ollama ignores the key but the SDK always sends one.
		apiKey = "ollama"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.1"
	}
	return newOpenAICompatible(ProviderOllama, apiKey, baseURL, model, cfg), nil
}

func newOpenAICompatible(provider Provider, apiKey, baseURL, model string, cfg Config) *OpenAIClient {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimRight(baseURL, "/")
	config.HTTPClient = &http.Client{Timeout: timeoutOrDefault(cfg.Timeout)}

	return &OpenAIClient{
		provider:    provider,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		client:      openai.NewClientWithConfig(config),
	}
}

func (c *OpenAIClient) Provider() Provider { return c.provider }

func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Complete(ctx context.Context, request Request) (*Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(request.Messages)+1)
	if request.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: request.System})
	}
	for _, m := range request.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: request.MaxTokens,
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.maxTokens
	}
	if t := temperatureFor(request, c.temperature); t != nil {
		req.Temperature = float32(*t)
		// The SDK omits a zero temperature, which the server reads as 1.
		if req.Temperature == 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}
	if request.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, c.mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	model := resp.Model
	if model == "" {
		model = c.model
	}
	return &Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Model:        model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func (c *OpenAIClient) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{Provider: c.provider, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &APIError{Provider: c.provider, StatusCode: reqErr.HTTPStatusCode, Body: body}
	}
	return fmt.Errorf("sending request: %w", err)
}
