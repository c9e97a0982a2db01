package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const jsonOnlyInstruction = "Respond with a single JSON object and nothing else."

// AnthropicClient speaks the Messages API through the official SDK. The API
// has no JSON response mode, so JSON requests get an extra system instruction.
type AnthropicClient struct {
	model       string
	temperature *float64
	maxTokens   int
	client      anthropic.Client
}

func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}
	model := cfg.Model
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeoutOrDefault(cfg.Timeout)}),
		// Failed map calls are handled by the search failure policy.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		// The SDK appends /v1/messages itself.
		base := strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/v1")
		opts = append(opts, option.WithBaseURL(base+"/"))
	}

	return &AnthropicClient{
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		client:      anthropic.NewClient(opts...),
	}, nil
}

func (c *AnthropicClient) Provider() Provider { return ProviderAnthropic }

func (c *AnthropicClient) Model() string { return c.model }

func (c *AnthropicClient) Complete(ctx context.Context, request Request) (*Response, error) {
	messages := make([]anthropic.MessageParam, 0, len(request.Messages))
	for _, m := range request.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(block))
	}

	maxTokens := request.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}

	system := request.System
	if request.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonOnlyInstruction)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if t := temperatureFor(request, c.temperature); t != nil {
		params.Temperature = anthropic.Float(*t)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			body := apiErr.RawJSON()
			if body == "" {
				body = apiErr.Error()
			}
			return nil, &APIError{Provider: ProviderAnthropic, StatusCode: apiErr.StatusCode, Body: body}
		}
		return nil, fmt.Errorf("sending request: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no text content in response")
	}

	model := string(msg.Model)
	if model == "" {
		model = c.model
	}
	return &Response{
		Content:      text.String(),
		FinishReason: string(msg.StopReason),
		Model:        model,
		Usage: Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}
