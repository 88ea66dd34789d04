package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/matsen/citethreads/internal/logger"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI completes prompts through any OpenAI-compatible chat endpoint
// (OpenAI, SiliconFlow, DeepSeek, vLLM, ...).
type OpenAI struct {
	client  *openai.Client
	model   string
	baseURL string
	log     *logger.Logger
}

// OpenAIOption configures an OpenAI completer.
type OpenAIOption func(*OpenAI)

// WithOpenAIBaseURL points the client at an OpenAI-compatible endpoint.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(o *OpenAI) {
		o.baseURL = url
	}
}

// WithOpenAIModel sets the chat model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(o *OpenAI) {
		if model != "" {
			o.model = model
		}
	}
}

// WithOpenAILogger sets the logger.
func WithOpenAILogger(l *logger.Logger) OpenAIOption {
	return func(o *OpenAI) {
		o.log = l
	}
}

// NewOpenAI creates a completer authenticated with apiKey.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	o := &OpenAI{model: DefaultOpenAIModel}
	for _, opt := range opts {
		opt(o)
	}
	o.log = logger.OrNop(o.log).With("component", "llm", "model", o.model)

	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(o.baseURL, "/")
	}
	o.client = openai.NewClientWithConfig(cfg)
	return o
}

// Complete sends prompt as a single user message.
func (o *OpenAI) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			o.log.Warn("chat completion failed", "status", apiErr.HTTPStatusCode, "error", apiErr.Message)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	o.log.Debug("chat completion", "finish_reason", resp.Choices[0].FinishReason)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
