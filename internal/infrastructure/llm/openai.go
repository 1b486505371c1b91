package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"FeedbackAnalyzer/internal/config"
	"FeedbackAnalyzer/internal/oracle"
)

// placeholderToken satisfies the client when a self-hosted server needs no key.
const placeholderToken = "sk-no-key"

// OpenAIClient implements oracle.Backend on any OpenAI-compatible chat
// completions server (vLLM, Ollama, llama.cpp server, OpenAI).
type OpenAIClient struct {
	model        llms.Model
	systemPrompt string
	sampling     oracle.Sampling
}

var _ oracle.Backend = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration.
func NewOpenAIClient(cfg config.OracleConfig) (*OpenAIClient, error) {
	if cfg.Endpoint == "" || cfg.Model == "" {
		return nil, fmt.Errorf("openai backend misconfigured: endpoint and model are required")
	}

	token := cfg.APIKey
	if token == "" {
		token = placeholderToken
	}

	model, err := openai.New(
		openai.WithBaseURL(cfg.Endpoint),
		openai.WithModel(cfg.Model),
		openai.WithToken(token),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	return newOpenAIClient(model, cfg), nil
}

func newOpenAIClient(model llms.Model, cfg config.OracleConfig) *OpenAIClient {
	return &OpenAIClient{
		model:        model,
		systemPrompt: cfg.SystemPrompt,
		sampling: oracle.Sampling{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			MaxTokens:   cfg.MaxTokens,
		},
	}
}

// Name identifies the backend inside the registry.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Complete sends the prompt as a single user turn after the system prompt.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.model == nil {
		return "", fmt.Errorf("openai client is nil")
	}

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, safePrompt(c.systemPrompt)),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	opts := []llms.CallOption{llms.WithTemperature(c.sampling.Temperature)}
	if c.sampling.TopP > 0 {
		opts = append(opts, llms.WithTopP(c.sampling.TopP))
	}
	if c.sampling.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.sampling.MaxTokens))
	}

	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	return resp.Choices[0].Content, nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return oracle.DefaultSystemPrompt
	}
	return prompt
}
