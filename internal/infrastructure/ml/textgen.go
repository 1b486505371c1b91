package ml

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"FeedbackAnalyzer/internal/config"
	"FeedbackAnalyzer/internal/oracle"
)

// TextGenClient talks to a text-generation-inference style server that
// exposes POST /generate.
type TextGenClient struct {
	http     *resty.Client
	sampling oracle.Sampling
}

var _ oracle.Backend = (*TextGenClient)(nil)

type generateRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters generateParameters `json:"parameters"`
}

type generateParameters struct {
	DoSample       bool    `json:"do_sample"`
	Temperature    float64 `json:"temperature,omitempty"`
	TopP           float64 `json:"top_p,omitempty"`
	MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
	ReturnFullText bool    `json:"return_full_text"`
}

type generateResponse struct {
	GeneratedText string `json:"generated_text"`
}

// NewTextGenClient creates a reusable HTTP client. The executor owns call
// timeouts, so the client timeout only guards against dead connections.
func NewTextGenClient(cfg config.OracleConfig) *TextGenClient {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(10 * time.Minute)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &TextGenClient{
		http: client,
		sampling: oracle.Sampling{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			MaxTokens:   cfg.MaxTokens,
		},
	}
}

// Name identifies the backend inside the registry.
func (c *TextGenClient) Name() string {
	return "textgen"
}

// Complete posts the prompt to /generate and returns the generated text.
func (c *TextGenClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.http == nil {
		return "", fmt.Errorf("textgen client is nil")
	}

	payload := generateRequest{
		Inputs: prompt,
		Parameters: generateParameters{
			DoSample:     c.sampling.Temperature > 0,
			Temperature:  c.sampling.Temperature,
			TopP:         c.sampling.TopP,
			MaxNewTokens: c.sampling.MaxTokens,
		},
	}

	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&out).
		Post("/generate")
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("unexpected status %s: %s", resp.Status(), truncate(resp.String(), 256))
	}

	return out.GeneratedText, nil
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
