package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"FeedbackAnalyzer/internal/ports"
)

// DefaultSystemPrompt precedes every prompt sent to a chat backend.
const DefaultSystemPrompt = "You are a helpful assistant."

const defaultEncoding = "cl100k_base"

var specialTokenExpr = regexp.MustCompile(`<\|[^|<>]*\|>|</?s>`)

// Sampling holds decoding parameters shared by all backends.
type Sampling struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Clean strips chat control tokens and surrounding whitespace from model output.
func Clean(output string) string {
	return strings.TrimSpace(specialTokenExpr.ReplaceAllString(output, ""))
}

type tokenCodec interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// Guarded caps prompt length and cleans the output of an inner Completer.
type Guarded struct {
	inner     ports.Completer
	maxTokens int
	logger    *slog.Logger

	once  sync.Once
	codec tokenCodec
}

var _ ports.Completer = (*Guarded)(nil)

// Guard wraps inner; maxTokens <= 0 disables truncation.
func Guard(inner ports.Completer, maxTokens int, logger *slog.Logger) *Guarded {
	return &Guarded{inner: inner, maxTokens: maxTokens, logger: logger}
}

// Complete truncates prompt to the token budget, calls the backend and cleans its reply.
func (g *Guarded) Complete(ctx context.Context, prompt string) (string, error) {
	if g.inner == nil {
		return "", fmt.Errorf("oracle backend is not configured")
	}

	out, err := g.inner.Complete(ctx, g.truncate(prompt))
	if err != nil {
		return "", err
	}
	return Clean(out), nil
}

func (g *Guarded) truncate(prompt string) string {
	if g.maxTokens <= 0 {
		return prompt
	}

	g.once.Do(func() {
		if g.codec != nil {
			return
		}
		enc, err := tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			if g.logger != nil {
				g.logger.Warn("token encoding unavailable, prompts are not truncated", "encoding", defaultEncoding, "error", err)
			}
			return
		}
		g.codec = enc
	})
	if g.codec == nil {
		return prompt
	}

	tokens := g.codec.Encode(prompt, nil, nil)
	if len(tokens) <= g.maxTokens {
		return prompt
	}
	return g.codec.Decode(tokens[:g.maxTokens])
}
