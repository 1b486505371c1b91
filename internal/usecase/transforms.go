package usecase

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"FeedbackAnalyzer/internal/domain"
)

const (
	maxKeywords      = 10
	minKeywordLength = 3

	summaryFallback = "Summary generation failed"
)

var (
	positiveMarkers = []string{"positive", "good", "excellent", "great"}
	negativeMarkers = []string{"negative", "bad", "poor", "terrible"}
)

// isEnglish treats every answer as English unless it contains the word "no".
func isEnglish(response string) bool {
	words := strings.FieldsFunc(strings.ToLower(response), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if w == "no" {
			return false
		}
	}
	return true
}

// parseSentiment maps free-form model output onto the fixed sentiment set.
func parseSentiment(response string) domain.Sentiment {
	normalized := strings.ToLower(strings.TrimSpace(response))
	if containsAny(normalized, positiveMarkers) {
		return domain.SentimentPositive
	}
	if containsAny(normalized, negativeMarkers) {
		return domain.SentimentNegative
	}
	return domain.SentimentNeutral
}

// parseKeywords splits a comma-separated answer into at most ten unique,
// lowercase keywords longer than two characters, in first-seen order.
func parseKeywords(response string) []string {
	keywords := make([]string, 0, maxKeywords)
	seen := map[string]struct{}{}

	for _, candidate := range strings.Split(response, ",") {
		kw := strings.ToLower(strings.TrimSpace(candidate))
		if utf8.RuneCountInString(kw) < minKeywordLength {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
		if len(keywords) == maxKeywords {
			break
		}
	}

	return keywords
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// result carries a transform outcome until the pipeline applies its fallback.
type result[T any] struct {
	value T
	err   error
}

func (r result[T]) or(fallback T) (T, bool) {
	if r.err != nil {
		return fallback, false
	}
	return r.value, true
}
