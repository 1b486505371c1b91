package app

import (
	"context"
	"strings"
	"testing"

	"FeedbackAnalyzer/internal/config"
)

func TestOracleRegistryResolvesBackends(t *testing.T) {
	t.Parallel()

	cfg := config.OracleConfig{
		Endpoint:  "http://localhost:8080/v1",
		Model:     "Qwen/Qwen2.5-3B-Instruct",
		MaxTokens: 512,
	}
	registry := newOracleRegistry(cfg)

	for _, name := range []string{"openai", "textgen"} {
		backend, err := registry.Resolve(name)
		if err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", name, err)
		}
		if backend.Name() != name {
			t.Fatalf("expected backend %q, got %q", name, backend.Name())
		}
	}

	if _, err := registry.Resolve("llamacpp"); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestOracleRegistrySkipsMisconfiguredOpenAI(t *testing.T) {
	t.Parallel()

	registry := newOracleRegistry(config.OracleConfig{Endpoint: "http://localhost:8080"})

	if _, err := registry.Resolve("openai"); err == nil {
		t.Fatalf("openai backend without a model should not be registered")
	}
	if _, err := registry.Resolve("textgen"); err != nil {
		t.Fatalf("textgen should still be available: %v", err)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	err := New(cfg, nil).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("expected config validation error, got %v", err)
	}
}
