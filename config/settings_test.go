package config

import (
	"os"
	"testing"
	"time"
)

func TestNewValidProvider(t *testing.T) {
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Generation.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", settings.Generation.Provider)
	}
}

func TestNewWithAlias(t *testing.T) {
	settings, err := New("claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Generation.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic' (normalized from 'claude'), got %q", settings.Generation.Provider)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("unknown_provider")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewDefaults(t *testing.T) {
	for _, key := range []string{"POOL_INITIAL_LIMIT", "DISPATCH_ATTEMPT_TIMEOUT", "RISK_JUDGE_MODELS"} {
		original := os.Getenv(key)
		os.Unsetenv(key)
		defer os.Setenv(key, original)
	}

	settings, err := New("anthropic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Pool.InitialLimit != 10 {
		t.Errorf("pool initial limit = %d, want 10", settings.Pool.InitialLimit)
	}
	if settings.Pool.CeilingLimit != 50 {
		t.Errorf("pool ceiling = %d, want 50", settings.Pool.CeilingLimit)
	}
	if settings.Dispatch.AttemptTimeout != 10*time.Second {
		t.Errorf("attempt timeout = %v, want 10s", settings.Dispatch.AttemptTimeout)
	}
	if len(settings.Risk.JudgeModels) != 3 {
		t.Errorf("judge models = %v, want 3 defaults", settings.Risk.JudgeModels)
	}
	if settings.Risk.SerializeApproach != "user_tail_n" {
		t.Errorf("serialize approach = %q", settings.Risk.SerializeApproach)
	}
}

func TestNewJudgeModelsFromEnv(t *testing.T) {
	original := os.Getenv("RISK_JUDGE_MODELS")
	os.Setenv("RISK_JUDGE_MODELS", "gpt-4o, claude-sonnet-4-20250514 ,")
	defer os.Setenv("RISK_JUDGE_MODELS", original)

	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"gpt-4o", "claude-sonnet-4-20250514"}
	if len(settings.Risk.JudgeModels) != len(want) {
		t.Fatalf("judge models = %v, want %v", settings.Risk.JudgeModels, want)
	}
	for i, m := range want {
		if settings.Risk.JudgeModels[i] != m {
			t.Errorf("judge model %d = %q, want %q", i, settings.Risk.JudgeModels[i], m)
		}
	}
}

func TestNewDurationFromEnv(t *testing.T) {
	original := os.Getenv("DISPATCH_ATTEMPT_TIMEOUT")
	os.Setenv("DISPATCH_ATTEMPT_TIMEOUT", "30s")
	defer os.Setenv("DISPATCH_ATTEMPT_TIMEOUT", original)

	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Dispatch.AttemptTimeout != 30*time.Second {
		t.Errorf("attempt timeout = %v, want 30s", settings.Dispatch.AttemptTimeout)
	}
}

func TestNewWithInvalidEnvVar(t *testing.T) {
	original := os.Getenv("POOL_INITIAL_LIMIT")
	os.Setenv("POOL_INITIAL_LIMIT", "not-a-number")
	defer os.Setenv("POOL_INITIAL_LIMIT", original)

	if _, err := New("openai"); err == nil {
		t.Error("expected error for invalid integer env var")
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	os.Setenv("OPENAI_API_KEY", "test-key")
	defer os.Setenv("OPENAI_API_KEY", original)

	key, err := APIKeyFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
	if !HasAPIKey("openai") {
		t.Error("HasAPIKey should be true")
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	original := os.Getenv("OPENAI_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	defer os.Setenv("OPENAI_API_KEY", original)

	if _, err := APIKeyFor("openai"); err == nil {
		t.Error("expected error for missing API key")
	}
	if HasAPIKey("openai") {
		t.Error("HasAPIKey should be false")
	}
}

func TestAPIKeyForUnknownProvider(t *testing.T) {
	if _, err := APIKeyFor("unknown"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestModelFor(t *testing.T) {
	model, err := ModelFor("deepseek")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model == "" {
		t.Error("expected non-empty model")
	}

	original := os.Getenv("DEEPSEEK_MODEL")
	os.Setenv("DEEPSEEK_MODEL", "deepseek-r1")
	defer os.Setenv("DEEPSEEK_MODEL", original)

	model, err = ModelFor("deepseek")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model != "deepseek-r1" {
		t.Errorf("model = %q, want env override", model)
	}
}

func TestSupportedProviders(t *testing.T) {
	providers := SupportedProviders()
	if len(providers) != 4 {
		t.Errorf("providers = %v, want 4", providers)
	}
}
