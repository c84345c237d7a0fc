// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds all application configuration.
type Settings struct {
	Generation GenerationConfig
	Risk       RiskConfig
	Pool       PoolConfig
	Dispatch   DispatchConfig
}

// GenerationConfig holds response generation configuration.
type GenerationConfig struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
	Preference  string
}

// RiskConfig holds risk classification configuration.
type RiskConfig struct {
	JudgeModels       []string
	SerializeApproach string
	SerializeTailN    int
}

// PoolConfig holds adaptive concurrency pool configuration.
type PoolConfig struct {
	InitialLimit     int
	FloorLimit       int
	CeilingLimit     int
	SuccessThreshold int
	DecreaseCooldown time.Duration
	IdleReset        time.Duration
}

// DispatchConfig holds fallback dispatch configuration.
type DispatchConfig struct {
	AttemptTimeout time.Duration
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":    {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	"deepseek":  {"DEEPSEEK_MODEL", "deepseek-v3.2", "DEEPSEEK_API_KEY"},
	"gemini":    {"GEMINI_MODEL", "gemini-2.0-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// New creates settings for the specified generation provider, loading
// values from environment variables. Returns an error if the provider
// is unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvInt("LLM_MAX_TOKENS", 1024)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}

	tailN, err := getEnvInt("RISK_SERIALIZE_TAIL_N", 3)
	if err != nil {
		return Settings{}, err
	}

	initialLimit, err := getEnvInt("POOL_INITIAL_LIMIT", 10)
	if err != nil {
		return Settings{}, err
	}

	floorLimit, err := getEnvInt("POOL_FLOOR_LIMIT", 2)
	if err != nil {
		return Settings{}, err
	}

	ceilingLimit, err := getEnvInt("POOL_CEILING_LIMIT", 50)
	if err != nil {
		return Settings{}, err
	}

	successThreshold, err := getEnvInt("POOL_SUCCESS_THRESHOLD", 10)
	if err != nil {
		return Settings{}, err
	}

	decreaseCooldown, err := getEnvDuration("POOL_DECREASE_COOLDOWN", 5*time.Second)
	if err != nil {
		return Settings{}, err
	}

	idleReset, err := getEnvDuration("POOL_IDLE_RESET", 5*time.Minute)
	if err != nil {
		return Settings{}, err
	}

	attemptTimeout, err := getEnvDuration("DISPATCH_ATTEMPT_TIMEOUT", 10*time.Second)
	if err != nil {
		return Settings{}, err
	}

	// Get model from environment or use default
	model := os.Getenv(info.modelEnv)
	if model == "" {
		model = info.defaultModel
	}

	return Settings{
		Generation: GenerationConfig{
			Provider:    provider,
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			Preference:  getEnvString("ROUTING_PREFERENCE", "auto"),
		},
		Risk: RiskConfig{
			JudgeModels:       getEnvList("RISK_JUDGE_MODELS", []string{"gpt-4o-mini", "claude-haiku-4-20250514", "gemini-2.0-flash"}),
			SerializeApproach: getEnvString("RISK_SERIALIZE_APPROACH", "user_tail_n"),
			SerializeTailN:    tailN,
		},
		Pool: PoolConfig{
			InitialLimit:     initialLimit,
			FloorLimit:       floorLimit,
			CeilingLimit:     ceilingLimit,
			SuccessThreshold: successThreshold,
			DecreaseCooldown: decreaseCooldown,
			IdleReset:        idleReset,
		},
		Dispatch: DispatchConfig{
			AttemptTimeout: attemptTimeout,
		},
	}, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// HasAPIKey reports whether a provider's API key is present in the
// environment.
func HasAPIKey(provider string) bool {
	key, err := APIKeyFor(provider)
	return err == nil && key != ""
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultVal
	}
	return result
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return d, nil
}
