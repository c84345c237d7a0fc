// Package catalog provides the static model catalog: per-model token
// limits, pricing, latency bands, and capability flags used for
// cost-aware model selection.
package catalog

import (
	"sort"
	"time"
)

// Capabilities flags what a model is trusted to do in this pipeline.
type Capabilities struct {
	RiskClassification  bool `json:"risk_classification"`
	SafeReplyGeneration bool `json:"safe_reply_generation"`
	LanguageDetection   bool `json:"language_detection"`
}

// Satisfies reports whether every capability required is present.
func (c Capabilities) Satisfies(required Capabilities) bool {
	if required.RiskClassification && !c.RiskClassification {
		return false
	}
	if required.SafeReplyGeneration && !c.SafeReplyGeneration {
		return false
	}
	if required.LanguageDetection && !c.LanguageDetection {
		return false
	}
	return true
}

// ModelSpec describes one model. Specs are immutable and loaded once at
// process start.
type ModelSpec struct {
	// ID is the model identifier used in API calls.
	ID string `json:"id"`

	// Provider is the provider tag ("anthropic", "openai", ...). It keys
	// into the base provider map owned by dispatch.
	Provider string `json:"provider"`

	// MaxInputTokens is the maximum input context size.
	MaxInputTokens int `json:"max_input_tokens"`

	// InputPrice and OutputPrice are USD per million tokens.
	InputPrice  float64 `json:"input_price"`
	OutputPrice float64 `json:"output_price"`

	// MinLatency and MaxLatency bound typical time to completion.
	MinLatency time.Duration `json:"min_latency"`
	MaxLatency time.Duration `json:"max_latency"`

	Capabilities Capabilities `json:"capabilities"`
}

// Registry is an immutable catalog of model specs, held sorted ascending
// by input price. Loaded once at start, never mutated, so reads need no
// locking.
type Registry struct {
	specs []ModelSpec
	byID  map[string]ModelSpec
}

// NewRegistry builds a registry from the given specs.
func NewRegistry(specs []ModelSpec) *Registry {
	sorted := make([]ModelSpec, len(specs))
	copy(sorted, specs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].InputPrice < sorted[j].InputPrice
	})

	byID := make(map[string]ModelSpec, len(sorted))
	for _, spec := range sorted {
		byID[spec.ID] = spec
	}

	return &Registry{specs: sorted, byID: byID}
}

// Lookup retrieves a spec by model id.
func (r *Registry) Lookup(id string) (ModelSpec, bool) {
	spec, ok := r.byID[id]
	return spec, ok
}

// List returns all specs, price-ascending.
func (r *Registry) List() []ModelSpec {
	out := make([]ModelSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

// BuiltinRegistry returns the registry of models this deployment knows.
func BuiltinRegistry() *Registry {
	return NewRegistry([]ModelSpec{
		{
			ID:             "gpt-4o-mini",
			Provider:       "openai",
			MaxInputTokens: 128000,
			InputPrice:     0.15,
			OutputPrice:    0.6,
			MinLatency:     300 * time.Millisecond,
			MaxLatency:     4 * time.Second,
			Capabilities: Capabilities{
				RiskClassification: true,
				LanguageDetection:  true,
			},
		},
		{
			ID:             "gemini-2.0-flash",
			Provider:       "gemini",
			MaxInputTokens: 1048576,
			InputPrice:     0.1,
			OutputPrice:    0.4,
			MinLatency:     300 * time.Millisecond,
			MaxLatency:     4 * time.Second,
			Capabilities: Capabilities{
				RiskClassification: true,
				LanguageDetection:  true,
			},
		},
		{
			ID:             "deepseek-v3.2",
			Provider:       "deepseek",
			MaxInputTokens: 64000,
			InputPrice:     0.27,
			OutputPrice:    1.1,
			MinLatency:     500 * time.Millisecond,
			MaxLatency:     8 * time.Second,
			Capabilities: Capabilities{
				RiskClassification: true,
			},
		},
		{
			ID:             "claude-haiku-4-20250514",
			Provider:       "anthropic",
			MaxInputTokens: 200000,
			InputPrice:     0.8,
			OutputPrice:    4.0,
			MinLatency:     400 * time.Millisecond,
			MaxLatency:     5 * time.Second,
			Capabilities: Capabilities{
				RiskClassification:  true,
				SafeReplyGeneration: true,
				LanguageDetection:   true,
			},
		},
		{
			ID:             "gpt-4o",
			Provider:       "openai",
			MaxInputTokens: 128000,
			InputPrice:     2.5,
			OutputPrice:    10.0,
			MinLatency:     600 * time.Millisecond,
			MaxLatency:     10 * time.Second,
			Capabilities: Capabilities{
				RiskClassification:  true,
				SafeReplyGeneration: true,
				LanguageDetection:   true,
			},
		},
		{
			ID:             "claude-sonnet-4-20250514",
			Provider:       "anthropic",
			MaxInputTokens: 200000,
			InputPrice:     3.0,
			OutputPrice:    15.0,
			MinLatency:     700 * time.Millisecond,
			MaxLatency:     12 * time.Second,
			Capabilities: Capabilities{
				RiskClassification:  true,
				SafeReplyGeneration: true,
				LanguageDetection:   true,
			},
		},
		{
			ID:             "claude-opus-4-5-20251101",
			Provider:       "anthropic",
			MaxInputTokens: 200000,
			InputPrice:     15.0,
			OutputPrice:    75.0,
			MinLatency:     1 * time.Second,
			MaxLatency:     20 * time.Second,
			Capabilities: Capabilities{
				RiskClassification:  true,
				SafeReplyGeneration: true,
				LanguageDetection:   true,
			},
		},
	})
}
