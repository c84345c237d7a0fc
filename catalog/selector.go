// Model selection: constraints in, ordered {primary, fallbacks} out.
// Pure function over the registry; selections are computed fresh per
// call and never cached.

package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Constraints describe one selection request. InputTokens wins over
// InputText when both are set; MaxLatency of zero means no ceiling.
type Constraints struct {
	InputText   string
	InputTokens int
	Require     Capabilities
	MaxLatency  time.Duration
}

// Selection is the ordered result of model selection.
type Selection struct {
	Primary       ModelSpec
	Fallbacks     []ModelSpec
	Justification string
}

// Models returns the primary followed by the fallbacks.
func (s Selection) Models() []ModelSpec {
	return append([]ModelSpec{s.Primary}, s.Fallbacks...)
}

// NoViableModelError reports that no catalog model survived filtering.
// Callers must surface it rather than silently degrade.
type NoViableModelError struct {
	RequiredTokens int
	Require        Capabilities
	MaxLatency     time.Duration
}

func (e *NoViableModelError) Error() string {
	var constraints []string
	constraints = append(constraints, fmt.Sprintf("input tokens >= %d", e.RequiredTokens))
	if e.Require.RiskClassification {
		constraints = append(constraints, "risk classification")
	}
	if e.Require.SafeReplyGeneration {
		constraints = append(constraints, "safe reply generation")
	}
	if e.Require.LanguageDetection {
		constraints = append(constraints, "language detection")
	}
	if e.MaxLatency > 0 {
		constraints = append(constraints, fmt.Sprintf("latency <= %s", e.MaxLatency))
	}
	return "no viable model for constraints: " + strings.Join(constraints, ", ")
}

// EstimateTokens is a deliberately conservative character-based token
// estimate: ceil(chars/3).
func EstimateTokens(text string) int {
	return (len(text) + 2) / 3
}

// Select picks the cheapest model satisfying the constraints as primary
// and the remaining survivors, price-ascending, as fallbacks.
func (r *Registry) Select(c Constraints) (Selection, error) {
	required := c.InputTokens
	if required == 0 {
		required = EstimateTokens(c.InputText)
	}

	var survivors []ModelSpec
	for _, spec := range r.specs {
		if spec.MaxInputTokens < required {
			continue
		}
		if !spec.Capabilities.Satisfies(c.Require) {
			continue
		}
		if c.MaxLatency > 0 && spec.MaxLatency > c.MaxLatency {
			continue
		}
		survivors = append(survivors, spec)
	}

	if len(survivors) == 0 {
		return Selection{}, &NoViableModelError{
			RequiredTokens: required,
			Require:        c.Require,
			MaxLatency:     c.MaxLatency,
		}
	}

	// specs are already price-ascending; survivors preserve that order.
	primary := survivors[0]
	fallbacks := survivors[1:]

	justification := fmt.Sprintf(
		"selected %s at $%.2f/1M input tokens (context %d tokens, latency up to %s) with %d fallback(s)",
		primary.ID, primary.InputPrice, primary.MaxInputTokens, primary.MaxLatency, len(fallbacks),
	)

	return Selection{
		Primary:       primary,
		Fallbacks:     fallbacks,
		Justification: justification,
	}, nil
}
