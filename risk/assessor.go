// Single-call risk assessment: serialize the conversation, stream one
// classification through the provider stack, and parse the verdict.
//
// Information Hiding:
// - Prompt assembly hidden
// - Stream collection and verdict parsing hidden
// - Fail-safe defaulting on malformed output hidden

package risk

import (
	"context"
	"log/slog"

	"github.com/richinex/cite/llm"
	"github.com/richinex/cite/model"
)

// classificationTemperature keeps judges near-deterministic.
const classificationTemperature = 0.3

// AssessmentErrorCategory tags fail-safe results produced when a judge's
// output could not be parsed.
const AssessmentErrorCategory = "assessment_error"

// Assessor issues exactly one classification call per invocation.
type Assessor struct {
	name       string
	provider   llm.Provider
	serializer Serializer
	logger     *slog.Logger
}

// NewAssessor creates an assessor streaming through the given provider,
// typically a dispatch.FallbackProvider over classification-capable
// models.
func NewAssessor(name string, provider llm.Provider, serializer Serializer) *Assessor {
	return &Assessor{
		name:       name,
		provider:   provider,
		serializer: serializer,
		logger:     slog.Default(),
	}
}

// WithLogger overrides the logger.
func (a *Assessor) WithLogger(logger *slog.Logger) *Assessor {
	a.logger = logger
	return a
}

// Name returns the judge name.
func (a *Assessor) Name() string {
	return a.name
}

// Assess classifies the conversation. Transport failure propagates as an
// error; malformed judge output does not: it yields the fail-safe medium
// verdict, because a classification failure must never silently resolve
// to "no risk".
func (a *Assessor) Assess(ctx context.Context, messages []model.Message) (model.RiskLevelResult, error) {
	opts := llm.Options{
		Messages:     []model.Message{model.UserMessage(a.serializer.Serialize(messages))},
		SystemPrompt: classifierSystemPrompt,
		Temperature:  classificationTemperature,
	}

	raw, err := llm.Collect(ctx, a.provider, opts)
	if err != nil {
		return model.RiskLevelResult{}, err
	}

	result, err := parseVerdict(raw)
	if err != nil {
		a.logger.Warn("classifier output unparseable, failing safe to medium",
			"judge", a.name,
			"error", err)
		return FailSafeResult(), nil
	}
	return result, nil
}

// FailSafeResult is the synthetic verdict used when classification
// output cannot be trusted.
func FailSafeResult() model.RiskLevelResult {
	return model.RiskLevelResult{
		Level:      model.RiskMedium,
		Confidence: 0.0,
		Reflection: "classifier output could not be parsed; defaulting to medium",
		Types: []model.RiskTypeResult{
			{Type: AssessmentErrorCategory, Confidence: 1.0},
		},
		Agreement: 1.0,
	}
}
