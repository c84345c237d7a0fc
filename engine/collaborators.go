// Collaborator contracts consumed by the engine. These sub-modules are
// external to this core; only their signatures are load-bearing here.
// No-op implementations let the engine run with only the core wired.

package engine

import (
	"context"

	"github.com/richinex/cite/model"
)

// ContextManager prepares and trims the conversation before assessment.
type ContextManager interface {
	// PrepareContext may emit events and returns the trimmed working
	// copy of the conversation.
	PrepareContext(ctx context.Context, messages []model.Message, events model.EventSink) ([]model.Message, error)
}

// UpskillResult recommends a stronger profile than the router chose.
type UpskillResult struct {
	RecommendedProfile model.Profile
	Reason             string
}

// Upskilling reviews a routing decision against the assessment and may
// recommend a profile upgrade. A nil result means no change.
type Upskilling interface {
	ShouldUpskill(ctx context.Context, profile model.Profile, assessment model.RiskAssessment) (*UpskillResult, error)
}

// SafetyMessaging wraps the generation stream, appending or adjusting
// safety content based on the assessment.
type SafetyMessaging interface {
	WrapStream(ctx context.Context, in <-chan model.StreamChunk, assessment model.RiskAssessment, events model.EventSink) <-chan model.StreamChunk
}

// ThinkingProvider optionally contributes reasoning chunks ahead of
// generation.
type ThinkingProvider interface {
	Think(ctx context.Context, messages []model.Message, chunks chan<- model.StreamChunk) error
}

// noopContextManager passes the conversation through untouched.
type noopContextManager struct{}

func (noopContextManager) PrepareContext(_ context.Context, messages []model.Message, _ model.EventSink) ([]model.Message, error) {
	return messages, nil
}

// noopUpskilling never recommends an upgrade.
type noopUpskilling struct{}

func (noopUpskilling) ShouldUpskill(context.Context, model.Profile, model.RiskAssessment) (*UpskillResult, error) {
	return nil, nil
}

// noopSafetyMessaging forwards the stream unchanged.
type noopSafetyMessaging struct{}

func (noopSafetyMessaging) WrapStream(_ context.Context, in <-chan model.StreamChunk, _ model.RiskAssessment, _ model.EventSink) <-chan model.StreamChunk {
	return in
}
