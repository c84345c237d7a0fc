package risk

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/richinex/cite/llm"
	"github.com/richinex/cite/model"
)

// cannedProvider streams a fixed response and records the prompt it was
// given.
type cannedProvider struct {
	response string
	err      error
	lastOpts llm.Options
}

func (p *cannedProvider) Name() string { return "canned" }

func (p *cannedProvider) StreamChat(ctx context.Context, opts llm.Options, chunks chan<- model.StreamChunk) error {
	p.lastOpts = opts
	if p.err != nil {
		return p.err
	}
	select {
	case chunks <- model.ContentChunk(p.response):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func TestAssessTaggedVerdict(t *testing.T) {
	provider := &cannedProvider{response: taggedResponse}
	a := NewAssessor("judge-1", provider, NewSerializer(ApproachUserTail)).WithLogger(quiet)

	result, err := a.Assess(context.Background(), []model.Message{
		model.UserMessage("I have the pills in front of me."),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Level != model.RiskHigh {
		t.Errorf("level = %v, want high", result.Level)
	}
	if a.Name() != "judge-1" {
		t.Errorf("name = %q", a.Name())
	}

	// The classification call carries the serialized conversation, not
	// the raw one, plus the classifier system prompt.
	if len(provider.lastOpts.Messages) != 1 {
		t.Fatalf("messages = %d, want 1 serialized message", len(provider.lastOpts.Messages))
	}
	if !strings.Contains(provider.lastOpts.Messages[0].Content, "CHAT_CONVERSATION") {
		t.Error("prompt missing serialized conversation tags")
	}
	if provider.lastOpts.SystemPrompt == "" {
		t.Error("expected classifier system prompt")
	}
	if provider.lastOpts.Temperature != classificationTemperature {
		t.Errorf("temperature = %v, want %v", provider.lastOpts.Temperature, classificationTemperature)
	}
}

func TestAssessUnparseableFailsSafe(t *testing.T) {
	provider := &cannedProvider{response: "I'd rather not say."}
	a := NewAssessor("judge-1", provider, NewSerializer(ApproachOnlyLatest)).WithLogger(quiet)

	result, err := a.Assess(context.Background(), []model.Message{model.UserMessage("hi")})
	if err != nil {
		t.Fatalf("fail-safe must not error: %v", err)
	}
	if result.Level != model.RiskMedium {
		t.Errorf("level = %v, want fail-safe medium", result.Level)
	}
	if len(result.Types) != 1 || result.Types[0].Type != AssessmentErrorCategory {
		t.Errorf("types = %+v, want single %s tag", result.Types, AssessmentErrorCategory)
	}
	if result.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", result.Confidence)
	}
}

func TestAssessTransportErrorPropagates(t *testing.T) {
	provider := &cannedProvider{err: errors.New("all models failed")}
	a := NewAssessor("judge-1", provider, NewSerializer(ApproachOnlyLatest)).WithLogger(quiet)

	if _, err := a.Assess(context.Background(), []model.Message{model.UserMessage("hi")}); err == nil {
		t.Error("expected transport error to propagate")
	}
}
