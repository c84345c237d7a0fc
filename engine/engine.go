// Turn orchestration state machine.
//
// This is THE canonical per-turn pipeline. Each turn walks a fixed
// state sequence: context-check, risk-assess/route, upskill-check,
// optional tool-delegation, profile/prompt-assembly, generate,
// safety-wrap, complete. Every transition emits a ProcessEvent;
// generation chunks are forwarded to the caller as they are produced.
//
// Information Hiding:
// - State sequencing hidden
// - Collaborator coordination hidden
// - Generation model selection and fallback assembly hidden

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/richinex/cite/catalog"
	"github.com/richinex/cite/dispatch"
	"github.com/richinex/cite/llm"
	"github.com/richinex/cite/model"
	"github.com/richinex/cite/pool"
	"github.com/richinex/cite/risk"
	"github.com/richinex/cite/routing"
)

// delegationCategory gates tool delegation alongside elevated risk.
const delegationCategory = "mental_health"

// ProfileSpec configures one response-generation profile.
type ProfileSpec struct {
	// PromptAddition is prepended to the generation system prompt.
	PromptAddition string
	// Temperature for generation.
	Temperature float64
	// MaxTokens for generation.
	MaxTokens int
	// MaxLatency constrains generation model selection; zero means no
	// ceiling.
	MaxLatency time.Duration
}

// DefaultProfiles returns the built-in profile configurations.
func DefaultProfiles() map[model.Profile]ProfileSpec {
	return map[model.Profile]ProfileSpec{
		model.ProfileBasic: {
			PromptAddition: "Reply briefly and warmly.",
			Temperature:    0.7,
			MaxTokens:      512,
			MaxLatency:     5 * time.Second,
		},
		model.ProfileBalanced: {
			PromptAddition: "Reply with warmth and substance, inviting the user to share more.",
			Temperature:    0.7,
			MaxTokens:      1024,
			MaxLatency:     12 * time.Second,
		},
		model.ProfileCareful: {
			PromptAddition: "The user may be at risk. Reply with care, validate their feelings, avoid judgment, and gently surface professional support options.",
			Temperature:    0.5,
			MaxTokens:      2048,
		},
	}
}

// Engine composes the dispatch stack, risk pipeline, router, and
// collaborators into a single streamed response per turn.
type Engine struct {
	classifier *risk.Classifier
	registry   *catalog.Registry
	pools      *pool.Registry
	bases      map[string]llm.Provider

	contextManager ContextManager
	upskilling     Upskilling
	safety         SafetyMessaging
	thinking       ThinkingProvider
	tools          *ToolRegistry
	profiles       map[model.Profile]ProfileSpec
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// New creates an engine over the given risk classifier, model catalog,
// pool registry, and base provider clients. Collaborators default to
// no-ops.
func New(classifier *risk.Classifier, registry *catalog.Registry, pools *pool.Registry, bases map[string]llm.Provider) *Engine {
	return &Engine{
		classifier:     classifier,
		registry:       registry,
		pools:          pools,
		bases:          bases,
		contextManager: noopContextManager{},
		upskilling:     noopUpskilling{},
		safety:         noopSafetyMessaging{},
		tools:          NewToolRegistry(),
		profiles:       DefaultProfiles(),
		attemptTimeout: dispatch.DefaultAttemptTimeout,
		logger:         slog.Default(),
	}
}

// WithContextManager sets the context-synthesis collaborator.
func (e *Engine) WithContextManager(cm ContextManager) *Engine {
	e.contextManager = cm
	return e
}

// WithUpskilling sets the upskilling collaborator.
func (e *Engine) WithUpskilling(u Upskilling) *Engine {
	e.upskilling = u
	return e
}

// WithSafetyMessaging sets the safety-messaging collaborator.
func (e *Engine) WithSafetyMessaging(s SafetyMessaging) *Engine {
	e.safety = s
	return e
}

// WithThinking sets the optional thinking provider.
func (e *Engine) WithThinking(t ThinkingProvider) *Engine {
	e.thinking = t
	return e
}

// WithTools sets the delegation tool registry.
func (e *Engine) WithTools(tools *ToolRegistry) *Engine {
	e.tools = tools
	return e
}

// WithProfiles overrides the profile configurations.
func (e *Engine) WithProfiles(profiles map[model.Profile]ProfileSpec) *Engine {
	e.profiles = profiles
	return e
}

// WithAttemptTimeout overrides the generation liveness window.
func (e *Engine) WithAttemptTimeout(d time.Duration) *Engine {
	e.attemptTimeout = d
	return e
}

// WithLogger overrides the logger.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// Respond runs one conversational turn. Chunks and events are forwarded
// as they are produced; the caller owns both sinks and the chunks
// channel is not closed by the engine. A done chunk marks successful
// completion. Any stage failure produces exactly one error chunk plus
// one terminal event; output already forwarded is not retracted.
func (e *Engine) Respond(ctx context.Context, messages []model.Message, preference model.Preference, chunks chan<- model.StreamChunk, events model.EventSink) error {
	// context-check
	e.emit(events, "state", "context-check", "preparing conversation context", nil)
	working, err := e.contextManager.PrepareContext(ctx, messages, events)
	if err != nil {
		return e.fail(ctx, chunks, events, "context-check", err)
	}

	// risk-assess/route
	e.emit(events, "state", "risk-assess", "classifying conversation risk", nil)
	verdict, err := e.classifier.Classify(ctx, working)
	if err != nil {
		return e.fail(ctx, chunks, events, "risk-assess", err)
	}
	assessment := model.AssessmentFromResult(verdict)
	e.emit(events, "assessment", "risk-assess",
		fmt.Sprintf("risk %s (confidence %.2f, agreement %.2f)", verdict.Level, verdict.Confidence, verdict.Agreement),
		map[string]any{
			"level":      verdict.Level.String(),
			"confidence": verdict.Confidence,
			"agreement":  verdict.Agreement,
			"categories": assessment.Categories,
		})

	decision := routing.Route(working, preference, assessment, events)
	profile := decision.Profile

	// upskill-check
	e.emit(events, "state", "upskill-check", "reviewing profile for upskilling", nil)
	upskill, err := e.upskilling.ShouldUpskill(ctx, profile, assessment)
	if err != nil {
		return e.fail(ctx, chunks, events, "upskill-check", err)
	}
	if upskill != nil {
		e.emit(events, "upskill", "upskill-check",
			fmt.Sprintf("upskilling %s to %s: %s", profile, upskill.RecommendedProfile, upskill.Reason), nil)
		profile = upskill.RecommendedProfile
	}

	// tool-delegation (optional)
	if e.shouldDelegate(assessment) {
		e.emit(events, "state", "tool-delegation", "delegating for supporting knowledge", nil)
		working, err = e.delegate(ctx, working, events)
		if err != nil {
			return e.fail(ctx, chunks, events, "tool-delegation", err)
		}
	}

	// profile/prompt-assembly
	e.emit(events, "state", "prompt-assembly", fmt.Sprintf("assembling %s profile", profile), nil)
	generator, opts, err := e.assembleGeneration(profile, working, assessment)
	if err != nil {
		return e.fail(ctx, chunks, events, "prompt-assembly", err)
	}

	// generate + safety-wrap
	e.emit(events, "state", "generate", "streaming generation", nil)
	if err := e.generate(ctx, generator, opts, working, assessment, chunks, events); err != nil {
		return e.fail(ctx, chunks, events, "generate", err)
	}

	// complete
	e.emit(events, "state", "complete", "turn complete", nil)
	e.send(ctx, chunks, model.DoneChunk())
	return nil
}

func (e *Engine) shouldDelegate(assessment model.RiskAssessment) bool {
	return assessment.Level >= model.RiskHigh &&
		assessment.HasCategory(delegationCategory) &&
		len(e.tools.Names()) > 0
}

// delegate runs the first registered tool and, on success, appends its
// knowledge to a copy of the last user message. History is never
// replaced, only extended.
func (e *Engine) delegate(ctx context.Context, messages []model.Message, events model.EventSink) ([]model.Message, error) {
	names := e.tools.Names()
	tool, _ := e.tools.Get(names[0])

	query := ""
	lastUser := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			query = messages[i].Content
			lastUser = i
			break
		}
	}
	if lastUser == -1 {
		return messages, nil
	}

	result, err := tool.Execute(ctx, query, events)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", tool.Name(), err)
	}
	if !result.Success || result.Knowledge == "" {
		e.emit(events, "tool", "tool-delegation", fmt.Sprintf("tool %s returned no knowledge", tool.Name()), nil)
		return messages, nil
	}

	e.emit(events, "tool", "tool-delegation",
		fmt.Sprintf("tool %s contributed %d bytes of knowledge", tool.Name(), len(result.Knowledge)), nil)

	updated := make([]model.Message, len(messages))
	copy(updated, messages)
	updated[lastUser].Content = updated[lastUser].Content + "\n\n[Supporting resources]\n" + result.Knowledge
	return updated, nil
}

func (e *Engine) assembleGeneration(profile model.Profile, messages []model.Message, assessment model.RiskAssessment) (llm.Provider, llm.Options, error) {
	spec, ok := e.profiles[profile]
	if !ok {
		return nil, llm.Options{}, fmt.Errorf("no configuration for profile %q", profile)
	}

	var input strings.Builder
	for _, m := range messages {
		input.WriteString(m.Content)
		input.WriteString("\n")
	}

	selection, err := e.registry.Select(catalog.Constraints{
		InputText:  input.String(),
		Require:    catalog.Capabilities{SafeReplyGeneration: true},
		MaxLatency: spec.MaxLatency,
	})
	if err != nil {
		return nil, llm.Options{}, err
	}
	e.logger.Debug("generation models selected",
		"profile", profile,
		"primary", selection.Primary.ID,
		"justification", selection.Justification)

	generator, err := dispatch.NewFallbackProvider(e.bases, selection.Models(), e.pools)
	if err != nil {
		return nil, llm.Options{}, err
	}
	generator.WithAttemptTimeout(e.attemptTimeout).WithLogger(e.logger)

	systemPrompt := spec.PromptAddition
	if assessment.Level >= model.RiskHigh {
		systemPrompt += "\nIf the user is in immediate danger, encourage them to contact local emergency services or a crisis line."
	}

	return generator, llm.Options{
		Messages:     messages,
		SystemPrompt: systemPrompt,
		Temperature:  spec.Temperature,
		MaxTokens:    spec.MaxTokens,
	}, nil
}

// generate streams the reply through the safety wrapper, forwarding
// chunks as they arrive.
func (e *Engine) generate(ctx context.Context, generator llm.Provider, opts llm.Options, messages []model.Message, assessment model.RiskAssessment, chunks chan<- model.StreamChunk, events model.EventSink) error {
	genIn := make(chan model.StreamChunk, 16)
	errc := make(chan error, 1)

	go func() {
		defer close(genIn)
		if e.thinking != nil {
			if err := e.thinking.Think(ctx, messages, genIn); err != nil {
				errc <- fmt.Errorf("thinking provider: %w", err)
				return
			}
		}
		errc <- generator.StreamChat(ctx, opts, genIn)
	}()

	e.emit(events, "state", "safety-wrap", "wrapping stream with safety messaging", nil)
	wrapped := e.safety.WrapStream(ctx, genIn, assessment, events)

	for chunk := range wrapped {
		e.send(ctx, chunks, chunk)
	}
	return <-errc
}

// fail converts a stage error into exactly one terminal error chunk and
// one audit event.
func (e *Engine) fail(ctx context.Context, chunks chan<- model.StreamChunk, events model.EventSink, step string, err error) error {
	e.logger.Error("turn aborted", "step", step, "error", err)
	e.emit(events, "error", step, err.Error(), nil)
	e.send(ctx, chunks, model.ErrorChunk(err))
	return err
}

func (e *Engine) send(ctx context.Context, chunks chan<- model.StreamChunk, chunk model.StreamChunk) {
	select {
	case chunks <- chunk:
	case <-ctx.Done():
	}
}

func (e *Engine) emit(events model.EventSink, eventType, step, description string, data map[string]any) {
	if events == nil {
		return
	}
	events(model.ProcessEvent{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Type:        eventType,
		Step:        step,
		Description: description,
		Data:        data,
	})
}
