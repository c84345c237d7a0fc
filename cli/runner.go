// Command execution for CLI commands.
//
// Information Hiding:
// - Stack assembly (providers, pools, judges, engine) hidden
// - Command dispatch logic hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/richinex/cite/catalog"
	"github.com/richinex/cite/config"
	"github.com/richinex/cite/dispatch"
	"github.com/richinex/cite/engine"
	"github.com/richinex/cite/llm"
	"github.com/richinex/cite/model"
	"github.com/richinex/cite/pool"
	"github.com/richinex/cite/risk"
)

// Options holds CLI execution options.
type Options struct {
	Provider   string
	Preference string
	Verbose    bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		Provider:   "anthropic",
		Preference: "auto",
		Verbose:    false,
	}
}

// Stack is the assembled application: catalog, pools, providers, risk
// pipeline, and engine, all sharing one logger.
type Stack struct {
	Settings   config.Settings
	Catalog    *catalog.Registry
	Pools      *pool.Registry
	Bases      map[string]llm.Provider
	Classifier *risk.Classifier
	Engine     *engine.Engine
	Logger     *slog.Logger
}

// BuildStack assembles the full dispatch and risk stack from the
// environment. Providers without API keys are skipped; catalog entries
// whose provider has no client are excluded from selection.
func BuildStack(opts Options) (*Stack, error) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	settings, err := config.New(opts.Provider)
	if err != nil {
		return nil, err
	}

	bases, err := buildBaseProviders(settings, logger)
	if err != nil {
		return nil, err
	}

	reg := availableCatalog(bases)

	pools := pool.NewRegistry(pool.Config{
		Initial:          settings.Pool.InitialLimit,
		Floor:            settings.Pool.FloorLimit,
		Ceiling:          settings.Pool.CeilingLimit,
		SuccessThreshold: settings.Pool.SuccessThreshold,
		DecreaseFactor:   pool.DefaultConfig().DecreaseFactor,
		DecreaseCooldown: settings.Pool.DecreaseCooldown,
		IdleReset:        settings.Pool.IdleReset,
	}, logger)

	classifier, err := buildClassifier(settings, reg, bases, pools, logger)
	if err != nil {
		return nil, err
	}

	eng := engine.New(classifier, reg, pools, bases).
		WithAttemptTimeout(settings.Dispatch.AttemptTimeout).
		WithLogger(logger)

	return &Stack{
		Settings:   settings,
		Catalog:    reg,
		Pools:      pools,
		Bases:      bases,
		Classifier: classifier,
		Engine:     eng,
		Logger:     logger,
	}, nil
}

// buildBaseProviders creates one client per provider whose API key is
// present in the environment.
func buildBaseProviders(settings config.Settings, logger *slog.Logger) (map[string]llm.Provider, error) {
	bases := make(map[string]llm.Provider)
	for _, name := range config.SupportedProviders() {
		if !config.HasAPIKey(name) {
			continue
		}
		providerType, err := llm.ParseProviderType(name)
		if err != nil {
			return nil, err
		}
		defaultModel, err := config.ModelFor(name)
		if err != nil {
			return nil, err
		}
		apiKey, err := config.APIKeyFor(name)
		if err != nil {
			return nil, err
		}
		provider, err := providerType.
			Model(defaultModel).
			MaxTokens(uint32(settings.Generation.MaxTokens)).
			Temperature(float32(settings.Generation.Temperature)).
			APIKey(apiKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s provider: %w", name, err)
		}
		bases[name] = provider
		logger.Debug("provider configured", "provider", name, "default_model", defaultModel)
	}
	if len(bases) == 0 {
		return nil, fmt.Errorf("no provider API keys configured; set at least one of OPENAI_API_KEY, ANTHROPIC_API_KEY, DEEPSEEK_API_KEY, GEMINI_API_KEY")
	}
	return bases, nil
}

// availableCatalog narrows the built-in catalog to models whose
// provider has a configured client.
func availableCatalog(bases map[string]llm.Provider) *catalog.Registry {
	var specs []catalog.ModelSpec
	for _, spec := range catalog.BuiltinRegistry().List() {
		if _, ok := bases[spec.Provider]; ok {
			specs = append(specs, spec)
		}
	}
	return catalog.NewRegistry(specs)
}

// buildClassifier creates one pooled judge per configured judge model.
// Judge models without a configured provider are skipped.
func buildClassifier(settings config.Settings, reg *catalog.Registry, bases map[string]llm.Provider, pools *pool.Registry, logger *slog.Logger) (*risk.Classifier, error) {
	serializer := risk.Serializer{
		Approach: risk.Approach(settings.Risk.SerializeApproach),
		TailN:    settings.Risk.SerializeTailN,
	}

	var judges []risk.Judge
	for _, modelID := range settings.Risk.JudgeModels {
		spec, ok := reg.Lookup(modelID)
		if !ok {
			logger.Warn("judge model unavailable", "model", modelID)
			continue
		}
		judgeProvider, err := dispatch.NewFallbackProvider(bases, []catalog.ModelSpec{spec}, pools)
		if err != nil {
			return nil, fmt.Errorf("failed to create judge %s: %w", modelID, err)
		}
		judgeProvider.WithAttemptTimeout(settings.Dispatch.AttemptTimeout).WithLogger(logger)
		judges = append(judges, risk.NewAssessor(modelID, judgeProvider, serializer).WithLogger(logger))
	}
	if len(judges) == 0 {
		return nil, fmt.Errorf("no judge models available; check RISK_JUDGE_MODELS against configured providers")
	}

	classifier, err := risk.NewClassifier(judges...)
	if err != nil {
		return nil, err
	}
	return classifier.WithLogger(logger), nil
}

// Classify runs the risk pipeline over a single user message and
// prints the verdict.
func Classify(ctx context.Context, text string, opts Options) error {
	stack, err := BuildStack(opts)
	if err != nil {
		return err
	}

	result, err := stack.Classifier.Classify(ctx, []model.Message{model.UserMessage(text)})
	if err != nil {
		return err
	}

	fmt.Printf("Level:      %s\n", result.Level)
	fmt.Printf("Confidence: %.2f\n", result.Confidence)
	fmt.Printf("Agreement:  %.2f\n", result.Agreement)
	if result.Language != "" {
		fmt.Printf("Language:   %s (%s)\n", result.Language, result.Locale)
	}
	for _, rt := range result.Types {
		fmt.Printf("  - %s (%.2f)\n", rt.Type, rt.Confidence)
	}
	if result.Reflection != "" {
		fmt.Printf("\n%s\n", result.Reflection)
	}
	return nil
}

// Chat starts an interactive chat session through the full engine.
func Chat(ctx context.Context, opts Options) error {
	stack, err := BuildStack(opts)
	if err != nil {
		return err
	}

	preference := model.Preference(opts.Preference)
	var history []model.Message

	fmt.Println("Chat session started. Type 'exit' to quit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		history = append(history, model.UserMessage(input))

		reply, err := runTurn(ctx, stack, history, preference, opts.Verbose)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
			// Drop the failed turn so a retry starts clean.
			history = history[:len(history)-1]
			continue
		}

		history = append(history, model.AssistantMessage(reply))
		fmt.Println()
	}

	return scanner.Err()
}

// runTurn streams one engine turn to stdout and returns the
// accumulated reply text.
func runTurn(ctx context.Context, stack *Stack, history []model.Message, preference model.Preference, verbose bool) (string, error) {
	chunks := make(chan model.StreamChunk, 16)
	done := make(chan error, 1)

	events := model.EventSink(nil)
	if verbose {
		events = func(ev model.ProcessEvent) {
			fmt.Fprintf(os.Stderr, "[%s/%s] %s\n", ev.Type, ev.Step, ev.Description)
		}
	}

	go func() {
		done <- stack.Engine.Respond(ctx, history, preference, chunks, events)
		close(chunks)
	}()

	var reply strings.Builder
	fmt.Println()
	for chunk := range chunks {
		switch chunk.Type {
		case model.ChunkContent:
			fmt.Print(chunk.Content)
			reply.WriteString(chunk.Content)
		case model.ChunkThinking:
			if verbose {
				fmt.Fprintf(os.Stderr, "(thinking) %s\n", chunk.Content)
			}
		case model.ChunkError:
			// The terminal error is reported via done.
		}
	}
	fmt.Println()

	if err := <-done; err != nil {
		return "", err
	}
	return reply.String(), nil
}

// Models prints the usable model catalog with prices and capabilities.
func Models(opts Options) error {
	stack, err := BuildStack(opts)
	if err != nil {
		return err
	}

	fmt.Printf("%-28s %-10s %10s %10s  %s\n", "MODEL", "PROVIDER", "IN $/M", "OUT $/M", "CAPABILITIES")
	for _, spec := range stack.Catalog.List() {
		var caps []string
		if spec.Capabilities.RiskClassification {
			caps = append(caps, "risk")
		}
		if spec.Capabilities.SafeReplyGeneration {
			caps = append(caps, "safe-reply")
		}
		if spec.Capabilities.LanguageDetection {
			caps = append(caps, "language")
		}
		fmt.Printf("%-28s %-10s %10.2f %10.2f  %s\n",
			spec.ID, spec.Provider, spec.InputPrice, spec.OutputPrice, strings.Join(caps, ","))
	}
	return nil
}
