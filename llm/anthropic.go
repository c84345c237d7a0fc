// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - Streaming via official SDK

package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/richinex/cite/model"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	maxTokens    int64
	temperature  float64
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, defaultModel string, maxTokens uint32, temperature float32) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client:       client,
		defaultModel: defaultModel,
		maxTokens:    int64(maxTokens),
		temperature:  float64(temperature),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// StreamChat streams a chat completion.
func (p *AnthropicProvider) StreamChat(ctx context.Context, opts Options, chunks chan<- model.StreamChunk) error {
	anthropicMessages, systemPrompt := convertToAnthropicMessages(opts.Messages)
	if opts.SystemPrompt != "" {
		systemPrompt = opts.SystemPrompt
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.resolveModel(opts)),
		MaxTokens:   p.resolveMaxTokens(opts),
		Messages:    anthropicMessages,
		Temperature: anthropic.Float(p.resolveTemperature(opts)),
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	for stream.Next() {
		event := stream.Current()

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if deltaVariant.Text != "" {
					select {
					case chunks <- model.ContentChunk(deltaVariant.Text):
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			case anthropic.ThinkingDelta:
				if deltaVariant.Thinking != "" {
					select {
					case chunks <- model.StreamChunk{Type: model.ChunkThinking, Content: deltaVariant.Thinking}:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		case anthropic.MessageDeltaEvent:
			if eventVariant.Usage.OutputTokens > 0 {
				select {
				case chunks <- model.StreamChunk{
					Type: model.ChunkMetadata,
					Data: map[string]any{"output_tokens": eventVariant.Usage.OutputTokens},
				}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}

	if stream.Err() != nil {
		return fmt.Errorf("stream error: %w", stream.Err())
	}

	return nil
}

func (p *AnthropicProvider) resolveModel(opts Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	return p.defaultModel
}

func (p *AnthropicProvider) resolveMaxTokens(opts Options) int64 {
	if opts.MaxTokens > 0 {
		return int64(opts.MaxTokens)
	}
	return p.maxTokens
}

func (p *AnthropicProvider) resolveTemperature(opts Options) float64 {
	if opts.Temperature > 0 {
		return opts.Temperature
	}
	return p.temperature
}

// convertToAnthropicMessages converts our Message to Anthropic format.
// Extracts system messages and returns them separately.
func convertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, string) {
	var anthropicMessages []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemPrompt = msg.Content
		case model.RoleUser:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case model.RoleAssistant:
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	return anthropicMessages, systemPrompt
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)
