// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Streaming via go-openai library

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/richinex/cite/model"
)

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	maxTokens    int
	temperature  float32
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, defaultModel string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return &OpenAIProvider{
		client:       openai.NewClient(apiKey),
		defaultModel: defaultModel,
		maxTokens:    int(maxTokens),
		temperature:  temperature,
	}
}

// newOpenAICompatibleProvider builds a provider against an
// OpenAI-compatible API at a custom base URL.
func newOpenAICompatibleProvider(apiKey, baseURL, defaultModel string, maxTokens uint32, temperature float32) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(config),
		defaultModel: defaultModel,
		maxTokens:    int(maxTokens),
		temperature:  temperature,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// StreamChat streams a chat completion.
func (p *OpenAIProvider) StreamChat(ctx context.Context, opts Options, chunks chan<- model.StreamChunk) error {
	req := openai.ChatCompletionRequest{
		Model:       p.resolveModel(opts),
		Messages:    convertToOpenAIMessages(opts),
		MaxTokens:   p.resolveMaxTokens(opts),
		Temperature: p.resolveTemperature(opts),
		Stream:      true,
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("stream creation failed: %w", err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream recv failed: %w", err)
		}

		if len(response.Choices) > 0 {
			content := response.Choices[0].Delta.Content
			if content != "" {
				select {
				case chunks <- model.ContentChunk(content):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (p *OpenAIProvider) resolveModel(opts Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	return p.defaultModel
}

func (p *OpenAIProvider) resolveMaxTokens(opts Options) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return p.maxTokens
}

func (p *OpenAIProvider) resolveTemperature(opts Options) float32 {
	if opts.Temperature > 0 {
		return float32(opts.Temperature)
	}
	return p.temperature
}

// convertToOpenAIMessages converts our Message to openai.ChatCompletionMessage.
// A SystemPrompt in opts is prepended as a system message.
func convertToOpenAIMessages(opts Options) []openai.ChatCompletionMessage {
	var result []openai.ChatCompletionMessage
	if opts.SystemPrompt != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	for _, msg := range opts.Messages {
		result = append(result, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
