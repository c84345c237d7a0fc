// Google Gemini Provider implementation using official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for Gemini API
// - System instruction handling via config
// - Streaming via official SDK iterator

package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/richinex/cite/model"
)

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
	maxTokens    int32
	temperature  float32
	initErr      error // Stores client initialization error for deferred reporting
}

// NewGeminiProvider creates a new Gemini provider.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiProvider(apiKey, defaultModel string, maxTokens uint32, temperature float32) *GeminiProvider {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &GeminiProvider{
			client:       nil,
			defaultModel: defaultModel,
			maxTokens:    int32(maxTokens),
			temperature:  temperature,
			initErr:      fmt.Errorf("failed to initialize Gemini client: %w", err),
		}
	}

	return &GeminiProvider{
		client:       client,
		defaultModel: defaultModel,
		maxTokens:    int32(maxTokens),
		temperature:  temperature,
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// StreamChat streams a chat completion.
func (p *GeminiProvider) StreamChat(ctx context.Context, opts Options, chunks chan<- model.StreamChunk) error {
	if p.initErr != nil {
		return p.initErr
	}
	if p.client == nil {
		return fmt.Errorf("gemini client not initialized")
	}

	contents, systemInstruction := convertToGeminiMessages(opts.Messages)
	if opts.SystemPrompt != "" {
		systemInstruction = opts.SystemPrompt
	}

	temperature := float32(p.temperature)
	if opts.Temperature > 0 {
		temperature = float32(opts.Temperature)
	}
	maxTokens := p.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = int32(opts.MaxTokens)
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: maxTokens,
	}

	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	geminiModel := p.defaultModel
	if opts.Model != "" {
		geminiModel = opts.Model
	}

	// GenerateContentStream returns iter.Seq2[*GenerateContentResponse, error]
	for response, err := range p.client.Models.GenerateContentStream(ctx, geminiModel, contents, config) {
		if err != nil {
			return fmt.Errorf("stream error: %w", err)
		}

		text := response.Text()
		if text != "" {
			select {
			case chunks <- model.ContentChunk(text):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return nil
}

// convertToGeminiMessages converts our Message to Gemini format.
// Extracts system messages and returns them separately.
func convertToGeminiMessages(messages []model.Message) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemInstruction string

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemInstruction = msg.Content
		case model.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case model.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}

	return contents, systemInstruction
}

// Verify GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)
