// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for streaming chat
// providers. Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error handling

package llm

import (
	"context"

	"github.com/richinex/cite/model"
)

// Options describes one streaming chat request. Model overrides the
// provider's default model; dispatch relies on this to run the same
// provider against each fallback candidate.
type Options struct {
	Messages     []model.Message
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Provider defines the abstract interface for streaming LLM providers.
// Implementations hide provider-specific details while exposing a
// consistent streaming interface.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// StreamChat streams a chat completion, sending typed chunks to the
	// provided channel as they arrive. It returns after the stream has
	// run to completion or failed. Mid-stream upstream error frames are
	// delivered as error-typed chunks; transport failures are returned.
	StreamChat(ctx context.Context, opts Options, chunks chan<- model.StreamChunk) error
}

// Collect runs a streaming chat to completion and concatenates the
// content chunks. Used by callers that want a single string, such as
// classification.
func Collect(ctx context.Context, provider Provider, opts Options) (string, error) {
	chunks := make(chan model.StreamChunk, 16)
	errc := make(chan error, 1)

	go func() {
		defer close(chunks)
		errc <- provider.StreamChat(ctx, opts, chunks)
	}()

	var text string
	for chunk := range chunks {
		if chunk.Type == model.ChunkContent {
			text += chunk.Content
		}
	}
	if err := <-errc; err != nil {
		return text, err
	}
	return text, nil
}
