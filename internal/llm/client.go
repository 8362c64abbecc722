// Package llm provides streaming LLM client implementations.
package llm

import (
	"context"
)

// StreamCallback is called for each token during streaming.
type StreamCallback func(token string, index int) error

// ChatMessage represents a chat message for the model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamRequest represents a streaming completion request.
type StreamRequest struct {
	Model     string
	Messages  []ChatMessage
	MaxTokens int
}

// StreamResult summarizes a finished stream.
type StreamResult struct {
	Content    string
	Model      string
	StopReason string
	LatencyMs  int64
}

// Client is the interface for streaming LLM providers.
type Client interface {
	// Stream sends a completion request and invokes callback per token.
	Stream(ctx context.Context, req *StreamRequest, callback StreamCallback) (*StreamResult, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return NewAnthropicClient(apiKey)
	}
}
