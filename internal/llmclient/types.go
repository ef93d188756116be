// Package llmclient wraps the provider SDKs behind a single streaming
// chat interface. Each client converts the internal conversation types
// into its provider's wire format and surfaces deltas through a
// callback.
package llmclient

import (
	"context"
	"fmt"

	"github.com/kotoba-dev/kotoba/internal/config"
	"github.com/kotoba-dev/kotoba/internal/protocol"
)

// defaultMaxTokens bounds the response when the request does not set one.
const defaultMaxTokens = 4096

// Request is a single streaming chat call.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []protocol.ChatMessage
	MaxTokens    int
}

// Usage reports token accounting for a completed call. Estimated is set
// when the provider did not return usage and tiktoken filled the gap.
type Usage struct {
	InputTokens  int
	OutputTokens int
	Estimated    bool
}

// Client is a streaming chat client for one provider.
type Client interface {
	// ProviderType returns the provider this client talks to.
	ProviderType() config.ProviderType

	// StreamChat runs a streaming completion, invoking onDelta for each
	// text fragment as it arrives. It returns usage once the stream ends.
	StreamChat(ctx context.Context, req Request, onDelta func(string)) (*Usage, error)

	// Close releases any resources held by the client.
	Close() error
}

// New creates a client for the configured provider.
func New(p config.Provider) (Client, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("provider %s: api_key is not set", p.Type)
	}

	switch p.Type {
	case config.ProviderAnthropic:
		return newAnthropicClient(p)
	case config.ProviderOpenAI:
		return newOpenAIClient(p)
	case config.ProviderGoogle:
		return newGoogleClient(p)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", p.Type)
	}
}
