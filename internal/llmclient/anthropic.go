package llmclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicOption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/kotoba-dev/kotoba/internal/config"
	"github.com/kotoba-dev/kotoba/internal/protocol"
)

// AnthropicClient wraps the Anthropic SDK client.
type AnthropicClient struct {
	client   anthropic.Client
	provider config.Provider
}

func newAnthropicClient(p config.Provider) (*AnthropicClient, error) {
	options := []anthropicOption.RequestOption{
		anthropicOption.WithAPIKey(p.APIKey),
	}

	if p.APIBase != "" {
		// The SDK expects the base URL without the /v1 suffix.
		apiBase := strings.TrimRight(p.APIBase, "/")
		apiBase = strings.TrimSuffix(apiBase, "/v1")
		options = append(options, anthropicOption.WithBaseURL(apiBase))
	}

	return &AnthropicClient{
		client:   anthropic.NewClient(options...),
		provider: p,
	}, nil
}

// ProviderType returns the provider type.
func (c *AnthropicClient) ProviderType() config.ProviderType {
	return config.ProviderAnthropic
}

// Close closes any resources held by the client.
func (c *AnthropicClient) Close() error {
	return nil
}

// StreamChat runs a streaming message request against the Anthropic API.
func (c *AnthropicClient) StreamChat(ctx context.Context, req Request, onDelta func(string)) (*Usage, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  convertAnthropicMessages(req.Messages),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	usage := &Usage{}
	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			usage.InputTokens = int(event.Message.Usage.InputTokens)
		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				onDelta(event.Delta.Text)
			}
		case "message_delta":
			if event.Usage.InputTokens > 0 {
				usage.InputTokens = int(event.Usage.InputTokens)
			}
			usage.OutputTokens = int(event.Usage.OutputTokens)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic stream: %w", err)
	}

	logrus.Debugf("anthropic stream complete: input=%d output=%d", usage.InputTokens, usage.OutputTokens)
	return usage, nil
}

// convertAnthropicMessages converts conversation history to Anthropic
// message params. System-role messages are skipped; the system prompt
// travels in its own request field.
func convertAnthropicMessages(messages []protocol.ChatMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == protocol.RoleSystem {
			continue
		}

		var blocks []anthropic.ContentBlockParamUnion
		if msg.IsMultimodal() {
			for _, b := range msg.Blocks {
				switch b.Type {
				case protocol.BlockTypeText:
					blocks = append(blocks, anthropic.NewTextBlock(b.Text))
				case protocol.BlockTypeImage:
					blocks = append(blocks, anthropic.NewImageBlockBase64(string(b.MediaType), b.Data))
				}
			}
		} else {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
		}

		if msg.Role == protocol.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}
