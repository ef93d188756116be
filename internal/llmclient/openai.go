package llmclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"

	"github.com/kotoba-dev/kotoba/internal/config"
	"github.com/kotoba-dev/kotoba/internal/protocol"
)

// OpenAIClient wraps the OpenAI SDK client.
type OpenAIClient struct {
	client   openai.Client
	provider config.Provider
}

func newOpenAIClient(p config.Provider) (*OpenAIClient, error) {
	options := []option.RequestOption{
		option.WithAPIKey(p.APIKey),
	}
	if p.APIBase != "" {
		options = append(options, option.WithBaseURL(p.APIBase))
	}

	return &OpenAIClient{
		client:   openai.NewClient(options...),
		provider: p,
	}, nil
}

// ProviderType returns the provider type.
func (c *OpenAIClient) ProviderType() config.ProviderType {
	return config.ProviderOpenAI
}

// Close closes any resources held by the client.
func (c *OpenAIClient) Close() error {
	return nil
}

// StreamChat runs a streaming chat completion against the OpenAI API.
func (c *OpenAIClient) StreamChat(ctx context.Context, req Request, onDelta func(string)) (*Usage, error) {
	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: convertOpenAIMessages(req.SystemPrompt, req.Messages),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Opt(int64(req.MaxTokens))
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	usage := &Usage{}
	var accumulated strings.Builder
	for stream.Next() {
		chunk := stream.Current()

		// Usage arrives on the final chunk when include_usage is set.
		if chunk.Usage.TotalTokens > 0 {
			usage.InputTokens = int(chunk.Usage.PromptTokens)
			usage.OutputTokens = int(chunk.Usage.CompletionTokens)
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				accumulated.WriteString(choice.Delta.Content)
				onDelta(choice.Delta.Content)
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai stream: %w", err)
	}

	// OpenAI-compatible servers do not all honor include_usage.
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		usage.InputTokens = estimateRequestTokens(req.SystemPrompt, req.Messages)
		usage.OutputTokens = EstimateTokens(accumulated.String())
		usage.Estimated = true
	}

	logrus.Debugf("openai stream complete: input=%d output=%d estimated=%v", usage.InputTokens, usage.OutputTokens, usage.Estimated)
	return usage, nil
}

// convertOpenAIMessages converts conversation history to OpenAI message
// params, prepending the system prompt as a system message.
func convertOpenAIMessages(systemPrompt string, messages []protocol.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, openai.SystemMessage(systemPrompt))
	}

	for _, msg := range messages {
		switch {
		case msg.Role == protocol.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.FlattenText()))
		case msg.IsMultimodal():
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Blocks))
			for _, b := range msg.Blocks {
				switch b.Type {
				case protocol.BlockTypeText:
					parts = append(parts, openai.ChatCompletionContentPartUnionParam{
						OfText: &openai.ChatCompletionContentPartTextParam{Text: b.Text},
					})
				case protocol.BlockTypeImage:
					parts = append(parts, openai.ChatCompletionContentPartUnionParam{
						OfImageURL: &openai.ChatCompletionContentPartImageParam{
							ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
								URL: fmt.Sprintf("data:%s;base64,%s", b.MediaType, b.Data),
							},
						},
					})
				}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: parts,
					},
				},
			})
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
