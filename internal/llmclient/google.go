package llmclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/kotoba-dev/kotoba/internal/config"
	"github.com/kotoba-dev/kotoba/internal/protocol"
)

// GoogleClient wraps the Google genai SDK client.
type GoogleClient struct {
	client   *genai.Client
	provider config.Provider
}

func newGoogleClient(p config.Provider) (*GoogleClient, error) {
	cfg := &genai.ClientConfig{
		APIKey: p.APIKey,
	}
	if p.APIBase != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: p.APIBase}
	}

	// Client construction requires a context.
	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("creating google client: %w", err)
	}

	return &GoogleClient{client: client, provider: p}, nil
}

// ProviderType returns the provider type.
func (c *GoogleClient) ProviderType() config.ProviderType {
	return config.ProviderGoogle
}

// Close closes any resources held by the client.
func (c *GoogleClient) Close() error {
	return nil
}

// StreamChat runs a streaming generation against the Gemini API.
func (c *GoogleClient) StreamChat(ctx context.Context, req Request, onDelta func(string)) (*Usage, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.SystemPrompt)},
		}
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	contents := convertGoogleContents(req.Messages)

	usage := &Usage{}
	var accumulated strings.Builder
	for resp, err := range c.client.Models.GenerateContentStream(ctx, req.Model, contents, cfg) {
		if err != nil {
			return nil, fmt.Errorf("google stream: %w", err)
		}

		if resp.UsageMetadata != nil {
			usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
			usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}

		if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
			for _, part := range resp.Candidates[0].Content.Parts {
				if part.Text != "" {
					accumulated.WriteString(part.Text)
					onDelta(part.Text)
				}
			}
		}
	}

	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		usage.InputTokens = estimateRequestTokens(req.SystemPrompt, req.Messages)
		usage.OutputTokens = EstimateTokens(accumulated.String())
		usage.Estimated = true
	}

	logrus.Debugf("google stream complete: input=%d output=%d", usage.InputTokens, usage.OutputTokens)
	return usage, nil
}

// convertGoogleContents converts conversation history to genai contents.
// Gemini uses "model" for the assistant role and carries images as
// inline byte parts.
func convertGoogleContents(messages []protocol.ChatMessage) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == protocol.RoleSystem {
			continue
		}

		role := "user"
		if msg.Role == protocol.RoleAssistant {
			role = "model"
		}

		content := &genai.Content{Role: role}
		if msg.IsMultimodal() {
			for _, b := range msg.Blocks {
				switch b.Type {
				case protocol.BlockTypeText:
					content.Parts = append(content.Parts, genai.NewPartFromText(b.Text))
				case protocol.BlockTypeImage:
					data, err := base64.StdEncoding.DecodeString(b.Data)
					if err != nil {
						logrus.Warnf("skipping undecodable image block: %v", err)
						continue
					}
					content.Parts = append(content.Parts, genai.NewPartFromBytes(data, string(b.MediaType)))
				}
			}
		} else {
			content.Parts = append(content.Parts, genai.NewPartFromText(msg.Content))
		}

		if len(content.Parts) > 0 {
			out = append(out, content)
		}
	}
	return out
}
