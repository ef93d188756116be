package llmclient

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotoba-dev/kotoba/internal/config"
	"github.com/kotoba-dev/kotoba/internal/protocol"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(config.Provider{Type: config.ProviderAnthropic})
	assert.Error(t, err)
}

func TestNew_RejectsUnknownProvider(t *testing.T) {
	_, err := New(config.Provider{Type: "mystery", APIKey: "k"})
	assert.Error(t, err)
}

func TestConvertAnthropicMessages(t *testing.T) {
	messages := []protocol.ChatMessage{
		protocol.TextMessage(protocol.RoleSystem, "ignored here"),
		protocol.TextMessage(protocol.RoleUser, "こんにちは"),
		protocol.TextMessage(protocol.RoleAssistant, "Hello"),
		protocol.BlocksMessage(protocol.RoleUser,
			protocol.NewTextBlock("what does this say?"),
			protocol.NewImageBlock(protocol.MediaTypePNG, "aGVsbG8="),
		),
	}

	out := convertAnthropicMessages(messages)
	require.Len(t, out, 3)

	assert.Equal(t, "こんにちは", out[0].Content[0].OfText.Text)
	assert.Equal(t, "Hello", out[1].Content[0].OfText.Text)

	require.Len(t, out[2].Content, 2)
	assert.Equal(t, "what does this say?", out[2].Content[0].OfText.Text)
	require.NotNil(t, out[2].Content[1].OfImage)
}

func TestConvertOpenAIMessages(t *testing.T) {
	messages := []protocol.ChatMessage{
		protocol.TextMessage(protocol.RoleUser, "hi"),
		protocol.TextMessage(protocol.RoleAssistant, "hello"),
		protocol.BlocksMessage(protocol.RoleUser,
			protocol.NewTextBlock("read this"),
			protocol.NewImageBlock(protocol.MediaTypeJPEG, "ZGF0YQ=="),
		),
	}

	out := convertOpenAIMessages("be brief", messages)
	require.Len(t, out, 4)

	require.NotNil(t, out[0].OfSystem)
	require.NotNil(t, out[1].OfUser)
	require.NotNil(t, out[2].OfAssistant)

	parts := out[3].OfUser.Content.OfArrayOfContentParts
	require.Len(t, parts, 2)
	assert.Equal(t, "read this", parts[0].OfText.Text)
	require.NotNil(t, parts[1].OfImageURL)
	assert.True(t, strings.HasPrefix(parts[1].OfImageURL.ImageURL.URL, "data:image/jpeg;base64,"))
}

func TestConvertOpenAIMessages_NoSystemPrompt(t *testing.T) {
	out := convertOpenAIMessages("", []protocol.ChatMessage{
		protocol.TextMessage(protocol.RoleUser, "hi"),
	})
	require.Len(t, out, 1)
	assert.NotNil(t, out[0].OfUser)
}

func TestConvertGoogleContents(t *testing.T) {
	messages := []protocol.ChatMessage{
		protocol.TextMessage(protocol.RoleUser, "こんにちは"),
		protocol.TextMessage(protocol.RoleAssistant, "Hello"),
		protocol.BlocksMessage(protocol.RoleUser,
			protocol.NewTextBlock("and this?"),
			protocol.NewImageBlock(protocol.MediaTypePNG, "aGVsbG8="),
		),
	}

	out := convertGoogleContents(messages)
	require.Len(t, out, 3)

	assert.Equal(t, "user", out[0].Role)
	assert.Equal(t, "model", out[1].Role)
	assert.Equal(t, "こんにちは", out[0].Parts[0].Text)

	require.Len(t, out[2].Parts, 2)
	require.NotNil(t, out[2].Parts[1].InlineData)
	assert.Equal(t, "image/png", out[2].Parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("hello"), out[2].Parts[1].InlineData.Data)
}

func TestConvertGoogleContents_DropsBadImageData(t *testing.T) {
	out := convertGoogleContents([]protocol.ChatMessage{
		protocol.BlocksMessage(protocol.RoleUser,
			protocol.NewImageBlock(protocol.MediaTypePNG, "not base64!!!"),
		),
	})
	assert.Empty(t, out)
}

func TestEstimateTokens(t *testing.T) {
	count := EstimateTokens("The quick brown fox jumps over the lazy dog.")
	assert.Greater(t, count, 0)
	assert.Less(t, count, 20)

	assert.Equal(t, 0, EstimateTokens(""))
}
