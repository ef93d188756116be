package llmclient

import (
	"github.com/tiktoken-go/tokenizer"

	"github.com/kotoba-dev/kotoba/internal/protocol"
)

// EstimateTokens approximates the token count of a text using tiktoken,
// falling back to a character/4 estimate when the encoder is
// unavailable.
func EstimateTokens(text string) int {
	enc, err := tokenizer.Get(tokenizer.O200kBase)
	if err != nil {
		return len(text) / 4
	}
	count, err := enc.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// estimateRequestTokens approximates the input token count of a request
// for providers that do not report usage. Image blocks are not counted.
func estimateRequestTokens(systemPrompt string, messages []protocol.ChatMessage) int {
	total := EstimateTokens(systemPrompt)
	for _, msg := range messages {
		total += EstimateTokens(msg.Role)
		total += EstimateTokens(msg.FlattenText())
	}
	// Small allowance for request framing.
	total += 3
	return total
}
