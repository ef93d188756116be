// Package compact keeps outgoing conversation payloads under the wire
// size budget imposed by the provider API.
//
// Compaction degrades the payload in three phases: strip images from
// older messages, then drop the oldest messages down to a soft floor,
// then down to an emergency floor. The most recent context always
// survives.
package compact

import (
	"github.com/kotoba-dev/kotoba/internal/protocol"
)

// Size estimation is an approximation of the serialized request body,
// not an exact serialization. The per-message and per-block overheads
// cover JSON framing (role, type tags, quotes, commas).
const (
	textOverhead    = 50
	imageOverhead   = 150
	messageOverhead = 100
	requestOverhead = 500
)

// EstimateBlockSize approximates the serialized byte size of one block.
func EstimateBlockSize(block protocol.ContentBlock) int {
	switch block.Type {
	case protocol.BlockTypeImage:
		return len(block.Data) + imageOverhead
	default:
		return len(block.Text) + textOverhead
	}
}

// EstimateMessageSize approximates the serialized byte size of a message.
func EstimateMessageSize(msg protocol.ChatMessage) int {
	if !msg.IsMultimodal() {
		return len(msg.Content) + textOverhead
	}
	size := messageOverhead
	for _, block := range msg.Blocks {
		size += EstimateBlockSize(block)
	}
	return size
}

// EstimateTotalSize approximates the serialized byte size of the whole
// request: system prompt, request framing, and all messages. It is a
// pure function of the message content.
func EstimateTotalSize(systemPrompt string, messages []protocol.ChatMessage) int {
	size := len(systemPrompt) + requestOverhead
	for _, msg := range messages {
		size += EstimateMessageSize(msg)
	}
	return size
}
