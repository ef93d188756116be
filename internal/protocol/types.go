// Package protocol defines the wire-level conversation types exchanged
// between the history store, the request compactor, and the provider
// clients.
package protocol

import "strings"

// Role constants for ChatMessage.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// BlockType identifies the kind of a ContentBlock.
type BlockType string

const (
	BlockTypeText  BlockType = "text"
	BlockTypeImage BlockType = "image"
)

// ImageMediaType is the MIME type of an image block payload.
type ImageMediaType string

const (
	MediaTypeJPEG ImageMediaType = "image/jpeg"
	MediaTypePNG  ImageMediaType = "image/png"
	MediaTypeGIF  ImageMediaType = "image/gif"
	MediaTypeWebP ImageMediaType = "image/webp"
)

// ContentBlock is a tagged union of the block kinds a multimodal message
// can carry. Exactly one variant is populated, selected by Type.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// Text is set when Type == BlockTypeText.
	Text string `json:"text,omitempty"`

	// MediaType and Data are set when Type == BlockTypeImage.
	// Data holds the base64-encoded image payload.
	MediaType ImageMediaType `json:"media_type,omitempty"`
	Data      string         `json:"data,omitempty"`
}

// NewTextBlock creates a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

// NewImageBlock creates an image content block from base64 data.
func NewImageBlock(mediaType ImageMediaType, base64Data string) ContentBlock {
	return ContentBlock{Type: BlockTypeImage, MediaType: mediaType, Data: base64Data}
}

// ChatMessage is one turn of a conversation. Content carries plain-text
// messages; Blocks carries multimodal messages and takes precedence when
// non-empty.
type ChatMessage struct {
	Role    string         `json:"role"`
	Content string         `json:"content,omitempty"`
	Blocks  []ContentBlock `json:"blocks,omitempty"`
}

// TextMessage creates a plain-text message.
func TextMessage(role, content string) ChatMessage {
	return ChatMessage{Role: role, Content: content}
}

// BlocksMessage creates a multimodal message from content blocks.
func BlocksMessage(role string, blocks ...ContentBlock) ChatMessage {
	return ChatMessage{Role: role, Blocks: blocks}
}

// IsMultimodal reports whether the message carries content blocks.
func (m ChatMessage) IsMultimodal() bool {
	return len(m.Blocks) > 0
}

// HasImages reports whether any block of the message is an image.
func (m ChatMessage) HasImages() bool {
	for _, b := range m.Blocks {
		if b.Type == BlockTypeImage {
			return true
		}
	}
	return false
}

// FlattenText returns the textual content of the message: Content for
// plain messages, the concatenated text blocks for multimodal ones.
func (m ChatMessage) FlattenText() string {
	if !m.IsMultimodal() {
		return m.Content
	}
	var parts []string
	for _, b := range m.Blocks {
		if b.Type == BlockTypeText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Clone returns a deep copy of the message. Blocks are value types, so
// copying the slice is enough to sever aliasing with the original.
func (m ChatMessage) Clone() ChatMessage {
	out := ChatMessage{Role: m.Role, Content: m.Content}
	if m.Blocks != nil {
		out.Blocks = make([]ContentBlock, len(m.Blocks))
		copy(out.Blocks, m.Blocks)
	}
	return out
}

// CloneMessages deep-copies a message history.
func CloneMessages(messages []ChatMessage) []ChatMessage {
	if messages == nil {
		return nil
	}
	out := make([]ChatMessage, len(messages))
	for i, m := range messages {
		out[i] = m.Clone()
	}
	return out
}
