package compact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kotoba-dev/kotoba/internal/protocol"
)

func TestEstimateMessageSize(t *testing.T) {
	text := protocol.TextMessage(protocol.RoleUser, "hello")
	assert.Equal(t, 5+50, EstimateMessageSize(text))

	multi := protocol.BlocksMessage(protocol.RoleUser,
		protocol.NewTextBlock("caption"),
		protocol.NewImageBlock(protocol.MediaTypeJPEG, "aaaa"),
	)
	// 100 framing + (7+50) text block + (4+150) image block.
	assert.Equal(t, 100+57+154, EstimateMessageSize(multi))
}

func TestEstimateTotalSize(t *testing.T) {
	msgs := []protocol.ChatMessage{
		protocol.TextMessage(protocol.RoleUser, "hi"),
		protocol.TextMessage(protocol.RoleAssistant, "there"),
	}
	// len(system) + 500 + per-message costs.
	assert.Equal(t, 6+500+52+55, EstimateTotalSize("system", msgs))
	assert.Equal(t, 500, EstimateTotalSize("", nil))
}
