package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/kotoba-dev/kotoba/internal/llmclient"
	"github.com/kotoba-dev/kotoba/internal/protocol"
	"github.com/kotoba-dev/kotoba/internal/store"
	"github.com/kotoba-dev/kotoba/internal/stream"
	"github.com/kotoba-dev/kotoba/internal/translate"
)

// chatRequest is one user turn. Blocks takes precedence over Text when
// both are present, matching protocol.ChatMessage semantics.
type chatRequest struct {
	Text   string                  `json:"text"`
	Blocks []protocol.ContentBlock `json:"blocks,omitempty"`
}

// completePayload is the body of the final SSE event.
type completePayload struct {
	Record  *translate.Record `json:"record,omitempty"`
	RawText string            `json:"raw_text,omitempty"`
	Usage   usagePayload      `json:"usage"`
}

type usagePayload struct {
	InputTokens  int  `json:"input_tokens"`
	OutputTokens int  `json:"output_tokens"`
	Estimated    bool `json:"estimated,omitempty"`
}

// handleChat runs one translation turn and streams partial records back
// as SSE events: "partial" while decoding, then "complete" or "error".
func (s *Server) handleChat(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := s.store.GetSession(sessionID); err != nil {
		c.JSON(http.StatusNotFound, errorJSON("Session not found", "not_found_error"))
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorJSON("Invalid request body: "+err.Error(), "invalid_request_error"))
		return
	}
	if req.Text == "" && len(req.Blocks) == 0 {
		c.JSON(http.StatusBadRequest, errorJSON("Request must carry text or blocks", "invalid_request_error"))
		return
	}

	userMsg := protocol.ChatMessage{
		Role:    protocol.RoleUser,
		Content: req.Text,
		Blocks:  req.Blocks,
	}

	history, err := s.store.LoadMessages(sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorJSON(err.Error(), "api_error"))
		return
	}
	history = append(replaceRedactedImages(history), userMsg)

	snap := s.config.Snapshot()
	systemPrompt := translate.SystemPrompt(translate.PromptOptions{
		SourceLanguage: snap.Translation.SourceLanguage,
		TargetLanguage: snap.Translation.TargetLanguage,
	})

	report := s.compactor().Compact(systemPrompt, history)
	if report.WasCompacted {
		logrus.Infof("compacted request for session %s: dropped %d images, %d messages",
			sessionID, report.DroppedImages, report.DroppedMessages)
		s.metrics.RecordCompaction(c.Request.Context(), report.DroppedImages, report.DroppedMessages)
	}

	client, err := s.newClient(snap.Provider)
	if err != nil {
		c.JSON(http.StatusBadGateway, errorJSON(err.Error(), "provider_error"))
		return
	}
	defer client.Close()

	if err := s.store.AppendMessage(sessionID, userMsg); err != nil {
		c.JSON(http.StatusInternalServerError, errorJSON(err.Error(), "api_error"))
		return
	}

	// The flusher check comes before any header writes so the failure
	// response still goes out as plain JSON.
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, errorJSON("Streaming not supported by this connection", "api_error"))
		return
	}

	// Compaction outcome travels in headers so clients can surface it
	// without parsing the event stream.
	c.Header("X-Kotoba-Compacted", strconv.FormatBool(report.WasCompacted))
	if report.WasCompacted {
		c.Header("X-Kotoba-Dropped-Images", strconv.Itoa(report.DroppedImages))
		c.Header("X-Kotoba-Dropped-Messages", strconv.Itoa(report.DroppedMessages))
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	start := time.Now()
	var buffer strings.Builder
	llmReq := llmclient.Request{
		Model:        snap.Provider.Model,
		SystemPrompt: systemPrompt,
		Messages:     report.Messages,
	}
	usage, err := client.StreamChat(c.Request.Context(), llmReq, func(delta string) {
		buffer.WriteString(delta)
		writeEvent(c, flusher, "partial", stream.Decode(buffer.String()))
	})

	providerName := string(snap.Provider.Type)
	if err != nil {
		logrus.Errorf("chat stream failed for session %s: %v", sessionID, err)
		s.metrics.RecordRequest(c.Request.Context(), providerName, "error", time.Since(start))
		writeEvent(c, flusher, "error", errorJSON(err.Error(), "provider_error"))
		return
	}

	raw := buffer.String()
	payload := completePayload{
		Usage: usagePayload{
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
			Estimated:    usage.Estimated,
		},
	}
	record, parseErr := translate.ParseRecord(raw)
	if parseErr != nil {
		logrus.Warnf("assistant response is not a valid record: %v", parseErr)
		payload.RawText = raw
	} else {
		payload.Record = record
	}

	if err := s.store.AppendMessage(sessionID, protocol.TextMessage(protocol.RoleAssistant, raw)); err != nil {
		logrus.Errorf("persisting assistant message: %v", err)
	}

	s.metrics.RecordRequest(c.Request.Context(), providerName, "success", time.Since(start))
	s.metrics.RecordTokens(c.Request.Context(), providerName, usage.InputTokens, usage.OutputTokens)
	writeEvent(c, flusher, "complete", payload)
}

// replaceRedactedImages converts image blocks whose payload was
// redacted at rest into plain text blocks. Replayed history must never
// hand the redaction placeholder to a provider as base64 image data.
func replaceRedactedImages(messages []protocol.ChatMessage) []protocol.ChatMessage {
	for i := range messages {
		for j, b := range messages[i].Blocks {
			if b.Type == protocol.BlockTypeImage && b.Data == store.ImageRedactedPlaceholder {
				messages[i].Blocks[j] = protocol.NewTextBlock("[image omitted from stored history]")
			}
		}
	}
	return messages
}

// writeEvent writes one named SSE event and flushes it out.
func writeEvent(c *gin.Context, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.Errorf("marshaling %s event: %v", event, err)
		return
	}
	fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
