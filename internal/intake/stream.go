package intake

import (
	"encoding/json"
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
)

// StreamInbound is a frame sent by a stream client. Text takes precedence
// over Message; both accept any JSON value.
type StreamInbound struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Text           json.RawMessage `json:"text,omitempty"`
	Message        json.RawMessage `json:"message,omitempty"`
}

// StreamOutbound is a frame sent to a stream client.
type StreamOutbound struct {
	Type   string           `json:"type"` // "analysis", "pong", "error"
	Record *analysis.Record `json:"record,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// Stream handles GET /v1/analyses/stream. Every message frame is analyzed
// and answered with one analysis frame.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveStream(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveStream(conn *websocket.Conn, r *http.Request) {
	defaultConversation := r.URL.Query().Get("conversation")
	h.logger.Debug("analysis stream opened", "conversation_id", defaultConversation)

	for {
		var raw string
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			h.logger.Debug("analysis stream closed", "error", err)
			return
		}

		var in StreamInbound
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			_ = websocket.JSON.Send(conn, StreamOutbound{Type: "error", Error: "invalid JSON frame"})
			continue
		}
		if in.Type == "ping" {
			_ = websocket.JSON.Send(conn, StreamOutbound{Type: "pong"})
			continue
		}

		payload := in.Text
		if len(payload) == 0 {
			payload = in.Message
		}
		input, _ := DecodeInput(payload)

		conversationID := in.ConversationID
		if conversationID == "" {
			conversationID = defaultConversation
		}
		rec := h.service.Analyze(r.Context(), conversationID, input)
		if err := websocket.JSON.Send(conn, StreamOutbound{Type: "analysis", Record: &rec}); err != nil {
			h.logger.Debug("analysis stream send failed", "error", err)
			return
		}
	}
}
