package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mnemolabs/mnemo/core"
	"github.com/mnemolabs/mnemo/logging"
)

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
}

type wsRequest struct {
	Prompt    string `json:"prompt"`
	MaxLength int64  `json:"max_length,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type wsEvent struct {
	Type          string `json:"type"` // "delta", "done", "error"
	Text          string `json:"text,omitempty"`
	GeneratedText string `json:"generated_text,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	Kind          string `json:"kind,omitempty"`
	Message       string `json:"message,omitempty"`
}

// handleWS streams responses over a websocket. Each client message is one
// generate request; the response arrives as delta events followed by a
// done event carrying the full text.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.From(r.Context()).Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := logging.From(r.Context())

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		owner, sessionID, err := s.resolveOwner(r, req.SessionID)
		if err != nil {
			s.writeWSError(conn, err)
			continue
		}

		out, err := s.engine.GenerateStream(r.Context(), owner, req.Prompt, req.MaxLength, func(chunk string) {
			_ = conn.WriteJSON(wsEvent{Type: "delta", Text: chunk})
		})
		if err != nil {
			s.writeWSError(conn, err)
			continue
		}

		done := wsEvent{
			Type:          "done",
			GeneratedText: out.Text,
			SessionID:     sessionID,
		}
		if err := conn.WriteJSON(done); err != nil {
			logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) writeWSError(conn *websocket.Conn, err error) {
	_ = conn.WriteJSON(wsEvent{
		Type:    "error",
		Kind:    core.Kind(err),
		Message: fmt.Sprint(err),
	})
}
