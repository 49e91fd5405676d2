package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/CrowderSoup/kanban/services"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler streams board state to a user's connections and feeds their drag
// gestures to the user's drag controller.
type WebSocketHandler struct {
	hub      *services.Hub
	sessions *services.Sessions
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *services.Hub, sessions *services.Sessions, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

type dragTarget struct {
	TaskID   string  `json:"taskId"`
	TargetID *string `json:"targetId"`
}

// HandleWebSocket upgrades the HTTP connection to a WebSocket connection
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFromContext(r.Context())
	if !ok {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return
	}

	// Upgrade the connection
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("failed to upgrade to websocket")
		return
	}

	// Keep the user's session open while the connection lives
	session, release := h.sessions.Hold(email)
	client := &services.Client{
		Hub:   h.hub,
		Conn:  conn,
		Send:  make(chan []byte, 256),
		Email: email,
		OnMessage: func(c *services.Client, msg services.InboundMessage) {
			dispatch(session, c, msg)
		},
		OnClose: func(*services.Client) {
			release()
		},
	}

	// Register the client and send the current state
	h.hub.Register(client)
	client.Deliver(services.WebSocketMessage{Type: services.MessageState, Data: session.Store.Document()})

	// Start the pumps
	go client.WritePump()
	go client.ReadPump()
}

func dispatch(session *services.Session, c *services.Client, msg services.InboundMessage) {
	var target dragTarget
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &target); err != nil {
			c.Deliver(services.WebSocketMessage{Type: services.MessageError, Data: "invalid " + msg.Type + " payload"})
			return
		}
	}

	switch msg.Type {
	case services.MessageDragStart:
		session.Drag.DragStart(target.TaskID)
	case services.MessageDragOver:
		if target.TargetID != nil {
			session.Drag.DragOver(*target.TargetID)
		}
	case services.MessageDragEnd:
		targetID := ""
		if target.TargetID != nil {
			targetID = *target.TargetID
		}
		session.Drag.DragEnd(targetID)
	case services.MessageDragCancel:
		session.Drag.DragCancel()
	default:
		c.Deliver(services.WebSocketMessage{Type: services.MessageError, Data: "unknown message type " + msg.Type})
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}
