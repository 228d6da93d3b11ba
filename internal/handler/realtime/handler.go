package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hamyarchat/backend/internal/realtime"
	chatservice "github.com/hamyarchat/backend/internal/service/chat"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	maxFrameSize = 8 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The widget is embedded on customer sites, so cross-origin upgrades
	// are expected.
	CheckOrigin: func(*http.Request) bool { return true },
}

// inbound is the frame shape the widget sends. Type is either "join" or
// "chat".
type inbound struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// Handler upgrades widget connections and pumps frames between the socket
// and the chat service.
type Handler struct {
	hub     *realtime.Hub
	chatSvc *chatservice.Service
}

// New creates the websocket handler.
func New(hub *realtime.Hub, chatSvc *chatservice.Service) *Handler {
	return &Handler{hub: hub, chatSvc: chatSvc}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWS)
}

func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[realtime] upgrade failed: %v", err)
		return
	}

	client := realtime.NewClient(conn)
	defer func() {
		h.hub.Remove(client)
		client.Close()
	}()

	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if err := client.Send(realtime.EventWelcome, map[string]any{
		"message": "connected",
	}); err != nil {
		return
	}

	stop := make(chan struct{})
	defer close(stop)
	go h.pingLoop(client, stop)

	h.readLoop(r, client, conn)
}

// readLoop consumes frames until the connection drops.
func (h *Handler) readLoop(r *http.Request, client *realtime.Client, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[realtime] read failed: %v", err)
			}
			return
		}

		var frame inbound
		if err := json.Unmarshal(raw, &frame); err != nil {
			client.Send(realtime.EventError, map[string]any{"error": "invalid message format"})
			continue
		}

		switch frame.Type {
		case "join":
			if frame.SessionID == "" {
				client.Send(realtime.EventError, map[string]any{"error": "sessionId is required"})
				continue
			}
			h.hub.Join(frame.SessionID, client)
		case "chat":
			h.handleChatFrame(r, client, frame)
		default:
			client.Send(realtime.EventError, map[string]any{"error": "unknown message type"})
		}
	}
}

// handleChatFrame routes one widget message. The client is joined to the
// session room first so the reply, and any later operator events, reach it.
func (h *Handler) handleChatFrame(r *http.Request, client *realtime.Client, frame inbound) {
	if frame.SessionID == "" || frame.Message == "" {
		client.Send(realtime.EventError, map[string]any{"error": "sessionId and message are required"})
		return
	}

	h.hub.Join(frame.SessionID, client)

	result, err := h.chatSvc.Route(r.Context(), frame.SessionID, frame.Message)
	if err != nil {
		if result.OperatorConnected {
			client.Send(realtime.EventError, map[string]any{"error": "failed to reach the operator"})
			return
		}
		client.Send(realtime.EventError, map[string]any{"error": "failed to process message"})
		return
	}

	// Operator-bound sessions get their answer back over the bridge; there
	// is nothing to echo here.
	if result.OperatorConnected {
		return
	}

	h.hub.Emit(frame.SessionID, realtime.EventResponse, map[string]any{
		"message":       result.Reply.Text,
		"requiresHuman": result.Reply.ShouldHandoff,
	})
}

func (h *Handler) pingLoop(client *realtime.Client, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := client.Ping(); err != nil {
				return
			}
		}
	}
}
