package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"private-lending/internal/events"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

// WebSocketHandler streams ledger events to connected clients
type WebSocketHandler struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(bus *events.Bus) *WebSocketHandler {
	return &WebSocketHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// parseTypes reads the optional ?types=a,b filter
func parseTypes(raw string) map[events.Type]bool {
	if raw == "" {
		return nil
	}
	filter := make(map[events.Type]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			filter[events.Type(t)] = true
		}
	}
	return filter
}

// HandleEvents GET /ws/events?types=deposit.created,action.processed
func (h *WebSocketHandler) HandleEvents(c *gin.Context) {
	filter := parseTypes(c.Query("types"))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	clientID := uuid.New().String()
	stream, cancel := h.bus.Subscribe(256)
	defer cancel()

	log.Printf("📡 WebSocket client connected: %s", clientID)
	defer log.Printf("🔌 WebSocket client disconnected: %s", clientID)

	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(map[string]interface{}{
		"type":      "connected",
		"client_id": clientID,
		"timestamp": time.Now(),
	}); err != nil {
		return
	}

	// the read loop only services control frames and notices the close
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("⚠️ [WebSocket] Read error for client %s: %v", clientID, err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-readDone:
			return
		case evt, ok := <-stream:
			if !ok {
				return
			}
			if filter != nil && !filter[evt.Type] {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				log.Printf("⚠️ [WebSocket] Write to client %s failed: %v", clientID, err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
