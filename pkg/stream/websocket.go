package stream

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/go-research/deepresearch/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// inboundMessage is the shape of a client-pushed frame on /ws.
type inboundMessage struct {
	Type string `json:"type"`
}

// WebSocketHandler upgrades /ws connections, subscribes each to the Bus,
// and pumps events out while handling the small set of inbound client
// messages (ping/pong; subscribe/unsubscribe accepted and ignored).
type WebSocketHandler struct {
	bus      *Bus
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewWebSocketHandler builds a handler serving bus over corsOrigins.
func NewWebSocketHandler(bus *Bus, corsOrigins []string, log logger.Logger) *WebSocketHandler {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	allowAll := len(corsOrigins) == 0
	for _, o := range corsOrigins {
		if o == "*" {
			allowAll = true
		}
	}
	originSet := make(map[string]bool, len(corsOrigins))
	for _, o := range corsOrigins {
		originSet[o] = true
	}

	return &WebSocketHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				return originSet[r.Header.Get("Origin")]
			},
		},
		logger: log,
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := h.bus.Subscribe()

	go h.writePump(conn, sub)
	h.readPump(conn, sub)
}

// writePump is the sole goroutine allowed to write to conn, as
// gorilla/websocket requires. Every outbound frame — event, ping, or this
// connection's own application-level pong reply — passes through here.
func (h *WebSocketHandler) writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event := <-sub.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sub.Done():
			conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return
		}
	}
}

func (h *WebSocketHandler) readPump(conn *websocket.Conn, sub *Subscriber) {
	defer func() {
		h.bus.Unsubscribe(sub.ID)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("malformed inbound websocket message, dropping", "error", err)
			continue
		}

		switch msg.Type {
		case "ping":
			// Routed through sub.Send so only writePump ever calls
			// conn.WriteJSON; never write from this goroutine directly.
			select {
			case sub.Send <- NewPongEvent():
			default:
				h.logger.Warn("subscriber send failed, dropping pong", "client_id", sub.ID)
			}
		case "subscribe", "unsubscribe":
			// reserved, accepted and ignored.
		default:
			h.logger.Warn("unrecognized inbound websocket message type, dropping", "type", msg.Type)
		}
	}
}
