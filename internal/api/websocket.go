package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"ink-blade/internal/game"

	"github.com/gorilla/websocket"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// maxClientMessageSize bounds one inbound frame
	maxClientMessageSize = 1 << 12

	writeWait = 2 * time.Second
)

// Broadcast event names
const (
	EventGameState = "game:state"
	EventGameMode  = "game:mode"
)

// ClientMessage is what a client sends over the socket. Input messages
// carry the intent fields inline next to the type.
type ClientMessage struct {
	Type string `json:"type"`
	game.Intent
}

// Client message types
const (
	MessageInput = "input"
	MessageStart = "start"
	MessageReset = "reset"
)

// ServerMessage wraps every broadcast.
type ServerMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// wsClient tracks a WebSocket connection with its source IP
type wsClient struct {
	conn   *websocket.Conn
	ip     string
	binary bool
	frames *frameBudget
}

// wsFrame is one broadcast, pre-encoded for both client kinds
type wsFrame struct {
	text   []byte
	binary []byte
}

// WebSocketHub manages all WebSocket connections with DoS protection
type WebSocketHub struct {
	engine EngineInterface

	clients    map[*websocket.Conn]*wsClient
	broadcast  chan wsFrame
	register   chan *wsClient
	unregister chan *websocket.Conn
	mu         sync.RWMutex

	done     chan struct{}
	stopOnce sync.Once

	// Per-IP socket slots, frame budgets and origin checks
	gate     *ClientGate
	upgrader websocket.Upgrader
}

// NewWebSocketHub creates a hub that admits clients through gate.
func NewWebSocketHub(engine EngineInterface, gate *ClientGate) *WebSocketHub {
	return &WebSocketHub{
		engine:     engine,
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan wsFrame, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		gate:       gate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if gate.checkOrigin(r) {
					return true
				}
				log.Printf("⚠️ WebSocket connection rejected from origin: %s", r.Header.Get("Origin"))
				return false
			},
		},
	}
}

// Run starts the hub. It is the only writer on every connection.
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client connected from %s (%d total, binary=%v)", client.ip, count, client.binary)
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.remove(conn)

		case frame := <-h.broadcast:
			var dead []*websocket.Conn
			h.mu.RLock()
			for conn, client := range h.clients {
				msgType, payload := websocket.TextMessage, frame.text
				if client.binary {
					msgType, payload = websocket.BinaryMessage, frame.binary
				}
				if payload == nil {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(msgType, payload); err != nil {
					dead = append(dead, conn)
				}
			}
			h.mu.RUnlock()

			for _, conn := range dead {
				h.remove(conn)
			}
			IncrementWSMessages()
		}
	}
}

func (h *WebSocketHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	client, ok := h.clients[conn]
	if ok {
		// Release the connection slot for this IP
		h.gate.ReleaseSocket(client.ip)
		delete(h.clients, conn)
		conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		log.Printf("📱 Client disconnected (%d remaining)", count)
		UpdateWSConnections(count)
	}
}

func (h *WebSocketHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, client := range h.clients {
		h.gate.ReleaseSocket(client.ip)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		delete(h.clients, conn)
	}
	UpdateWSConnections(0)
}

// Stop shuts the hub down and closes every connection.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Broadcast sends a message to all connected clients. Each encoding is
// produced only when a client of that kind is connected.
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	text, binary := h.kinds()
	if !text && !binary {
		return
	}

	msg := ServerMessage{Event: event, Data: data}
	var frame wsFrame
	if text {
		b, err := json.Marshal(msg)
		if err != nil {
			log.Printf("⚠️ WebSocket JSON encode failed: %v", err)
			return
		}
		frame.text = b
	}
	if binary {
		b, err := marshalMsgpack(msg)
		if err != nil {
			log.Printf("⚠️ WebSocket msgpack encode failed: %v", err)
			return
		}
		frame.binary = b
	}

	select {
	case h.broadcast <- frame:
	default:
		// Channel full, skip (backpressure)
	}
}

func (h *WebSocketHub) kinds() (text, binary bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.binary {
			binary = true
		} else {
			text = true
		}
	}
	return text, binary
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop pushes the latest snapshot every interval, plus a
// mode event whenever the match mode changes.
func (h *WebSocketHub) StartBroadcastLoop(interval time.Duration) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		lastMode := ""
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
			}

			if h.ClientCount() == 0 {
				continue
			}

			snap := h.engine.GetSnapshot()
			if snap.Mode != lastMode {
				lastMode = snap.Mode
				h.Broadcast(EventGameMode, map[string]interface{}{
					"mode":      snap.Mode,
					"score":     snap.Score,
					"highScore": snap.HighScore,
				})
			}
			h.Broadcast(EventGameState, snap)
		}
	}()
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection.
// Clients pass ?format=msgpack to receive binary frames.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Get client IP for rate limiting
	ip := GetClientIP(r)

	// Check total connection limit
	totalConnections := h.ClientCount()
	if totalConnections >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", totalConnections)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	// Check per-IP connection limit
	if !h.gate.AcquireSocket(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	// Upgrade to WebSocket
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.gate.ReleaseSocket(ip) // Release the slot we reserved
		return
	}
	conn.SetReadLimit(maxClientMessageSize)

	client := &wsClient{
		conn:   conn,
		ip:     ip,
		binary: r.URL.Query().Get("format") == "msgpack",
		frames: h.gate.newFrameBudget(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		h.gate.ReleaseSocket(ip)
		conn.Close()
		return
	}

	go h.readLoop(client)
}

// readLoop applies client commands until the connection drops
func (h *WebSocketHub) readLoop(c *wsClient) {
	defer func() {
		select {
		case h.unregister <- c.conn:
		case <-h.done:
		}
	}()

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if !c.frames.allow() {
			RecordConnectionRejected("ws_message_rate")
			continue
		}

		var msg ClientMessage
		if msgType == websocket.BinaryMessage {
			err = unmarshalMsgpack(data, &msg)
		} else {
			err = json.Unmarshal(data, &msg)
		}
		if err != nil {
			continue
		}
		h.apply(c, msg)
	}
}

func (h *WebSocketHub) apply(c *wsClient, msg ClientMessage) {
	switch msg.Type {
	case MessageInput:
		h.engine.SubmitInputFrom(c.ip, msg.Intent)
	case MessageStart:
		h.engine.StartMatch()
	case MessageReset:
		log.Printf("🔄 Match reset requested over WebSocket from %s", c.ip)
		h.engine.ResetMatch()
	}
}
