package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/waterracebox/StockSprintBackend/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tunables
// ──────────────────────────────────────────────────────────────────────────────

const (
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 35 * time.Second // must be > pingInterval
	maxMessageSize = 4096             // bytes; largest ingress command is a mini-game action
	sendBufferSize = 256              // messages in each client send channel
)

// ──────────────────────────────────────────────────────────────────────────────
// Client
// ──────────────────────────────────────────────────────────────────────────────

// Client represents one connected WebSocket session.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte // buffered outbound message queue
	userID uuid.UUID
	role   domain.UserRole
}

// ──────────────────────────────────────────────────────────────────────────────
// Hub
// ──────────────────────────────────────────────────────────────────────────────

// SyncProvider builds the one-shot FULL_SYNC_STATE payload sent to every
// freshly connected session.
type SyncProvider interface {
	FullSync(ctx context.Context, userID uuid.UUID) (any, error)
}

// Hub maintains the set of active sessions and routes messages globally, to a
// single user's sessions, or to admin sessions only.
// Run() must be called in a dedicated goroutine before ServeWs is used.
type Hub struct {
	// Registered clients and their concurrency guard.
	mu      sync.RWMutex
	clients map[*Client]bool
	// byUser indexes each user's sessions (the "user:<id>" room).
	byUser map[uuid.UUID]map[*Client]bool

	// channels consumed by Run()
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	jwtSecret []byte
	sync      SyncProvider
	commands  *CommandRouter
	logger    *slog.Logger

	// upgrader is safe for concurrent use after construction.
	upgrader websocket.Upgrader
}

// NewHub creates a Hub ready to be started with Run(). The sync provider and
// command router are attached later because they depend on services that in
// turn emit through the hub.
func NewHub(jwtSecret []byte, allowedOrigins []string, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byUser:     make(map[uuid.UUID]map[*Client]bool),
		broadcast:  make(chan []byte, 512),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		jwtSecret:  jwtSecret,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true // dev mode: allow all
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// SetSyncProvider attaches the FULL_SYNC_STATE builder.
func (h *Hub) SetSyncProvider(p SyncProvider) { h.sync = p }

// SetCommandRouter attaches the ingress dispatcher.
func (h *Hub) SetCommandRouter(r *CommandRouter) { h.commands = r }

// ──────────────────────────────────────────────────────────────────────────────
// Run — hub event loop
// ──────────────────────────────────────────────────────────────────────────────

// Run processes registration, unregistration, and broadcast events
// sequentially.  Call it once as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			room := h.byUser[client.userID]
			if room == nil {
				room = make(map[*Client]bool)
				h.byUser[client.userID] = room
			}
			room[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if room := h.byUser[client.userID]; room != nil {
					delete(room, client)
					if len(room) == 0 {
						delete(h.byUser, client.userID)
					}
				}
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's buffer full — drop the message for this client.
					// The writePump will detect a stalled connection separately.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ConnectedCount returns the current number of connected sessions.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ConnectedUserIDs returns the distinct user ids with at least one session.
func (h *Hub) ConnectedUserIDs() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(h.byUser))
	for id := range h.byUser {
		ids = append(ids, id)
	}
	return ids
}

// ──────────────────────────────────────────────────────────────────────────────
// Emit helpers — globalEmit / toUser / toAdmins
// ──────────────────────────────────────────────────────────────────────────────

// Emit broadcasts an event to every connected session.
func (h *Hub) Emit(event EventType, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		h.logger.Error("ws: marshal failed", "event", event, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("ws: broadcast channel full, message dropped", "event", event)
	}
}

// EmitToUser sends an event to every session in the user's room.
func (h *Hub) EmitToUser(userID uuid.UUID, event EventType, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		h.logger.Error("ws: marshal failed", "event", event, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.byUser[userID] {
		select {
		case client.send <- data:
		default:
		}
	}
}

// EmitToAdmins sends an event to every session authenticated with ADMIN role.
func (h *Hub) EmitToAdmins(event EventType, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		h.logger.Error("ws: marshal failed", "event", event, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.role.IsAdmin() {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}

// DisconnectUser force-closes every session of a user (after FORCE_LOGOUT).
func (h *Hub) DisconnectUser(userID uuid.UUID) {
	h.mu.RLock()
	sessions := make([]*Client, 0, len(h.byUser[userID]))
	for client := range h.byUser[userID] {
		sessions = append(sessions, client)
	}
	h.mu.RUnlock()
	for _, client := range sessions {
		_ = client.conn.Close()
	}
}

// sendToClient writes an envelope directly to one session's queue.
func (h *Hub) sendToClient(c *Client, event EventType, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		h.logger.Error("ws: marshal failed", "event", event, "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// ServeWs — HTTP → WebSocket upgrade
// ──────────────────────────────────────────────────────────────────────────────

// ServeWs upgrades an HTTP request to a WebSocket session. The caller must
// present a valid JWT in the ?token= query parameter; the session joins the
// user's personal room and receives exactly one FULL_SYNC_STATE snapshot.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := h.parseJWT(r.URL.Query().Get("token"))
	if !ok {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
		role:   role,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()

	// One snapshot per connection, computed after registration so nothing
	// emitted in between is lost.
	if h.sync != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			snapshot, err := h.sync.FullSync(ctx, userID)
			if err != nil {
				h.logger.Error("ws: full sync failed", "user_id", userID, "error", err)
				return
			}
			h.sendToClient(client, EventFullSyncState, snapshot)
		}()
	}
}

// parseJWT extracts (userID, role) from a signed token.
func (h *Hub) parseJWT(tokenString string) (uuid.UUID, domain.UserRole, bool) {
	if tokenString == "" || len(h.jwtSecret) == 0 {
		return uuid.Nil, "", false
	}
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return h.jwtSecret, nil
	})
	if err != nil || !tok.Valid {
		return uuid.Nil, "", false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, "", false
	}
	sub, _ := claims.GetSubject()
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, "", false
	}
	role := domain.RoleUser
	if s, _ := claims["role"].(string); s != "" {
		role = domain.UserRole(s)
	}
	return id, role, true
}

// ──────────────────────────────────────────────────────────────────────────────
// Client pumps
// ──────────────────────────────────────────────────────────────────────────────

// writePump drains the client's send channel and writes messages to the
// WebSocket connection.  It also sends ping frames every pingInterval.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the WebSocket connection, decodes the {event,
// payload} envelope, and hands commands to the router. When the connection
// drops the client is unregistered.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("ws: unexpected close", "user_id", c.userID, "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.hub.sendToClient(c, EventTradeError, TradeErrorPayload{
				Code:    "VALIDATION",
				Message: "malformed message",
			})
			continue
		}
		if c.hub.commands != nil {
			c.hub.commands.Dispatch(c, env)
		}
	}
}
