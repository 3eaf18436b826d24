// Package gateway is the websocket layer: it upgrades client connections,
// assigns each one to a single role channel (player, admin, projection), fans
// outbound events out per channel, and feeds inbound messages to the session
// coordinator.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/playcrack/trivia/internal/game"
)

// Hub manages websocket connections grouped by role channel.
type Hub struct {
	// Connection sets keyed by channel; a connection lives in exactly one.
	channels map[game.Channel]map[*Connection]bool
	byID     map[string]*Connection
	mu       sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	dispatcher  Dispatcher
	broadcastCh chan outbound
}

// Connection represents one websocket client.
type Connection struct {
	ID      string
	Channel game.Channel
	Conn    *websocket.Conn
	Send    chan []byte
	Hub     *Hub

	ConnectedAt time.Time
}

// ConnectionConfig holds websocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Origin filtering happens in the CORS layer; the upgrade itself
			// accepts any origin.
			return true
		},
	}
}

type outbound struct {
	event    *game.Event
	channels []game.Channel
	connID   string // set for point-to-point delivery
}

// NewHub creates a hub that forwards inbound messages to the dispatcher.
func NewHub(config ConnectionConfig, dispatcher Dispatcher) *Hub {
	return &Hub{
		channels: map[game.Channel]map[*Connection]bool{
			game.ChannelPlayer:     make(map[*Connection]bool),
			game.ChannelAdmin:      make(map[*Connection]bool),
			game.ChannelProjection: make(map[*Connection]bool),
		},
		byID: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		dispatcher:  dispatcher,
		broadcastCh: make(chan outbound, 1024),
	}
}

// Start processes outbound events until ctx is cancelled.
func (h *Hub) Start(ctx context.Context) {
	log.Info().Msg("gateway hub started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gateway hub shutting down")
			return
		case msg := <-h.broadcastCh:
			h.deliver(msg)
		}
	}
}

// Broadcast implements game.Broadcaster.
func (h *Hub) Broadcast(ev *game.Event, channels ...game.Channel) {
	select {
	case h.broadcastCh <- outbound{event: ev, channels: channels}:
	default:
		log.Warn().Str("event", string(ev.Type)).Msg("broadcast channel full, dropping event")
	}
}

// Send implements game.Broadcaster for point-to-point replies.
func (h *Hub) Send(connID string, ev *game.Event) {
	select {
	case h.broadcastCh <- outbound{event: ev, connID: connID}:
	default:
		log.Warn().Str("event", string(ev.Type)).Str("connection_id", connID).Msg("broadcast channel full, dropping event")
	}
}

// Upgrade upgrades an HTTP request to a websocket connection on the given
// channel and starts its pumps.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request, channel game.Channel) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Channel:     channel,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Hub:         h,
		ConnectedAt: time.Now(),
	}

	h.register(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("channel", string(channel)).
		Msg("websocket connection established")

	return nil
}

func (h *Hub) register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.channels[conn.Channel][conn] = true
	h.byID[conn.ID] = conn
}

func (h *Hub) unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.channels[conn.Channel][conn]; !ok {
		return
	}
	delete(h.channels[conn.Channel], conn)
	delete(h.byID, conn.ID)
	close(conn.Send)

	log.Info().
		Str("connection_id", conn.ID).
		Str("channel", string(conn.Channel)).
		Msg("connection unregistered")
}

func (h *Hub) deliver(msg outbound) {
	data, err := json.Marshal(msg.event)
	if err != nil {
		log.Error().Err(err).Msg("marshal event for delivery")
		return
	}

	// Send while holding the read lock: unregister closes Send under the
	// write lock, so a close can never race one of these sends. The sends are
	// non-blocking, which keeps the critical section short.
	h.mu.RLock()
	var targets []*Connection
	if msg.connID != "" {
		if conn, ok := h.byID[msg.connID]; ok {
			targets = append(targets, conn)
		}
	} else {
		for _, ch := range msg.channels {
			for conn := range h.channels[ch] {
				targets = append(targets, conn)
			}
		}
	}

	var evicted []*Connection
	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			evicted = append(evicted, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range evicted {
		// Slow or dead consumer; drop it rather than stall delivery.
		log.Warn().
			Str("connection_id", conn.ID).
			Str("channel", string(conn.Channel)).
			Msg("send buffer full, closing connection")
		h.unregister(conn)
		conn.Conn.Close()
	}
}

// ConnectionCounts returns the number of live connections per channel.
func (h *Hub) ConnectionCounts() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := make(map[string]int, len(h.channels))
	for ch, conns := range h.channels {
		counts[string(ch)] = len(conns)
	}
	return counts
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Hub.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("write to websocket failed")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
		c.Hub.dispatcher.Disconnect(c.ID)
	}()

	c.Conn.SetReadLimit(c.Hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			break
		}
		c.Hub.handleClientMessage(c, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ReadTimeout))
	}
}
