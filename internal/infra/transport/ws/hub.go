// File: internal/infra/transport/ws/hub.go
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"safe-room-chat/internal/domain"
	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/domain/ports/adapter"
	"safe-room-chat/internal/infra/logging"
	"safe-room-chat/internal/infra/metrics"
	"safe-room-chat/internal/usecase"
)

// Compile-time check
var _ adapter.Transport = (*Hub)(nil)

// SessionHandler receives the events of every connection.
type SessionHandler interface {
	Connect(ctx context.Context, sessionID string) error
	Join(ctx context.Context, sessionID, name, room string) error
	Chat(ctx context.Context, sessionID, body string) error
	Leave(ctx context.Context, sessionID string) error
	Disconnect(ctx context.Context, sessionID string) error
}

type Options struct {
	SendQueue     int
	WriteWait     time.Duration
	PongWait      time.Duration
	MaxFrameBytes int64
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool
}

// FrameLimit is the read limit that still fits a chat frame whose body has
// maxMessageLength runes, each escaped as a \uXXXX surrogate pair.
func FrameLimit(maxMessageLength int) int64 {
	return 12*int64(maxMessageLength) + 1024
}

func (o *Options) defaults() {
	if o.SendQueue <= 0 {
		o.SendQueue = 64
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = 64 << 10
	}
	if o.CheckOrigin == nil {
		o.CheckOrigin = func(*http.Request) bool { return true }
	}
}

// Hub tracks websocket sessions and their room so events can be fanned out.
type Hub struct {
	opts     Options
	upgrader websocket.Upgrader
	log      *zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]*client
}

func NewHub(opts Options, logger *zerolog.Logger) *Hub {
	opts.defaults()
	l := logger.With().Str("component", "WSHub").Logger()
	return &Hub{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
		log:     &l,
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]*client),
	}
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue never blocks; a full queue means the peer is not keeping up.
func (c *client) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (h *Hub) JoinRoom(sessionID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[sessionID]
	if !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*client)
		h.rooms[room] = members
	}
	members[sessionID] = c
}

func (h *Hub) LeaveRoom(sessionID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(sessionID, room)
}

func (h *Hub) leaveLocked(sessionID, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast delivers ev to every session in room. Sessions whose queue is full
// are disconnected.
func (h *Hub) Broadcast(_ context.Context, room string, ev model.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	h.mu.RLock()
	targets := make([]*client, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(b) {
			h.log.Warn().Str("session_id", c.id).Str("room", room).Msg("dropping slow websocket consumer")
			c.close()
		}
	}
	return nil
}

func (h *Hub) Send(_ context.Context, sessionID string, ev model.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	h.mu.RLock()
	c, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return domain.ErrUnknownSession
	}
	if !c.enqueue(b) {
		c.close()
		return fmt.Errorf("session %s send queue full", sessionID)
	}
	return nil
}

// Sessions returns the number of connected sessions.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	metrics.SessionOpened()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	for room := range h.rooms {
		h.leaveLocked(c.id, room)
	}
	h.mu.Unlock()
	metrics.SessionClosed()
}

// Handler returns the upgrade endpoint that feeds sessions into sh.
func (h *Hub) Handler(sh SessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}
		c := &client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan []byte, h.opts.SendQueue),
			done: make(chan struct{}),
		}
		h.register(c)

		// Event handling must finish even when the peer is gone.
		ctx := logging.WithSessID(context.WithoutCancel(r.Context()), c.id)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.writePump(c)
		}()

		if err := sh.Connect(ctx, c.id); err != nil {
			h.log.Warn().Err(err).Str("session_id", c.id).Msg("connect handler failed")
		}
		h.readPump(ctx, c, sh)

		if err := sh.Disconnect(ctx, c.id); err != nil {
			logging.With(ctx, h.log).Error().Err(err).Msg("disconnect handler failed")
		}
		h.unregister(c)
		c.close()
		wg.Wait()
	})
}

// frame is the wire envelope: {"event": "...", "data": {...}}.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinData struct {
	Name string `json:"name"`
	Room string `json:"room"`
}

type chatData struct {
	Body string `json:"body"`
}

func (h *Hub) readPump(ctx context.Context, c *client, sh SessionHandler) {
	c.conn.SetReadLimit(h.opts.MaxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.With(ctx, h.log).Debug().Err(err).Msg("websocket closed")
			}
			return
		}
		select {
		case <-c.done:
			return
		default:
		}
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			_ = h.Send(ctx, c.id, model.NewErrorEvent("malformed event"))
			continue
		}
		h.dispatch(ctx, c, sh, f)
	}
}

func (h *Hub) dispatch(ctx context.Context, c *client, sh SessionHandler, f frame) {
	var err error
	switch f.Event {
	case "join":
		var d joinData
		if err = decodeData(f.Data, &d); err == nil {
			err = sh.Join(ctx, c.id, d.Name, d.Room)
		}
	case "chat":
		var d chatData
		if err = decodeData(f.Data, &d); err == nil {
			err = sh.Chat(ctx, c.id, d.Body)
		}
	case "leave":
		err = sh.Leave(ctx, c.id)
	default:
		_ = h.Send(ctx, c.id, model.NewErrorEvent("unknown event "+f.Event))
		return
	}

	switch {
	case err == nil, usecase.IsRejection(err):
	case errors.As(err, new(badFrameError)):
		_ = h.Send(ctx, c.id, model.NewErrorEvent("malformed event data"))
	default:
		logging.With(ctx, h.log).Error().Err(err).Str("event", f.Event).Msg("event handling failed")
		_ = h.Send(ctx, c.id, model.NewErrorEvent("internal error"))
	}
}

type badFrameError struct{ err error }

func (e badFrameError) Error() string { return "bad frame: " + e.err.Error() }

// decodeData accepts a missing or null payload as empty.
func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badFrameError{err}
	}
	return nil
}

func (h *Hub) writePump(c *client) {
	ping := time.NewTicker(h.opts.PongWait * 9 / 10)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.close()
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.opts.WriteWait))
			return
		}
	}
}
