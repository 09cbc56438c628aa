// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"safe-room-chat/internal/domain"
	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/domain/ports/adapter"
	"safe-room-chat/internal/infra/logging"
	"safe-room-chat/internal/infra/metrics"
)

// SystemSender is the author of join/leave notices kept in history.
const SystemSender = "server"

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

// ChatUseCase handles the events of one connected session.
type ChatUseCase interface {
	Connect(ctx context.Context, sessionID string) error
	Join(ctx context.Context, sessionID, name, room string) error
	Chat(ctx context.Context, sessionID, body string) error
	Leave(ctx context.Context, sessionID string) error
	Disconnect(ctx context.Context, sessionID string) error
	Session(sessionID string) (model.Session, bool)
}

type ChatOptions struct {
	MaxMessageLength int
	DefaultName      string
	DefaultRoom      string
	RateLimit        int
	RateWindow       time.Duration
	Dev              bool
}

type chatUC struct {
	rooms     RoomUseCase
	filter    FilterUseCase
	transport adapter.Transport
	limiter   adapter.RateLimiter
	opts      ChatOptions
	clock     clockwork.Clock
	log       *zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*model.Session
}

// NewChatUseCase builds the session handler. limiter may be nil.
func NewChatUseCase(rooms RoomUseCase, filter FilterUseCase, transport adapter.Transport, limiter adapter.RateLimiter, opts ChatOptions, clock clockwork.Clock, logger *zerolog.Logger) *chatUC {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 2048
	}
	if opts.DefaultName == "" {
		opts.DefaultName = "guest"
	}
	if opts.DefaultRoom == "" {
		opts.DefaultRoom = "general"
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	l := logger.With().Str("component", "ChatUC").Logger()
	return &chatUC{
		rooms:     rooms,
		filter:    filter,
		transport: transport,
		limiter:   limiter,
		opts:      opts,
		clock:     clock,
		log:       &l,
		sessions:  make(map[string]*model.Session),
	}
}

func (c *chatUC) Connect(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	c.sessions[sessionID] = &model.Session{ID: sessionID}
	c.mu.Unlock()
	return c.transport.Send(ctx, sessionID, model.NewSystemEvent("connected"))
}

func (c *chatUC) Session(sessionID string) (model.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return model.Session{}, false
	}
	return *s, true
}

// Join moves the session into room, leaving any previous room first.
func (c *chatUC) Join(ctx context.Context, sessionID, name, room string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		name = c.opts.DefaultName
	}
	room = strings.TrimSpace(room)
	if room == "" {
		room = c.opts.DefaultRoom
	}
	ctx = logging.WithRoom(logging.WithSessID(ctx, sessionID), room)

	c.mu.Lock()
	sess, ok := c.sessions[sessionID]
	if !ok {
		sess = &model.Session{ID: sessionID}
		c.sessions[sessionID] = sess
	}
	prev := *sess
	sess.Name, sess.Room, sess.JoinedAt = name, room, c.clock.Now().UTC()
	c.mu.Unlock()

	if prev.InRoom() && (prev.Room != room || prev.Name != name) {
		if prev.Room != room {
			c.transport.LeaveRoom(sessionID, prev.Room)
		}
		if err := c.rooms.RemoveMember(ctx, prev.Room, prev.Name); err != nil {
			return err
		}
	}

	c.transport.JoinRoom(sessionID, room)
	if err := c.rooms.AddMember(ctx, room, name); err != nil {
		return err
	}
	logging.With(ctx, c.log).Info().Str("name", name).Msg("session joined")
	return c.announce(ctx, room, fmt.Sprintf("%s joined %s", name, room))
}

// Chat validates body, runs the safety pipeline and delivers the message. A
// session that never joined is joined to the default room first. Rejections
// are sent to the originating session only and returned.
func (c *chatUC) Chat(ctx context.Context, sessionID, body string) error {
	sess, ok := c.Session(sessionID)
	if !ok {
		return domain.ErrUnknownSession
	}
	body = strings.TrimSpace(body)
	switch {
	case body == "":
		return c.reject(ctx, sessionID, domain.ErrEmptyMessage)
	case utf8.RuneCountInString(body) > c.opts.MaxMessageLength:
		return c.reject(ctx, sessionID, domain.ErrMessageTooLong)
	}
	if !sess.InRoom() {
		// posting without a join lands in the default room
		if err := c.Join(ctx, sessionID, sess.Name, ""); err != nil {
			return err
		}
		sess, _ = c.Session(sessionID)
	}

	ctx = logging.WithTraceID(ctx, logging.NewTraceID())
	ctx = logging.WithRoom(logging.WithSessID(ctx, sessionID), sess.Room)
	log := logging.With(ctx, c.log)

	if !c.allow(ctx, sess) {
		metrics.IncRateLimited()
		return c.reject(ctx, sessionID, domain.ErrRateLimited)
	}

	decision := c.filter.Evaluate(ctx, body)
	if !decision.Allowed {
		log.Info().
			Str("source", string(decision.Source)).
			Str("body", logging.Redact(body, c.opts.Dev)).
			Msg("message blocked")
		if err := c.transport.Send(ctx, sessionID, model.NewErrorEvent("message blocked: "+decision.Reason)); err != nil {
			log.Debug().Err(err).Msg("error event not delivered")
		}
		return nil
	}

	msg, err := c.rooms.AppendMessage(ctx, sess.Room, sess.Name, body)
	if err != nil {
		return err
	}
	return c.transport.Broadcast(ctx, sess.Room, model.NewChatEvent(sess.Room, msg))
}

func (c *chatUC) Leave(ctx context.Context, sessionID string) error {
	return c.part(ctx, sessionID, "%s left", false)
}

// Disconnect is an implicit leave that also forgets the session.
func (c *chatUC) Disconnect(ctx context.Context, sessionID string) error {
	return c.part(ctx, sessionID, "%s disconnected", true)
}

func (c *chatUC) part(ctx context.Context, sessionID, format string, forget bool) error {
	c.mu.Lock()
	sess, ok := c.sessions[sessionID]
	var prev model.Session
	if ok {
		prev = *sess
		sess.Room, sess.Name = "", ""
	}
	if forget {
		delete(c.sessions, sessionID)
	}
	c.mu.Unlock()

	if !ok || !prev.InRoom() {
		return nil
	}
	ctx = logging.WithRoom(logging.WithSessID(ctx, sessionID), prev.Room)
	c.transport.LeaveRoom(sessionID, prev.Room)
	if err := c.rooms.RemoveMember(ctx, prev.Room, prev.Name); err != nil {
		return err
	}
	return c.announce(ctx, prev.Room, fmt.Sprintf(format, prev.Name))
}

// announce stores a system message in history and broadcasts it to the room.
func (c *chatUC) announce(ctx context.Context, room, text string) error {
	msg, err := c.rooms.AppendMessage(ctx, room, SystemSender, text)
	if err != nil {
		return err
	}
	return c.transport.Broadcast(ctx, room, model.NewSystemEvent(msg.Body))
}

func (c *chatUC) reject(ctx context.Context, sessionID string, reason error) error {
	if err := c.transport.Send(ctx, sessionID, model.NewErrorEvent(reason.Error())); err != nil {
		c.log.Debug().Err(err).Msg("error event not delivered")
	}
	return reason
}

// allow applies the per room and sender rate limit. Limiter failures let the
// message through.
func (c *chatUC) allow(ctx context.Context, sess model.Session) bool {
	if c.limiter == nil || c.opts.RateLimit <= 0 {
		return true
	}
	ok, err := c.limiter.Allow(ctx, RateLimitKey(sess.Room, sess.Name), c.opts.RateLimit, c.opts.RateWindow)
	if err != nil {
		logging.With(ctx, c.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	return ok
}

func RateLimitKey(room, sender string) string {
	return fmt.Sprintf("rate_limit:%s:%s", room, sender)
}

// IsRejection reports whether err is a validation rejection already delivered
// to the session as an error event.
func IsRejection(err error) bool {
	return errors.Is(err, domain.ErrEmptyMessage) ||
		errors.Is(err, domain.ErrMessageTooLong) ||
		errors.Is(err, domain.ErrRateLimited)
}
