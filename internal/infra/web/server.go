// File: internal/infra/web/server.go
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"safe-room-chat/internal/usecase"
)

const (
	requestTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// Server exposes room inspection, the detect endpoint and the websocket upgrade.
type Server struct {
	rooms  usecase.RoomUseCase
	filter usecase.FilterUseCase
	ws     http.Handler
	auth   *AuthManager
	clock  clockwork.Clock
	log    *zerolog.Logger
}

// NewServer builds the HTTP surface. auth may be nil to leave the inspection
// routes open; ws may be nil when no realtime transport is mounted.
func NewServer(rooms usecase.RoomUseCase, filter usecase.FilterUseCase, ws http.Handler, auth *AuthManager, clock clockwork.Clock, logger *zerolog.Logger) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{rooms: rooms, filter: filter, ws: ws, auth: auth, clock: clock, log: &l}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(TraceID)
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())
	if s.ws != nil {
		r.Handle("/ws", s.ws)
	}

	r.Group(func(r chi.Router) {
		r.Use(Timeout(requestTimeout))
		if s.auth != nil {
			r.Use(s.auth.Require)
		}
		r.Get("/rooms", s.listRooms)
		r.Get("/rooms/{room}", s.roomInfo)
		r.Get("/rooms/{room}/messages", s.roomMessages)
		r.Post("/detect", s.detect)
	})
	return r
}
