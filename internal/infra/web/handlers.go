// File: internal/infra/web/handlers.go
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"safe-room-chat/internal/domain"
	"safe-room-chat/internal/domain/model"
	"safe-room-chat/internal/infra/logging"
	"safe-room-chat/internal/textmatch"
	"safe-room-chat/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ts": s.clock.Now().UTC()})
}

// listRooms maps every known room to its live member count.
func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rooms.ListRooms(r.Context()))
}

func (s *Server) roomInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.rooms.RoomInfo(r.Context(), chi.URLParam(r, "room"))
	if err != nil {
		s.roomError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// roomMessages returns history newest first. limit defaults to 50 and is
// clamped to [1, 5000].
func (s *Server) roomMessages(w http.ResponseWriter, r *http.Request) {
	limit := usecase.DefaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = usecase.ClampLimit(n)
	}

	msgs, err := s.rooms.RecentMessages(r.Context(), chi.URLParam(r, "room"), limit)
	if err != nil {
		s.roomError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) roomError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	logging.With(r.Context(), s.log).Error().Err(err).Msg("room lookup failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

type detectRequest struct {
	Text           string   `json:"text"`
	IncludeAny     []string `json:"include_any"`
	ExcludeAny     []string `json:"exclude_any"`
	Mode           string   `json:"mode"`
	RequireInclude *bool    `json:"require_include"`
	Debug          bool     `json:"debug"`
}

type detectResponse struct {
	OK bool `json:"ok"`
	model.FilterDecision
	Debug *usecase.DetectDebug `json:"debug,omitempty"`
}

// detect runs the keyword stages with a per-request policy.
func (s *Server) detect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	p := usecase.Policy{
		Include:         req.IncludeAny,
		Exclude:         req.ExcludeAny,
		IncludeRequired: len(textmatch.NormalizeTerms(req.IncludeAny)) > 0,
		Mode:            usecase.ParseMode(req.Mode),
	}
	if req.RequireInclude != nil {
		p.IncludeRequired = *req.RequireInclude
	}

	d, dbg := s.filter.Detect(r.Context(), req.Text, p)
	resp := detectResponse{OK: true, FilterDecision: d}
	if req.Debug {
		resp.Debug = &dbg
	}
	writeJSON(w, http.StatusOK, resp)
}
